package repo

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"shortener.local/internal/app/shortlink"
)

const pgLinkColumns = "id::text, original_url, short_code, delete_token, created_at, expires_at, clicks"

// ShortlinksRepo 是基于 PostgreSQL 的 shortlink.Store。
type ShortlinksRepo struct {
	db *pgxpool.Pool
}

var _ shortlink.Store = (*ShortlinksRepo)(nil)

func NewShortlinksRepo(db *pgxpool.Pool) *ShortlinksRepo {
	return &ShortlinksRepo{db: db}
}

func (s *ShortlinksRepo) Insert(ctx context.Context, link shortlink.ShortLink) error {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := s.db.Exec(dbctx,
		`INSERT INTO short_links (id, original_url, short_code, delete_token, created_at, expires_at, clicks)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		link.ID, link.OriginalURL, link.ShortCode, link.DeleteToken, link.CreatedAt, link.ExpiresAt, link.Clicks,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		// unique violation: 短码冲突交给 Registry 重试
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && strings.Contains(pgErr.ConstraintName, "short_code") {
			return shortlink.ErrCodeTaken
		}
		slog.Error(err.Error())
		return err
	}
	return nil
}

func (s *ShortlinksRepo) FindByCode(ctx context.Context, code string) (shortlink.ShortLink, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	link, err := scanPgLink(s.db.QueryRow(dbctx, "SELECT "+pgLinkColumns+" FROM short_links WHERE short_code=$1", code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shortlink.ShortLink{}, shortlink.ErrNotFound
		}
		slog.Error(err.Error())
		return shortlink.ShortLink{}, err
	}
	return link, nil
}

// IncrementClicks 用一条 UPDATE 完成“未过期则 +1”，并发访问不会丢计数。
func (s *ShortlinksRepo) IncrementClicks(ctx context.Context, code string, now time.Time) (shortlink.ShortLink, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	link, err := scanPgLink(s.db.QueryRow(dbctx,
		`UPDATE short_links SET clicks = clicks + 1
		 WHERE short_code=$1 AND (expires_at IS NULL OR expires_at > $2)
		 RETURNING `+pgLinkColumns,
		code, now,
	))
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		slog.Error(err.Error())
		return shortlink.ShortLink{}, err
	}

	// 没有更新到行：要么不存在，要么已过期
	var exists bool
	if err := s.db.QueryRow(dbctx, "SELECT EXISTS(SELECT 1 FROM short_links WHERE short_code=$1)", code).Scan(&exists); err != nil {
		slog.Error(err.Error())
		return shortlink.ShortLink{}, err
	}
	if exists {
		return shortlink.ShortLink{}, shortlink.ErrExpired
	}
	return shortlink.ShortLink{}, shortlink.ErrNotFound
}

func (s *ShortlinksRepo) List(ctx context.Context, activeOnly bool, now time.Time) ([]shortlink.ShortLink, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var rows pgx.Rows
	var err error
	if activeOnly {
		rows, err = s.db.Query(dbctx,
			"SELECT "+pgLinkColumns+" FROM short_links WHERE expires_at IS NULL OR expires_at > $1 ORDER BY created_at DESC, short_code",
			now)
	} else {
		rows, err = s.db.Query(dbctx, "SELECT "+pgLinkColumns+" FROM short_links ORDER BY created_at DESC, short_code")
	}
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	return collectPgLinks(rows)
}

func (s *ShortlinksRepo) DeleteByCode(ctx context.Context, code string) error {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	tag, err := s.db.Exec(dbctx, "DELETE FROM short_links WHERE short_code=$1", code)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	if tag.RowsAffected() == 0 {
		return shortlink.ErrNotFound
	}
	return nil
}

// DeleteExpired 在单独借出的连接上执行一次批量删除，结束后归还。
func (s *ShortlinksRepo) DeleteExpired(ctx context.Context, now time.Time) ([]shortlink.ShortLink, error) {
	dbctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := s.db.Acquire(dbctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	rows, err := conn.Query(dbctx,
		"DELETE FROM short_links WHERE expires_at IS NOT NULL AND expires_at <= $1 RETURNING "+pgLinkColumns,
		now)
	if err != nil {
		return nil, err
	}
	return collectPgLinks(rows)
}

func (s *ShortlinksRepo) Stats(ctx context.Context, now time.Time) (shortlink.Stats, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var st shortlink.Stats
	err := s.db.QueryRow(dbctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE expires_at IS NOT NULL AND expires_at <= $1),
		        COALESCE(SUM(clicks), 0)::bigint
		 FROM short_links`,
		now,
	).Scan(&st.Total, &st.Expired, &st.TotalClicks)
	if err != nil {
		slog.Error(err.Error())
		return shortlink.Stats{}, err
	}
	st.Active = st.Total - st.Expired
	return st, nil
}

func (s *ShortlinksRepo) Codes(ctx context.Context) ([]string, error) {
	dbctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := s.db.Query(dbctx, "SELECT short_code FROM short_links")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (s *ShortlinksRepo) Ping(ctx context.Context) error {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.db.Ping(dbctx)
}

func (s *ShortlinksRepo) Close() {
	s.db.Close()
}

func scanPgLink(row pgx.Row) (shortlink.ShortLink, error) {
	var link shortlink.ShortLink
	var expires *time.Time
	if err := row.Scan(&link.ID, &link.OriginalURL, &link.ShortCode, &link.DeleteToken, &link.CreatedAt, &expires, &link.Clicks); err != nil {
		return shortlink.ShortLink{}, err
	}
	link.CreatedAt = link.CreatedAt.UTC()
	if expires != nil {
		t := expires.UTC()
		link.ExpiresAt = &t
	}
	return link, nil
}

func collectPgLinks(rows pgx.Rows) ([]shortlink.ShortLink, error) {
	defer rows.Close()

	result := make([]shortlink.ShortLink, 0)
	for rows.Next() {
		link, err := scanPgLink(rows)
		if err != nil {
			slog.Error(err.Error())
			return nil, err
		}
		result = append(result, link)
	}
	if err := rows.Err(); err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	return result, nil
}
