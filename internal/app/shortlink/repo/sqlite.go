package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"shortener.local/internal/app/shortlink"
	"shortener.local/internal/platform/migrate"
)

const sqliteLinkColumns = "id, original_url, short_code, delete_token, created_at, expires_at, clicks"

// SQLiteRepo 是基于 SQLite（modernc，纯 Go）的 shortlink.Store。
//
// 时间列存 UTC 毫秒；只开一个连接，写操作天然串行。
type SQLiteRepo struct {
	db *sql.DB
}

var _ shortlink.Store = (*SQLiteRepo)(nil)

// OpenSQLite 打开（或创建）path 处的数据库并执行迁移。path 可以是 ":memory:"。
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA journal_mode = WAL;",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			slog.Warn("sqlite pragma failed", "pragma", pragma, "err", err)
		}
	}

	res, err := migrate.UpSQLite(ctx, db, migrate.Options{FS: SQLiteMigrations()})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	if len(res.AppliedFiles) > 0 {
		slog.Info("sqlite migrations applied", "files", res.AppliedFiles)
	}
	return &SQLiteRepo{db: db}, nil
}

func (s *SQLiteRepo) Insert(ctx context.Context, link shortlink.ShortLink) error {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(dbctx,
		`INSERT INTO short_links (id, original_url, short_code, delete_token, created_at, expires_at, clicks)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		link.ID, link.OriginalURL, link.ShortCode, link.DeleteToken, toMillis(link.CreatedAt), nullableMillis(link.ExpiresAt), link.Clicks,
	)
	if err != nil {
		if isShortCodeConflict(err) {
			return shortlink.ErrCodeTaken
		}
		slog.Error(err.Error())
		return err
	}
	return nil
}

func (s *SQLiteRepo) FindByCode(ctx context.Context, code string) (shortlink.ShortLink, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	link, err := scanSQLiteLink(s.db.QueryRowContext(dbctx, "SELECT "+sqliteLinkColumns+" FROM short_links WHERE short_code = ?", code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return shortlink.ShortLink{}, shortlink.ErrNotFound
		}
		slog.Error(err.Error())
		return shortlink.ShortLink{}, err
	}
	return link, nil
}

func (s *SQLiteRepo) IncrementClicks(ctx context.Context, code string, now time.Time) (shortlink.ShortLink, error) {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	link, err := scanSQLiteLink(s.db.QueryRowContext(dbctx,
		`UPDATE short_links SET clicks = clicks + 1
		 WHERE short_code = ? AND (expires_at IS NULL OR expires_at > ?)
		 RETURNING `+sqliteLinkColumns,
		code, toMillis(now),
	))
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		slog.Error(err.Error())
		return shortlink.ShortLink{}, err
	}

	var n int
	if err := s.db.QueryRowContext(dbctx, "SELECT COUNT(1) FROM short_links WHERE short_code = ?", code).Scan(&n); err != nil {
		slog.Error(err.Error())
		return shortlink.ShortLink{}, err
	}
	if n > 0 {
		return shortlink.ShortLink{}, shortlink.ErrExpired
	}
	return shortlink.ShortLink{}, shortlink.ErrNotFound
}

func (s *SQLiteRepo) List(ctx context.Context, activeOnly bool, now time.Time) ([]shortlink.ShortLink, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var rows *sql.Rows
	var err error
	if activeOnly {
		rows, err = s.db.QueryContext(dbctx,
			"SELECT "+sqliteLinkColumns+" FROM short_links WHERE expires_at IS NULL OR expires_at > ? ORDER BY created_at DESC, short_code",
			toMillis(now))
	} else {
		rows, err = s.db.QueryContext(dbctx, "SELECT "+sqliteLinkColumns+" FROM short_links ORDER BY created_at DESC, short_code")
	}
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}
	return collectSQLiteLinks(rows)
}

func (s *SQLiteRepo) DeleteByCode(ctx context.Context, code string) error {
	dbctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(dbctx, "DELETE FROM short_links WHERE short_code = ?", code)
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return shortlink.ErrNotFound
	}
	return nil
}

func (s *SQLiteRepo) DeleteExpired(ctx context.Context, now time.Time) ([]shortlink.ShortLink, error) {
	dbctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := s.db.Conn(dbctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(dbctx,
		"DELETE FROM short_links WHERE expires_at IS NOT NULL AND expires_at <= ? RETURNING "+sqliteLinkColumns,
		toMillis(now))
	if err != nil {
		return nil, err
	}
	return collectSQLiteLinks(rows)
}

func (s *SQLiteRepo) Stats(ctx context.Context, now time.Time) (shortlink.Stats, error) {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var st shortlink.Stats
	err := s.db.QueryRowContext(dbctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(CASE WHEN expires_at IS NOT NULL AND expires_at <= ? THEN 1 ELSE 0 END), 0),
		        COALESCE(SUM(clicks), 0)
		 FROM short_links`,
		toMillis(now),
	).Scan(&st.Total, &st.Expired, &st.TotalClicks)
	if err != nil {
		slog.Error(err.Error())
		return shortlink.Stats{}, err
	}
	st.Active = st.Total - st.Expired
	return st, nil
}

func (s *SQLiteRepo) Codes(ctx context.Context) ([]string, error) {
	dbctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(dbctx, "SELECT short_code FROM short_links")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	codes := make([]string, 0)
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

func (s *SQLiteRepo) Ping(ctx context.Context) error {
	dbctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.db.PingContext(dbctx)
}

func (s *SQLiteRepo) Close() {
	if err := s.db.Close(); err != nil {
		slog.Error(err.Error())
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteLink(row rowScanner) (shortlink.ShortLink, error) {
	var link shortlink.ShortLink
	var created int64
	var expires sql.NullInt64
	if err := row.Scan(&link.ID, &link.OriginalURL, &link.ShortCode, &link.DeleteToken, &created, &expires, &link.Clicks); err != nil {
		return shortlink.ShortLink{}, err
	}
	link.CreatedAt = fromMillis(created)
	if expires.Valid {
		t := fromMillis(expires.Int64)
		link.ExpiresAt = &t
	}
	return link, nil
}

func collectSQLiteLinks(rows *sql.Rows) ([]shortlink.ShortLink, error) {
	defer rows.Close()

	result := make([]shortlink.ShortLink, 0)
	for rows.Next() {
		link, err := scanSQLiteLink(rows)
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

// isShortCodeConflict 判断是否是 short_code 唯一约束冲突。
func isShortCodeConflict(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, "short_code")
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

func nullableMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return toMillis(*t)
}
