package repo

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shortener.local/internal/app/shortlink"
	"shortener.local/internal/platform/db"
	"shortener.local/internal/platform/migrate"
)

// IsPostgresDSN 判断 DSN 是否指向 PostgreSQL，其余一律按 SQLite 文件路径处理。
func IsPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open 根据 DSN 打开对应的存储并执行迁移。
func Open(ctx context.Context, dsn string) (shortlink.Store, error) {
	if !IsPostgresDSN(dsn) {
		store, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		slog.Info("sqlite store ready", "path", dsn)
		return store, nil
	}

	pool, err := db.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	res, err := migrate.Up(ctx, pool, migrate.Options{FS: PostgresMigrations()})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	slog.Info("postgres store ready", "applied", res.AppliedFiles, "skipped", res.SkippedFiles)
	return NewShortlinksRepo(pool), nil
}
