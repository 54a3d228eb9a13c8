package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Options 指定迁移文件来源。FS 非空时优先使用（通常是 embed.FS），
// 否则从目录 Dir 读取，Dir 为空时按 ./migrations、可执行文件目录/migrations 查找。
type Options struct {
	FS  fs.FS
	Dir string
}

type Result struct {
	Dir          string
	AppliedFiles []string
	SkippedFiles []string
}

// engine 隔离两种数据库在占位符和事务 API 上的差异。
type engine interface {
	ensureTable(ctx context.Context) error
	isApplied(ctx context.Context, version string) (bool, error)
	apply(ctx context.Context, version, script string) error
}

// Up 对 PostgreSQL 执行尚未应用的迁移。
func Up(ctx context.Context, db *pgxpool.Pool, opts Options) (*Result, error) {
	return run(ctx, pgEngine{db: db}, opts)
}

// UpSQLite 对 database/sql 打开的 SQLite 执行尚未应用的迁移。
func UpSQLite(ctx context.Context, db *sql.DB, opts Options) (*Result, error) {
	return run(ctx, sqliteEngine{db: db}, opts)
}

func run(ctx context.Context, e engine, opts Options) (*Result, error) {
	fsys, dir, err := resolveSource(opts)
	if err != nil {
		return nil, err
	}

	if err := e.ensureTable(ctx); err != nil {
		return nil, err
	}

	entries, err := listSQLFiles(fsys)
	if err != nil {
		return nil, err
	}

	res := &Result{Dir: dir}
	for _, name := range entries {
		applied, err := e.isApplied(ctx, name)
		if err != nil {
			return nil, err
		}
		if applied {
			res.SkippedFiles = append(res.SkippedFiles, name)
			continue
		}
		script, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := e.apply(ctx, name, string(script)); err != nil {
			return nil, err
		}
		res.AppliedFiles = append(res.AppliedFiles, name)
	}

	return res, nil
}

// listSQLFiles 只看顶层的 .sql 文件，按文件名排序。
func listSQLFiles(fsys fs.FS) ([]string, error) {
	dirEntries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	entries := make([]string, 0, len(dirEntries))
	for _, d := range dirEntries {
		if d.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".sql") {
			entries = append(entries, d.Name())
		}
	}
	sort.Strings(entries)
	return entries, nil
}

func resolveSource(opts Options) (fs.FS, string, error) {
	if opts.FS != nil {
		return opts.FS, "embedded", nil
	}
	dir, err := resolveMigrationsDir(opts.Dir)
	if err != nil {
		return nil, "", err
	}
	return os.DirFS(dir), dir, nil
}

func resolveMigrationsDir(opt string) (string, error) {
	if strings.TrimSpace(opt) != "" {
		return filepath.Clean(opt), nil
	}

	// prefer CWD/migrations
	if dir, err := filepath.Abs("migrations"); err == nil {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			return dir, nil
		}
	}

	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve migrations dir: %w", err)
	}
	dir := filepath.Join(filepath.Dir(exe), "migrations")
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return "", fmt.Errorf("migrations dir not found (tried %s)", dir)
	}
	return dir, nil
}

type pgEngine struct {
	db *pgxpool.Pool
}

func (e pgEngine) ensureTable(ctx context.Context) error {
	_, err := e.db.Exec(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version TEXT PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
	return err
}

func (e pgEngine) isApplied(ctx context.Context, version string) (bool, error) {
	var exists bool
	err := e.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, version).Scan(&exists)
	return exists, err
}

func (e pgEngine) apply(ctx context.Context, version, script string) error {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, script); err != nil {
		return fmt.Errorf("apply migration %s: %w", version, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES ($1,$2)`, version, time.Now()); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	return tx.Commit(ctx)
}

type sqliteEngine struct {
	db *sql.DB
}

func (e sqliteEngine) ensureTable(ctx context.Context) error {
	_, err := e.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version TEXT PRIMARY KEY,
  applied_at INTEGER NOT NULL
);
`)
	return err
}

func (e sqliteEngine) isApplied(ctx context.Context, version string) (bool, error) {
	var n int
	err := e.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version=?`, version).Scan(&n)
	return n > 0, err
}

func (e sqliteEngine) apply(ctx context.Context, version, script string) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("apply migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?,?)`, version, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	return tx.Commit()
}
