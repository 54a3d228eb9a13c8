package repo

import (
	"embed"
	"io/fs"
)

//go:embed migrations/postgres/*.sql
var postgresFiles embed.FS

//go:embed migrations/sqlite/*.sql
var sqliteFiles embed.FS

// PostgresMigrations 返回 PostgreSQL 迁移文件（顶层即 .sql 文件）。
func PostgresMigrations() fs.FS { return mustSub(postgresFiles, "migrations/postgres") }

// SQLiteMigrations 返回 SQLite 迁移文件。
func SQLiteMigrations() fs.FS { return mustSub(sqliteFiles, "migrations/sqlite") }

func mustSub(fsys embed.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
