// Package db opens the pllm state database and keeps its schema current.
package db

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var pragmas = []struct {
	stmt     string
	optional bool
}{
	{"PRAGMA foreign_keys=ON;", false},
	{"PRAGMA journal_mode=WAL;", true},
	{"PRAGMA synchronous=NORMAL;", true},
	{"PRAGMA busy_timeout=5000;", false},
}

// goose keeps its dialect and filesystem in package globals.
var setupGoose = sync.OnceValue(func() error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
})

// Open opens the SQLite database at path and migrates it to the latest
// schema. The pool is limited to one connection.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Version returns the applied schema version.
func Version(db *sql.DB) (int64, error) {
	if err := setupGoose(); err != nil {
		return 0, err
	}
	v, err := goose.GetDBVersion(db)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func applyPragmas(db *sql.DB) error {
	for _, p := range pragmas {
		if _, err := db.Exec(p.stmt); err != nil {
			if p.optional {
				log.Warn().Err(err).Str("pragma", p.stmt).Msg("sqlite: optional pragma not applied")
				continue
			}
			return fmt.Errorf("apply pragma %q: %w", p.stmt, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	if err := setupGoose(); err != nil {
		return err
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
