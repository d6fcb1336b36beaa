package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/chadmayfield/weathercache/internal/weather"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore implements Store backed by a single SQLite file.
type SQLiteStore struct {
	sqlStore
}

// NewSQLiteStore creates the database file and schema if absent and returns a
// store holding one long-lived connection. Any failure is a StoreInitError.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	s, err := openSQLite(path)
	if err != nil {
		return nil, weather.E(weather.KindStoreInit, "opening sqlite store "+path, err)
	}
	return s, nil
}

func openSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// The store is owned by one orchestrator; a single connection keeps
	// check-then-insert transactions from contending with each other.
	db.SetMaxOpenConns(1)

	// Set pragmas for performance and safety.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	// Set file permissions to 0600.
	if err := os.Chmod(path, 0600); err != nil && !os.IsNotExist(err) {
		_ = db.Close()
		return nil, fmt.Errorf("setting file permissions: %w", err)
	}

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	s := &SQLiteStore{sqlStore{
		db:         db,
		dialect:    goose.DialectSQLite3,
		migrations: fsys,
	}}
	if err := s.migrateUp(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
