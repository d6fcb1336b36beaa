package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/chadmayfield/weathercache/internal/weather"
)

//go:embed pgmigrations/*.sql
var pgMigrations embed.FS

// PostgresStore implements Store backed by PostgreSQL.
type PostgresStore struct {
	sqlStore
}

// NewPostgresStore opens a PostgreSQL connection and runs migrations.
// Any failure is a StoreInitError.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	s, err := openPostgres(dsn)
	if err != nil {
		return nil, weather.E(weather.KindStoreInit, "opening postgres store", err)
	}
	return s, nil
}

func openPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	fsys, err := fs.Sub(pgMigrations, "pgmigrations")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	s := &PostgresStore{sqlStore{
		db:         db,
		dialect:    goose.DialectPostgres,
		migrations: fsys,
		rebind:     replacePlaceholders,
	}}
	if err := s.migrateUp(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
