package store

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"

	"github.com/chadmayfield/weathercache/internal/weather"
)

// sqlStore holds the queries shared by the SQLite and PostgreSQL backends.
// Queries are written with ? placeholders and rebound per dialect.
type sqlStore struct {
	db         *sql.DB
	dialect    goose.Dialect
	migrations fs.FS
	rebind     func(string) string
}

// DB returns the underlying database connection for migration commands.
func (s *sqlStore) DB() *sql.DB {
	return s.db
}

func (s *sqlStore) q(query string) string {
	if s.rebind == nil {
		return query
	}
	return s.rebind(query)
}

func accessErr(op string, err error) error {
	return weather.E(weather.KindStoreAccess, op, err)
}

func (s *sqlStore) provider() (*goose.Provider, error) {
	return goose.NewProvider(s.dialect, s.db, s.migrations)
}

// migrateUp applies all pending migrations.
func (s *sqlStore) migrateUp(ctx context.Context) error {
	p, err := s.provider()
	if err != nil {
		return fmt.Errorf("creating migration provider: %w", err)
	}
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (s *sqlStore) GetSingle(ctx context.Context, loc weather.Location, ts string) ([]weather.Observation, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT longitude, latitude, time,
			precipitation_probability, precipitation, wind_speed_10m
		FROM weather
		WHERE longitude = ? AND latitude = ? AND time = ?
		ORDER BY id
		LIMIT 1`), loc.Longitude, loc.Latitude, ts)
	if err != nil {
		return nil, accessErr("querying single observation", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanObservations(rows)
}

func (s *sqlStore) GetByLocation(ctx context.Context, loc weather.Location) ([]weather.Observation, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT longitude, latitude, time,
			precipitation_probability, precipitation, wind_speed_10m
		FROM weather
		WHERE longitude = ? AND latitude = ?
		ORDER BY id`), loc.Longitude, loc.Latitude)
	if err != nil {
		return nil, accessErr("querying observations by location", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanObservations(rows)
}

func (s *sqlStore) GetAll(ctx context.Context) ([]weather.Observation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT longitude, latitude, time,
			precipitation_probability, precipitation, wind_speed_10m
		FROM weather
		ORDER BY id`)
	if err != nil {
		return nil, accessErr("querying all observations", err)
	}
	defer rows.Close() //nolint:errcheck

	return scanObservations(rows)
}

// Insert runs the existence check and the write in one transaction so the
// (longitude, latitude, time) key stays unique without a schema constraint.
func (s *sqlStore) Insert(ctx context.Context, obs weather.Observation) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, accessErr("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is harmless

	var existing int
	err = tx.QueryRowContext(ctx, s.q(`
		SELECT COUNT(*) FROM weather
		WHERE longitude = ? AND latitude = ? AND time = ?`),
		obs.Location.Longitude, obs.Location.Latitude, obs.Time).Scan(&existing)
	if err != nil {
		return false, accessErr("checking existing observation", err)
	}
	if existing > 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, s.q(`
		INSERT INTO weather (
			longitude, latitude, time,
			precipitation_probability, precipitation, wind_speed_10m
		) VALUES (?, ?, ?, ?, ?, ?)`),
		obs.Location.Longitude, obs.Location.Latitude, obs.Time,
		obs.PrecipitationProbability, obs.Precipitation, obs.WindSpeed10m,
	); err != nil {
		return false, accessErr("inserting observation", err)
	}

	if err := tx.Commit(); err != nil {
		return false, accessErr("committing observation", err)
	}
	return true, nil
}

func (s *sqlStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM weather`).Scan(&count); err != nil {
		return 0, accessErr("counting observations", err)
	}
	return count, nil
}

func (s *sqlStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM weather`); err != nil {
		return accessErr("resetting weather table", err)
	}
	return nil
}

// Drop migrates down to version 0, which removes the weather table and its index.
func (s *sqlStore) Drop(ctx context.Context) error {
	p, err := s.provider()
	if err != nil {
		return accessErr("creating migration provider", err)
	}
	if _, err := p.DownTo(ctx, 0); err != nil {
		return accessErr("dropping weather table", err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// --- Shared helpers ---

func scanObservations(rows *sql.Rows) ([]weather.Observation, error) {
	var result []weather.Observation
	for rows.Next() {
		var obs weather.Observation
		if err := rows.Scan(
			&obs.Location.Longitude, &obs.Location.Latitude, &obs.Time,
			&obs.PrecipitationProbability, &obs.Precipitation, &obs.WindSpeed10m,
		); err != nil {
			return nil, accessErr("scanning observation", err)
		}
		result = append(result, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, accessErr("iterating observations", err)
	}
	return result, nil
}

// replacePlaceholders converts ? to $1, $2, $3 etc for postgres.
func replacePlaceholders(query string) string {
	result := make([]byte, 0, len(query))
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, fmt.Sprintf("$%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

// MigrationState describes one embedded migration and whether it is applied.
type MigrationState struct {
	Version int64
	Path    string
	Applied bool
}

// Migrations reports the state of every embedded migration for an open
// database without applying anything.
func Migrations(ctx context.Context, driver string, db *sql.DB) ([]MigrationState, error) {
	var (
		dialect goose.Dialect
		fsys    fs.FS
		err     error
	)
	switch driver {
	case "sqlite":
		dialect = goose.DialectSQLite3
		fsys, err = fs.Sub(migrations, "migrations")
	case "postgres":
		dialect = goose.DialectPostgres
		fsys, err = fs.Sub(pgMigrations, "pgmigrations")
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	p, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return nil, fmt.Errorf("creating migration provider: %w", err)
	}
	statuses, err := p.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading migration status: %w", err)
	}

	result := make([]MigrationState, 0, len(statuses))
	for _, st := range statuses {
		result = append(result, MigrationState{
			Version: st.Source.Version,
			Path:    st.Source.Path,
			Applied: st.State == goose.StateApplied,
		})
	}
	return result, nil
}
