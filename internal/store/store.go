package store

import (
	"context"
	"fmt"

	"github.com/chadmayfield/weathercache/internal/weather"
)

// Store defines the interface for observation storage.
// Both SQLite and PostgreSQL implementations satisfy this interface.
type Store interface {
	// GetSingle returns the observation for a location and time, if any.
	// The result has zero or one element. Location equality is exact.
	GetSingle(ctx context.Context, loc weather.Location, ts string) ([]weather.Observation, error)

	// GetByLocation returns every observation for a location in insertion order.
	GetByLocation(ctx context.Context, loc weather.Location) ([]weather.Observation, error)

	// GetAll returns every stored observation in insertion order.
	GetAll(ctx context.Context) ([]weather.Observation, error)

	// Insert appends obs unless a row already exists for its (longitude, latitude, time).
	// It reports whether a row was written.
	Insert(ctx context.Context, obs weather.Observation) (bool, error)

	// Count returns the total number of stored observations.
	Count(ctx context.Context) (int, error)

	// Reset deletes all rows and keeps the schema.
	Reset(ctx context.Context) error

	// Drop removes the schema. Reopening the store recreates it.
	Drop(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// Open opens the store for the given driver ("sqlite" or "postgres").
func Open(driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		s, err := NewSQLiteStore(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := NewPostgresStore(dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, weather.E(weather.KindStoreInit, "opening store", fmt.Errorf("unknown storage driver: %s", driver))
	}
}
