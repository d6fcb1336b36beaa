// Package acquisition decides whether stored observations can answer a
// request or whether the fetcher has to run first.
package acquisition

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chadmayfield/weathercache/internal/fetcher"
	"github.com/chadmayfield/weathercache/internal/weather"
)

// Reader is the part of the store the service reads from.
type Reader interface {
	GetByLocation(ctx context.Context, loc weather.Location) ([]weather.Observation, error)
}

// Result is the final dataset for one request.
type Result struct {
	Location     weather.Location
	Observations []weather.Observation
	// Cached is true when the store already held data and no download ran.
	Cached bool
	// Status is the fetch outcome; nil on a cache hit.
	Status *fetcher.Status
}

// Service runs the cache-or-fetch flow for one location at a time.
type Service struct {
	store   Reader
	fetcher fetcher.Fetcher
	logger  *slog.Logger
	metrics *Metrics

	mu         sync.Mutex
	data       []weather.Observation
	lastStatus *fetcher.Status
}

// NewService creates a service. metrics may be nil.
func NewService(store Reader, f fetcher.Fetcher, logger *slog.Logger, metrics *Metrics) *Service {
	return &Service{
		store:   store,
		fetcher: f,
		logger:  logger,
		metrics: metrics,
	}
}

type loggerKey struct{}

// ContextWithLogger returns a copy of ctx carrying l. Execute logs through it,
// so request-scoped attributes such as a request id reach the acquisition lines.
func ContextWithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return s.logger
}

// Execute returns the observations stored for loc. When there are none it
// downloads once and reads the store again. Stored data is never refreshed,
// however old it is, and a failed download is not retried: the result is
// whatever the store holds afterwards, possibly nothing.
func (s *Service) Execute(ctx context.Context, loc weather.Location) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.log(ctx)

	data, err := s.store.GetByLocation(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("reading cached observations: %w", err)
	}

	if len(data) > 0 {
		log.Info("using cached data", "location", loc.String(), "observations", len(data))
		s.metrics.cacheLookup(true)
		s.data = data
		return &Result{Location: loc, Observations: data, Cached: true}, nil
	}

	log.Info("data not cached, fetching", "location", loc.String())
	s.metrics.cacheLookup(false)

	err = s.fetcher.Download(ctx, loc)
	status := s.fetcher.Status()
	s.lastStatus = &status
	s.metrics.fetched(status, err)
	if err != nil {
		log.Error("fetch failed", "location", loc.String(), "status", status, "error", err)
		return nil, fmt.Errorf("downloading observations: %w", err)
	}

	if status.OK() {
		log.Info(status.String(), "status", status)
	} else {
		log.Warn(status.String(), "status", status)
	}

	// A download cut short by cancellation looks like a transport failure;
	// report the interruption instead of a store error from the re-read.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch interrupted: %w", err)
	}

	data, err = s.store.GetByLocation(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("re-reading observations: %w", err)
	}
	if len(data) == 0 {
		log.Warn("no data available", "location", loc.String())
	}

	s.data = data
	return &Result{Location: loc, Observations: data, Status: &status}, nil
}

// Data returns the dataset produced by the last Execute.
func (s *Service) Data() []weather.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// LastStatus returns the outcome of the last download, or nil if none ran.
func (s *Service) LastStatus() *fetcher.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStatus
}
