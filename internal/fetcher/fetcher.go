// Package fetcher obtains hourly observations for a location, from a remote
// provider or from a synthetic generator, and writes them through the store.
package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chadmayfield/weathercache/internal/weather"
)

// Fetcher downloads observations for a location into the store and keeps the
// outcome of the last download for reporting.
type Fetcher interface {
	// Download inserts a batch of observations for loc, one record at a time.
	// Recoverable transport failures are recorded in Status and return nil.
	Download(ctx context.Context, loc weather.Location) error

	// Status returns the outcome of the last Download.
	Status() Status
}

// Inserter is the part of the store a fetcher writes through.
type Inserter interface {
	Insert(ctx context.Context, obs weather.Observation) (bool, error)
}

// Status sentinels.
const (
	StatusInit   = "init"
	StatusOK     = "OK"
	StatusFailed = "FAILED"
)

// Status is the outcome of one Download call.
type Status struct {
	Source         string // "api" or "mock"
	Code           int    // HTTP status code; 0 when no response was received
	Text           string
	Fetched        int // rows produced by the source
	RecordsWritten int // rows actually inserted after deduplication
	Err            error
}

// OK reports whether the last download completed. A 2xx code alone is not
// enough: decoding or storing can still fail after it.
func (s Status) OK() bool {
	return s.Text == StatusOK
}

func (s Status) String() string {
	var b strings.Builder
	switch s.Source {
	case "mock":
		b.WriteString("Mocked service status code: ")
	default:
		b.WriteString("API status code: ")
	}
	if s.Code != 0 {
		fmt.Fprintf(&b, "%d", s.Code)
	} else {
		b.WriteString(s.Text)
	}
	if s.Err != nil {
		fmt.Fprintf(&b, " (%v)", s.Err)
	}
	return b.String()
}

// LogValue renders the status as a structured slog group.
func (s Status) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("source", s.Source),
		slog.String("status", s.Text),
		slog.Int("fetched", s.Fetched),
		slog.Int("records_written", s.RecordsWritten),
	}
	if s.Code != 0 {
		attrs = append(attrs, slog.Int("code", s.Code))
	}
	if s.Err != nil {
		attrs = append(attrs, slog.String("error", s.Err.Error()))
	}
	return slog.GroupValue(attrs...)
}

// Mode selects the fetcher implementation.
type Mode string

const (
	ModeAPI  Mode = "API"
	ModeMock Mode = "MOCK"
)

// ParseMode accepts "API" or "MOCK" in any case. Anything else is a ModeError.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModeAPI, ModeMock:
		return m, nil
	default:
		return "", weather.E(weather.KindMode, "selecting fetcher", fmt.Errorf("invalid mode %q (want API or MOCK)", s))
	}
}

// Option configures fetchers built by New.
type Option func(*options)

type options struct {
	timeout time.Duration
	now     func() time.Time
}

// WithTimeout sets the HTTP timeout of the live fetcher.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithClock overrides the clock used by the synthetic fetcher.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New returns the live or synthetic fetcher for mode, bound to store. The mode
// is validated before anything else, so an invalid mode never touches the
// store or the source file. source is the path of the provider configuration
// file and is only read in API mode.
func New(mode, source string, store Inserter, logger *slog.Logger, opts ...Option) (Fetcher, error) {
	m, err := ParseMode(mode)
	if err != nil {
		return nil, err
	}

	o := options{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	switch m {
	case ModeMock:
		f := NewMockFetcher(store, logger)
		if o.now != nil {
			f.now = o.now
		}
		return f, nil
	default:
		src, err := LoadSource(source)
		if err != nil {
			return nil, err
		}
		return NewAPIFetcher(src, store, logger, o.timeout), nil
	}
}
