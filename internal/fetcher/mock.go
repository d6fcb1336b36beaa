package fetcher

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"github.com/chadmayfield/weathercache/internal/weather"
)

const (
	mockHours  = 168
	mockMean   = 65.0
	mockStdDev = 5.0
)

// MockFetcher generates a week of synthetic hourly observations ending at the
// current whole hour. Values are drawn from a normal distribution.
type MockFetcher struct {
	store  Inserter
	logger *slog.Logger
	now    func() time.Time
	rand   *rand.Rand
	status Status
}

// NewMockFetcher creates a synthetic fetcher using the wall clock and a
// time-seeded random source.
func NewMockFetcher(store Inserter, logger *slog.Logger) *MockFetcher {
	seed := uint64(time.Now().UnixNano())
	return &MockFetcher{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
		rand:   rand.New(rand.NewPCG(seed, seed>>1)),
		status: Status{Source: "mock", Text: StatusInit},
	}
}

// Status returns the outcome of the last Download.
func (f *MockFetcher) Status() Status {
	return f.status
}

// Download inserts mockHours observations for loc. Store failures are returned
// unchanged; otherwise the status is always OK.
func (f *MockFetcher) Download(ctx context.Context, loc weather.Location) error {
	f.status = Status{Source: "mock", Text: StatusInit}

	batch := f.generate(loc)
	f.status.Fetched = len(batch)

	written, err := insertAll(ctx, f.store, batch)
	f.status.RecordsWritten = written
	if err != nil {
		f.status.Text = StatusFailed
		f.status.Err = err
		return err
	}

	f.status.Text = StatusOK
	f.logger.Info("generated mock observations",
		"location", loc.String(),
		"fetched", len(batch),
		"records_written", written,
	)
	return nil
}

func (f *MockFetcher) generate(loc weather.Location) []weather.Observation {
	end := f.now().UTC().Truncate(time.Hour)
	start := end.Add(-(mockHours - 1) * time.Hour)

	batch := make([]weather.Observation, 0, mockHours)
	for i := 0; i < mockHours; i++ {
		ts := start.Add(time.Duration(i) * time.Hour)
		batch = append(batch, weather.Observation{
			Location:                 loc,
			Time:                     weather.FormatTime(ts),
			PrecipitationProbability: weather.Known(f.sample()),
			Precipitation:            weather.Known(f.sample()),
			WindSpeed10m:             weather.Known(f.sample()),
		})
	}
	return batch
}

// sample draws from N(mockMean, mockStdDev) rounded to one decimal.
func (f *MockFetcher) sample() float64 {
	return math.Round((mockMean+f.rand.NormFloat64()*mockStdDev)*10) / 10
}
