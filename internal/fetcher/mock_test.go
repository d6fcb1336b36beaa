package fetcher

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/chadmayfield/weathercache/internal/weather"
)

func newTestMockFetcher(ms *memStore, now time.Time) *MockFetcher {
	f := NewMockFetcher(ms, discardLogger())
	f.now = func() time.Time { return now }
	return f
}

func TestMockFetcher_Shape(t *testing.T) {
	ms := &memStore{}
	now := time.Date(2024, 6, 10, 13, 37, 12, 0, time.UTC)
	f := newTestMockFetcher(ms, now)

	if err := f.Download(context.Background(), berlin); err != nil {
		t.Fatalf("Download: %v", err)
	}

	if len(ms.rows) != 168 {
		t.Fatalf("got %d observations, want 168", len(ms.rows))
	}

	last := ms.rows[len(ms.rows)-1].Time
	if last != "2024-06-10T13:00" {
		t.Errorf("last time = %s, want 2024-06-10T13:00", last)
	}
	first := ms.rows[0].Time
	if first != "2024-06-03T14:00" {
		t.Errorf("first time = %s, want 2024-06-03T14:00", first)
	}

	prev, err := ms.rows[0].Timestamp()
	if err != nil {
		t.Fatal(err)
	}
	for i, obs := range ms.rows[1:] {
		ts, err := obs.Timestamp()
		if err != nil {
			t.Fatalf("row %d: %v", i+1, err)
		}
		if ts.Sub(prev) != time.Hour {
			t.Fatalf("row %d is %v after the previous, want 1h", i+1, ts.Sub(prev))
		}
		prev = ts
	}

	for i, obs := range ms.rows {
		if obs.Location != berlin {
			t.Fatalf("row %d location = %v", i, obs.Location)
		}
		for _, r := range []weather.Reading{obs.PrecipitationProbability, obs.Precipitation, obs.WindSpeed10m} {
			if !r.Valid {
				t.Fatalf("row %d has a missing reading", i)
			}
			v := r.Float64
			if math.Abs(v*10-math.Round(v*10)) > 1e-9 {
				t.Errorf("row %d value %v is not rounded to one decimal", i, v)
			}
			// 8 standard deviations; practically never exceeded.
			if v < mockMean-8*mockStdDev || v > mockMean+8*mockStdDev {
				t.Errorf("row %d value %v outside plausible range", i, v)
			}
		}
	}

	st := f.Status()
	if st.Text != StatusOK || st.Source != "mock" {
		t.Errorf("status = %+v, want mock OK", st)
	}
	if st.Fetched != 168 || st.RecordsWritten != 168 {
		t.Errorf("fetched/written = %d/%d, want 168/168", st.Fetched, st.RecordsWritten)
	}
}

func TestMockFetcher_WholeHourNow(t *testing.T) {
	ms := &memStore{}
	now := time.Date(2024, 6, 10, 13, 0, 0, 0, time.UTC)
	f := newTestMockFetcher(ms, now)

	if err := f.Download(context.Background(), berlin); err != nil {
		t.Fatal(err)
	}
	if last := ms.rows[len(ms.rows)-1].Time; last != "2024-06-10T13:00" {
		t.Errorf("last time = %s, want 2024-06-10T13:00", last)
	}
}

func TestMockFetcher_DedupAcrossOverlappingFetches(t *testing.T) {
	ms := &memStore{}
	now := time.Date(2024, 6, 10, 13, 37, 0, 0, time.UTC)
	f := newTestMockFetcher(ms, now)
	ctx := context.Background()

	if err := f.Download(ctx, berlin); err != nil {
		t.Fatal(err)
	}
	if err := f.Download(ctx, berlin); err != nil {
		t.Fatal(err)
	}
	if len(ms.rows) != 168 {
		t.Errorf("got %d rows after two fetches, want 168", len(ms.rows))
	}
	if got := f.Status().RecordsWritten; got != 0 {
		t.Errorf("second fetch wrote %d rows, want 0", got)
	}

	// Three hours later the windows overlap by 165 hours.
	f.now = func() time.Time { return now.Add(3 * time.Hour) }
	if err := f.Download(ctx, berlin); err != nil {
		t.Fatal(err)
	}
	if len(ms.rows) != 171 {
		t.Errorf("got %d rows after shifted fetch, want 171", len(ms.rows))
	}
}

func TestMockFetcher_StoreFailure(t *testing.T) {
	storeErr := weather.E(weather.KindStoreAccess, "inserting observation", errors.New("disk I/O error"))
	ms := &memStore{failAt: 5, failErr: storeErr}
	f := newTestMockFetcher(ms, time.Now())

	err := f.Download(context.Background(), berlin)
	if !weather.IsKind(err, weather.KindStoreAccess) {
		t.Fatalf("err = %v, want StoreAccessError", err)
	}
	if f.Status().Text != StatusFailed {
		t.Errorf("status = %q, want FAILED", f.Status().Text)
	}
	if len(ms.rows) != 4 {
		t.Errorf("got %d rows before failure, want 4", len(ms.rows))
	}
}

func TestNew_MockWithClock(t *testing.T) {
	ms := &memStore{}
	now := time.Date(2024, 1, 1, 0, 30, 0, 0, time.UTC)

	f, err := New("MOCK", "", ms, discardLogger(), WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Download(context.Background(), berlin); err != nil {
		t.Fatal(err)
	}
	if last := ms.rows[len(ms.rows)-1].Time; last != "2024-01-01T00:00" {
		t.Errorf("last time = %s, want 2024-01-01T00:00", last)
	}
}
