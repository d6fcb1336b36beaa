package store

import (
	"context"
	"testing"

	"github.com/chadmayfield/weathercache/internal/weather"
)

var berlin = weather.Location{Longitude: 13.41, Latitude: 52.52}

func makeObs(loc weather.Location, ts string, prob, precip, wind float64) weather.Observation {
	return weather.Observation{
		Location:                 loc,
		Time:                     ts,
		PrecipitationProbability: weather.Known(prob),
		Precipitation:            weather.Known(precip),
		WindSpeed10m:             weather.Known(wind),
	}
}

// runStoreTests exercises the Store contract against any backend.
func runStoreTests(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("InsertAndGetSingle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		obs := makeObs(berlin, "2024-06-10T12:00", 40.5, 1.2, 3.4)
		inserted, err := s.Insert(ctx, obs)
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if !inserted {
			t.Fatal("expected first insert to write a row")
		}

		got, err := s.GetSingle(ctx, berlin, "2024-06-10T12:00")
		if err != nil {
			t.Fatalf("GetSingle: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("got %d rows, want 1", len(got))
		}
		if got[0] != obs {
			t.Errorf("got %+v, want %+v", got[0], obs)
		}

		missing, err := s.GetSingle(ctx, berlin, "2024-06-10T13:00")
		if err != nil {
			t.Fatalf("GetSingle missing: %v", err)
		}
		if len(missing) != 0 {
			t.Errorf("got %d rows for absent time, want 0", len(missing))
		}
	})

	t.Run("IdempotentInsert", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		obs := makeObs(berlin, "2024-06-10T12:00", 40.5, 1.2, 3.4)
		if _, err := s.Insert(ctx, obs); err != nil {
			t.Fatalf("first insert: %v", err)
		}

		// A second insert with the same key is a no-op, even with different values.
		dup := obs
		dup.Precipitation = weather.Known(99)
		inserted, err := s.Insert(ctx, dup)
		if err != nil {
			t.Fatalf("second insert: %v", err)
		}
		if inserted {
			t.Error("duplicate insert reported a write")
		}

		got, err := s.GetSingle(ctx, berlin, obs.Time)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Fatalf("got %d rows, want 1", len(got))
		}
		if got[0].Precipitation != weather.Known(1.2) {
			t.Errorf("precipitation = %v, want original 1.2", got[0].Precipitation)
		}

		count, err := s.Count(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if count != 1 {
			t.Errorf("count = %d, want 1", count)
		}
	})

	t.Run("MissingReadingsStoredAsNull", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		obs := makeObs(berlin, "2024-06-10T12:00", 0, 0.4, 0)
		obs.PrecipitationProbability = weather.Reading{}
		if _, err := s.Insert(ctx, obs); err != nil {
			t.Fatalf("Insert: %v", err)
		}

		got, err := s.GetSingle(ctx, berlin, obs.Time)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 1 {
			t.Fatalf("got %d rows, want 1", len(got))
		}
		if got[0].PrecipitationProbability.Valid {
			t.Errorf("precipitation_probability = %+v, want missing", got[0].PrecipitationProbability)
		}
		if got[0].WindSpeed10m != weather.Known(0) {
			t.Errorf("wind_speed_10m = %+v, want a known zero", got[0].WindSpeed10m)
		}
	})

	t.Run("ExactLocationMatch", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.Insert(ctx, makeObs(berlin, "2024-06-10T12:00", 1, 2, 3)); err != nil {
			t.Fatal(err)
		}

		near := weather.Location{Longitude: 13.410001, Latitude: 52.52}
		got, err := s.GetByLocation(ctx, near)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != 0 {
			t.Errorf("nearby location matched %d rows, want 0", len(got))
		}

		// Same time at a different location is a different key.
		inserted, err := s.Insert(ctx, makeObs(near, "2024-06-10T12:00", 1, 2, 3))
		if err != nil {
			t.Fatal(err)
		}
		if !inserted {
			t.Error("expected insert for a distinct location")
		}
	})

	t.Run("GetByLocationInsertionOrder", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		times := []string{"2024-06-10T14:00", "2024-06-10T12:00", "2024-06-10T13:00"}
		for i, ts := range times {
			if _, err := s.Insert(ctx, makeObs(berlin, ts, float64(i), 0, 0)); err != nil {
				t.Fatal(err)
			}
		}
		other := weather.Location{Longitude: -122.431297, Latitude: 37.773972}
		if _, err := s.Insert(ctx, makeObs(other, "2024-06-10T12:00", 0, 0, 0)); err != nil {
			t.Fatal(err)
		}

		got, err := s.GetByLocation(ctx, berlin)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(times) {
			t.Fatalf("got %d rows, want %d", len(got), len(times))
		}
		for i, ts := range times {
			if got[i].Time != ts {
				t.Errorf("row %d time = %s, want %s", i, got[i].Time, ts)
			}
		}

		all, err := s.GetAll(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 4 {
			t.Errorf("GetAll returned %d rows, want 4", len(all))
		}
	})

	t.Run("ResetKeepsSchema", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if _, err := s.Insert(ctx, makeObs(berlin, "2024-06-10T12:00", 1, 2, 3)); err != nil {
			t.Fatal(err)
		}
		if err := s.Reset(ctx); err != nil {
			t.Fatalf("Reset: %v", err)
		}

		count, err := s.Count(ctx)
		if err != nil {
			t.Fatalf("Count after reset: %v", err)
		}
		if count != 0 {
			t.Errorf("count = %d, want 0", count)
		}

		if _, err := s.Insert(ctx, makeObs(berlin, "2024-06-10T12:00", 1, 2, 3)); err != nil {
			t.Errorf("insert after reset: %v", err)
		}
	})

	t.Run("DropRemovesSchema", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		if err := s.Drop(ctx); err != nil {
			t.Fatalf("Drop: %v", err)
		}

		_, err := s.GetByLocation(ctx, berlin)
		if !weather.IsKind(err, weather.KindStoreAccess) {
			t.Errorf("query after drop: err = %v, want StoreAccessError", err)
		}
	})
}
