package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chadmayfield/weathercache/internal/weather"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store { return newTestSQLiteStore(t) })
}

func TestSQLiteStore_CreatesFileAndDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data", "weather_mocked.db")

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close() //nolint:errcheck

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("database file not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions = %04o, want 0600", perm)
	}
}

func TestSQLiteStore_UnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("not a directory"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := NewSQLiteStore(filepath.Join(blocker, "sub", "test.db"))
	if err == nil {
		t.Fatal("expected error for path below a regular file")
	}
	if !weather.IsKind(err, weather.KindStoreInit) {
		t.Errorf("err = %v, want StoreInitError", err)
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Insert(ctx, makeObs(berlin, "2024-06-10T12:00", 1, 2, 3)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close() //nolint:errcheck

	got, err := s.GetByLocation(ctx, berlin)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("got %d rows after reopen, want 1", len(got))
	}
}

func TestSQLiteStore_DropThenReopenRecreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Drop(ctx); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	_ = s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen after drop: %v", err)
	}
	defer s.Close() //nolint:errcheck

	if _, err := s.Insert(ctx, makeObs(berlin, "2024-06-10T12:00", 1, 2, 3)); err != nil {
		t.Errorf("insert after recreate: %v", err)
	}
}

func TestSQLiteStore_ClosedStoreIsAccessError(t *testing.T) {
	s := newTestSQLiteStore(t)
	_ = s.Close()

	_, err := s.Insert(context.Background(), makeObs(berlin, "2024-06-10T12:00", 1, 2, 3))
	if !weather.IsKind(err, weather.KindStoreAccess) {
		t.Errorf("err = %v, want StoreAccessError", err)
	}
}

func TestSQLiteStore_Migrations(t *testing.T) {
	s := newTestSQLiteStore(t)

	states, err := Migrations(context.Background(), "sqlite", s.DB())
	if err != nil {
		t.Fatalf("Migrations: %v", err)
	}
	if len(states) == 0 {
		t.Fatal("expected at least one migration")
	}
	for _, st := range states {
		if !st.Applied {
			t.Errorf("migration %d not applied", st.Version)
		}
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open("mysql", "whatever")
	if !weather.IsKind(err, weather.KindStoreInit) {
		t.Errorf("err = %v, want StoreInitError", err)
	}
}

func TestReplacePlaceholders(t *testing.T) {
	got := replacePlaceholders("WHERE a = ? AND b = ? AND c = ?")
	want := "WHERE a = $1 AND b = $2 AND c = $3"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
