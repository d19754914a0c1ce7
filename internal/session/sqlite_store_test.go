package session

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mispartech/new-mispartechnologies-sub001/config"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/database"
)

func openSQLiteStore(t *testing.T, dbFile string) *SQLiteStore {
	t.Helper()
	db, err := database.Open(config.DBConfig{File: dbFile})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return NewSQLiteStore(database.NewSQLiteRepository(db), 7)
}

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	return openSQLiteStore(t, filepath.Join(t.TempDir(), "test.db"))
}

func TestSQLiteStoreSurvivesReload(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "test.db")
	store := openSQLiteStore(t, dbFile)

	first, err := store.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := store.MarkEnrolled(); err != nil {
		t.Fatalf("MarkEnrolled: %v", err)
	}

	// A second store over the same file, as after a process restart.
	reopened := openSQLiteStore(t, dbFile)
	again, err := reopened.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("session replaced across restart: %s vs %s", again.ID, first.ID)
	}
	if !reopened.IsEnrolled() {
		t.Errorf("enrollment stamp lost across restart")
	}
}

func TestSQLiteStoreClearsExpiredRow(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store := newTestSQLiteStore(t)
	store.SetClock(fixedClock(start))

	first, err := store.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if err := store.MarkEnrolled(); err != nil {
		t.Fatalf("MarkEnrolled: %v", err)
	}

	store.SetClock(fixedClock(start.AddDate(0, 0, 8)))
	if store.IsEnrolled() {
		t.Errorf("expired session still reported as enrolled")
	}
	fresh, err := store.GetOrCreate()
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if fresh.ID == first.ID {
		t.Errorf("expired session row was reused")
	}
	if fresh.EnrolledAt != nil {
		t.Errorf("fresh session carries an enrollment stamp")
	}
}

func TestSQLiteStoreReset(t *testing.T) {
	store := newTestSQLiteStore(t)

	first, _ := store.GetOrCreate()
	if err := store.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	fresh, _ := store.GetOrCreate()
	if fresh.ID == first.ID {
		t.Errorf("reset did not discard the persisted session")
	}
}
