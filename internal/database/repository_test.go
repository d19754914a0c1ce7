package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mispartech/new-mispartechnologies-sub001/config"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/core/models"

	"gorm.io/datatypes"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := Open(config.DBConfig{File: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return NewSQLiteRepository(db)
}

func TestTrialSessionRoundTrip(t *testing.T) {
	repo := newTestRepo(t)

	missing, err := repo.GetTrialSession("kiosk.trial")
	if err != nil {
		t.Fatalf("GetTrialSession: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected (nil, nil) for missing record, got %+v", missing)
	}

	now := time.Now().UTC().Truncate(time.Second)
	record := &models.TrialSession{
		Namespace: "kiosk.trial",
		SessionID: "sess-1",
		ExpiresAt: now.AddDate(0, 0, 7),
	}
	if err := repo.SaveTrialSession(record); err != nil {
		t.Fatalf("SaveTrialSession: %v", err)
	}

	loaded, err := repo.GetTrialSession("kiosk.trial")
	if err != nil {
		t.Fatalf("GetTrialSession: %v", err)
	}
	if loaded == nil || loaded.SessionID != "sess-1" {
		t.Fatalf("loaded = %+v", loaded)
	}
	if loaded.EnrolledAt != nil {
		t.Errorf("EnrolledAt should start nil")
	}

	// Update in place through Save.
	loaded.EnrolledAt = &now
	if err := repo.SaveTrialSession(loaded); err != nil {
		t.Fatalf("SaveTrialSession update: %v", err)
	}
	updated, _ := repo.GetTrialSession("kiosk.trial")
	if updated.EnrolledAt == nil {
		t.Errorf("enrollment stamp not persisted")
	}

	if err := repo.DeleteTrialSession("kiosk.trial"); err != nil {
		t.Fatalf("DeleteTrialSession: %v", err)
	}
	gone, err := repo.GetTrialSession("kiosk.trial")
	if err != nil || gone != nil {
		t.Errorf("record survived delete: %+v, %v", gone, err)
	}
}

func TestDeleteExpiredTrialSessions(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	for _, rec := range []*models.TrialSession{
		{Namespace: "a", SessionID: "s-a", ExpiresAt: now.Add(-time.Hour)},
		{Namespace: "b", SessionID: "s-b", ExpiresAt: now.Add(time.Hour)},
	} {
		if err := repo.SaveTrialSession(rec); err != nil {
			t.Fatalf("SaveTrialSession: %v", err)
		}
	}

	deleted, err := repo.DeleteExpiredTrialSessions(now)
	if err != nil {
		t.Fatalf("DeleteExpiredTrialSessions: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if survivor, _ := repo.GetTrialSession("b"); survivor == nil {
		t.Errorf("live session was deleted")
	}
}

func TestSightingsRecentOrderAndRetention(t *testing.T) {
	repo := newTestRepo(t)
	base := time.Now().UTC().Add(-time.Hour)

	for i := 0; i < 5; i++ {
		sighting := &models.Sighting{
			SessionID:   "sess-1",
			SubjectRef:  "s-1",
			DisplayName: "Ada",
			Category:    "member",
			Confidence:  0.9,
			BoundingBox: datatypes.JSON([]byte(`[1,2,3,4]`)),
			SeenAt:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.SaveSighting(sighting); err != nil {
			t.Fatalf("SaveSighting: %v", err)
		}
	}

	recent, err := repo.GetRecentSightings(3)
	if err != nil {
		t.Fatalf("GetRecentSightings: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("len = %d, want 3", len(recent))
	}
	for i := 1; i < len(recent); i++ {
		if recent[i].SeenAt.After(recent[i-1].SeenAt) {
			t.Errorf("sightings not ordered newest first")
		}
	}

	deleted, err := repo.DeleteSightingsBefore(base.Add(2 * time.Minute))
	if err != nil {
		t.Fatalf("DeleteSightingsBefore: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	remaining, _ := repo.GetRecentSightings(10)
	if len(remaining) != 3 {
		t.Errorf("remaining = %d, want 3", len(remaining))
	}
}
