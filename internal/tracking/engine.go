package tracking

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mispartech/new-mispartechnologies-sub001/internal/core/models"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/database"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/imaging"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/integrations/visionhub"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// AttendanceState is the per-entity attendance progression.
type AttendanceState string

const (
	// StateDetecting means the identity is matched but attendance is not yet recorded.
	StateDetecting AttendanceState = "detecting"

	// StateConfirmed means the backend has recorded the attendance event.
	StateConfirmed AttendanceState = "confirmed"
)

// DefaultStalenessWindow is the maximum age of a tracked entity before eviction.
const DefaultStalenessWindow = 3 * time.Second

// TrackedEntity is one recognized identity currently believed to be in
// front of the camera.
type TrackedEntity struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"display_name"`
	Category    string          `json:"category"`
	Confidence  *float64        `json:"confidence,omitempty"`
	Box         visionhub.Box   `json:"box"`
	State       AttendanceState `json:"state"`
	LastSeenAt  time.Time       `json:"last_seen_at"`
}

// Snapshot is a read-only copy of the engine's current view.
type Snapshot struct {
	Entities []TrackedEntity `json:"entities"`
	Regions  []visionhub.Box `json:"regions"`
}

// Recognizer is the one operation the engine needs from the backend client.
type Recognizer interface {
	Recognize(ctx context.Context, frame *imaging.Frame, orgRef string) (*visionhub.Recognition, error)
}

// Engine maintains a consistent short-lived view of who is currently in
// front of the camera. It owns the tracked-entity and unidentified-region
// sets exclusively; callers only ever read snapshots.
type Engine struct {
	recognizer Recognizer
	orgRef     string
	window     time.Duration
	now        func() time.Time

	repo      database.Repository // optional sighting history
	sessionID string

	mu       sync.Mutex
	entities map[string]TrackedEntity
	regions  []visionhub.Box
}

// NewEngine creates a recognition session engine.
func NewEngine(recognizer Recognizer, orgRef string, window time.Duration) *Engine {
	if window <= 0 {
		window = DefaultStalenessWindow
	}
	return &Engine{
		recognizer: recognizer,
		orgRef:     orgRef,
		window:     window,
		now:        time.Now,
		entities:   make(map[string]TrackedEntity),
		regions:    []visionhub.Box{},
	}
}

// SetClock replaces the time source; intended for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// SetHistory enables sighting recording for the given trial session.
func (e *Engine) SetHistory(repo database.Repository, sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.repo = repo
	e.sessionID = sessionID
}

// SubmitFrame sends the frame to the recognizer and replaces the tracked
// and unidentified sets with the normalized result of this single response.
// An explicit no-face response clears both sets. A failed call leaves the
// previous state untouched and returns the error for the UI.
func (e *Engine) SubmitFrame(ctx context.Context, frame *imaging.Frame) error {
	outcome, err := e.recognizer.Recognize(ctx, frame, e.orgRef)
	if err != nil {
		// Transient failures must not visibly "un-recognize" anyone.
		log.Warnf("Recognition call failed, keeping previous tracking state: %v", err)
		return err
	}

	e.mu.Lock()

	if outcome.NoFace {
		e.entities = make(map[string]TrackedEntity)
		e.regions = []visionhub.Box{}
		e.mu.Unlock()
		return nil
	}

	seenAt := e.now()
	next := make(map[string]TrackedEntity, len(outcome.Entities))
	for _, entity := range outcome.Entities {
		state := StateDetecting
		if entity.Confirmed {
			state = StateConfirmed
		}
		next[entity.SubjectRef] = TrackedEntity{
			ID:          entity.SubjectRef,
			DisplayName: entity.DisplayName,
			Category:    entity.Category,
			Confidence:  entity.Confidence,
			Box:         entity.Box,
			State:       state,
			LastSeenAt:  seenAt,
		}
	}
	e.entities = next
	// Regions are never carried across frames.
	e.regions = append([]visionhub.Box{}, outcome.Regions...)

	repo := e.repo
	sessionID := e.sessionID
	e.mu.Unlock()

	// History writes happen outside the lock so snapshot reads never wait
	// on database I/O.
	if repo != nil {
		recordSightings(repo, sessionID, outcome.Entities, seenAt)
	}
	return nil
}

// PruneStale removes tracked entities older than the staleness window.
// Runs on its own cadence so a dropped response cannot leave an identity
// visible indefinitely.
func (e *Engine) PruneStale() {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-e.window)
	for id, entity := range e.entities {
		if entity.LastSeenAt.Before(cutoff) || entity.LastSeenAt.Equal(cutoff) {
			log.Debugf("Evicting stale tracked entity %s (last seen %s)", id, entity.LastSeenAt.Format(time.RFC3339))
			delete(e.entities, id)
		}
	}
}

// ShouldPause reports whether any tracked entity carries a backend-granted
// attendance confirmation. This is the sole signal that stops capture; a
// local confidence value never does.
func (e *Engine) ShouldPause() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, entity := range e.entities {
		if entity.State == StateConfirmed {
			return true
		}
	}
	return false
}

// Clear empties both sets; used when restarting or re-enrolling.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.entities = make(map[string]TrackedEntity)
	e.regions = []visionhub.Box{}
}

// Snapshot returns a copy of the current tracked view.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := Snapshot{
		Entities: make([]TrackedEntity, 0, len(e.entities)),
		Regions:  append([]visionhub.Box{}, e.regions...),
	}
	for _, entity := range e.entities {
		snap.Entities = append(snap.Entities, entity)
	}
	return snap
}

// recordSightings writes the applied entities to the local history.
// Failures only log; history is best-effort.
func recordSightings(repo database.Repository, sessionID string, entities []visionhub.Entity, seenAt time.Time) {
	for _, entity := range entities {
		boxJSON, err := json.Marshal(entity.Box)
		if err != nil {
			boxJSON = []byte("[]")
		}
		confidence := 0.0
		if entity.Confidence != nil {
			confidence = *entity.Confidence
		}
		sighting := &models.Sighting{
			SessionID:   sessionID,
			SubjectRef:  entity.SubjectRef,
			DisplayName: entity.DisplayName,
			Category:    entity.Category,
			Confidence:  confidence,
			BoundingBox: datatypes.JSON(boxJSON),
			Confirmed:   entity.Confirmed,
			SeenAt:      seenAt,
		}
		if err := repo.SaveSighting(sighting); err != nil {
			log.Warnf("Failed to record sighting for %s: %v", entity.SubjectRef, err)
		}
	}
}
