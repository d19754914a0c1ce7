package session

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Namespace is the fixed storage key under which the trial session is persisted.
// One device carries at most one record.
const Namespace = "attendkiosk.trial"

// Session is the anonymous, time-boxed trial identity of this device.
type Session struct {
	ID         string
	CreatedAt  time.Time
	EnrolledAt *time.Time
	ExpiresAt  time.Time // fixed at creation, independent of enrollment
}

// Expired reports whether the session has passed its expiry horizon.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Remaining is the trial time left, floored to whole days plus whole hours
// within the current day.
type Remaining struct {
	Days  int `json:"days"`
	Hours int `json:"hours"`
}

// Store manages the anonymous trial session. An expired or unreadable
// persisted record is treated as absent, never surfaced as an error.
type Store interface {
	// GetOrCreate returns the live session, creating a fresh one if none
	// exists or the stored one has expired. Idempotent within the expiry window.
	GetOrCreate() (*Session, error)

	// MarkEnrolled stamps the enrollment time on the live session.
	// A missing session makes this a silent no-op.
	MarkEnrolled() error

	// IsEnrolled reports whether a live session exists and has enrolled.
	IsEnrolled() bool

	// TimeRemaining returns the trial time left, or nil when not enrolled
	// or already expired.
	TimeRemaining() *Remaining

	// Reset discards the current session entirely.
	Reset() error
}

// newSession builds a fresh session with a fixed expiry horizon.
func newSession(now time.Time, expiryDays int) *Session {
	return &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		ExpiresAt: now.AddDate(0, 0, expiryDays),
	}
}

// remaining computes the floored days/hours left until expiry.
func remaining(s *Session, now time.Time) *Remaining {
	if s == nil || s.EnrolledAt == nil || s.Expired(now) {
		return nil
	}
	left := s.ExpiresAt.Sub(now)
	days := int(left.Hours()) / 24
	hours := int(left.Hours()) % 24
	return &Remaining{Days: days, Hours: hours}
}

// valid reports whether a loaded record is usable. Anything else is
// discarded as if no session existed.
func valid(s *Session) bool {
	if s == nil {
		return false
	}
	if s.ID == "" || s.CreatedAt.IsZero() || s.ExpiresAt.IsZero() {
		log.Warn("Discarding unusable trial session record")
		return false
	}
	return true
}
