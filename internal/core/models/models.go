package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TrialSession is the persisted anonymous trial identity of this device.
// There is at most one live row per namespace; an expired row counts as absent.
type TrialSession struct {
	gorm.Model
	Namespace  string     `gorm:"uniqueIndex;not null"` // fixed storage key, one record per device
	SessionID  string     `gorm:"index;not null"`       // opaque identifier, generated once
	EnrolledAt *time.Time // nil until the trial user has enrolled a face
	ExpiresAt  time.Time  `gorm:"index;not null"` // fixed offset from creation, never moved
}

// Expired reports whether the session has passed its expiry horizon.
func (s *TrialSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Sighting is one applied recognition response: who was in front of the
// camera, where, and whether the backend confirmed the attendance.
type Sighting struct {
	gorm.Model
	SessionID   string         `gorm:"index"` // trial session the sighting belongs to
	SubjectRef  string         `gorm:"index"` // identity reference returned by the backend
	DisplayName string
	Category    string  `gorm:"index"` // "member" or "visitor"
	Confidence  float64
	BoundingBox datatypes.JSON `gorm:"type:json"` // [x1, y1, x2, y2]
	Confirmed   bool           `gorm:"index"`
	SeenAt      time.Time      `gorm:"index"`
}
