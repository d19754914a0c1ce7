package database

import (
	"errors"
	"time"

	"github.com/mispartech/new-mispartechnologies-sub001/internal/core/models"

	"gorm.io/gorm"
)

// Repository defines the database operations the rest of the application uses.
type Repository interface {
	// TrialSession methods
	GetTrialSession(namespace string) (*models.TrialSession, error)
	SaveTrialSession(session *models.TrialSession) error
	DeleteTrialSession(namespace string) error

	// Sighting methods
	SaveSighting(sighting *models.Sighting) error
	GetRecentSightings(limit int) ([]models.Sighting, error)
	DeleteSightingsBefore(cutoff time.Time) (int64, error)
	DeleteExpiredTrialSessions(now time.Time) (int64, error)
}

// SQLiteRepository implements Repository on the GORM SQLite handle.
type SQLiteRepository struct {
	db *gorm.DB
}

// NewSQLiteRepository creates a new SQLite repository instance.
func NewSQLiteRepository(db *gorm.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetTrialSession fetches the session record for the given namespace.
// A missing record is returned as (nil, nil).
func (r *SQLiteRepository) GetTrialSession(namespace string) (*models.TrialSession, error) {
	var session models.TrialSession
	result := r.db.Where("namespace = ?", namespace).First(&session)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &session, nil
}

// SaveTrialSession persists the session record immediately.
func (r *SQLiteRepository) SaveTrialSession(session *models.TrialSession) error {
	return r.db.Save(session).Error
}

// DeleteTrialSession removes the session record for the given namespace.
func (r *SQLiteRepository) DeleteTrialSession(namespace string) error {
	return r.db.Unscoped().Where("namespace = ?", namespace).Delete(&models.TrialSession{}).Error
}

// SaveSighting persists one applied recognition result.
func (r *SQLiteRepository) SaveSighting(sighting *models.Sighting) error {
	return r.db.Create(sighting).Error
}

// GetRecentSightings returns the newest sightings, most recent first.
func (r *SQLiteRepository) GetRecentSightings(limit int) ([]models.Sighting, error) {
	var sightings []models.Sighting
	result := r.db.Order("seen_at DESC").Limit(limit).Find(&sightings)
	if result.Error != nil {
		return nil, result.Error
	}
	return sightings, nil
}

// DeleteSightingsBefore removes sightings older than the cutoff and returns the count.
func (r *SQLiteRepository) DeleteSightingsBefore(cutoff time.Time) (int64, error) {
	result := r.db.Unscoped().Where("seen_at < ?", cutoff).Delete(&models.Sighting{})
	return result.RowsAffected, result.Error
}

// DeleteExpiredTrialSessions removes session rows past their expiry horizon.
func (r *SQLiteRepository) DeleteExpiredTrialSessions(now time.Time) (int64, error) {
	result := r.db.Unscoped().Where("expires_at <= ?", now).Delete(&models.TrialSession{})
	return result.RowsAffected, result.Error
}
