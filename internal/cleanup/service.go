package cleanup

import (
	"time"

	"github.com/mispartech/new-mispartechnologies-sub001/internal/database"

	log "github.com/sirupsen/logrus"
)

// Service handles the automatic cleanup of old local data: sighting history
// past the retention window and trial sessions past their expiry horizon.
type Service struct {
	repo          database.Repository
	retentionDays int
	checkInterval time.Duration
	stopChan      chan struct{}
}

// NewService creates a new cleanup service. Returns nil when cleanup is
// disabled (retention_days <= 0).
func NewService(repo database.Repository, retentionDays int, checkInterval time.Duration) *Service {
	if retentionDays <= 0 {
		log.Info("Automatic cleanup disabled (retention_days <= 0).")
		return nil
	}
	if repo == nil {
		log.Error("Cannot initialize cleanup service: repository is nil")
		return nil
	}
	log.Infof("Initializing cleanup service: RetentionDays=%d, CheckInterval=%s", retentionDays, checkInterval)
	return &Service{
		repo:          repo,
		retentionDays: retentionDays,
		checkInterval: checkInterval,
		stopChan:      make(chan struct{}),
	}
}

// StartBackgroundCleanup starts a goroutine that periodically runs the
// cleanup cycle. The first cycle runs immediately.
func (s *Service) StartBackgroundCleanup() {
	if s == nil {
		return
	}
	log.Info("Starting background cleanup routine...")

	go s.RunCleanupCycle()

	ticker := time.NewTicker(s.checkInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.RunCleanupCycle()
			case <-s.stopChan:
				log.Info("Stopping background cleanup routine.")
				return
			}
		}
	}()
}

// StopBackgroundCleanup signals the background routine to stop.
func (s *Service) StopBackgroundCleanup() {
	if s == nil || s.stopChan == nil {
		return
	}
	select {
	case <-s.stopChan:
		// Already closed
	default:
		close(s.stopChan)
	}
}

// RunCleanupCycle performs one cleanup pass.
func (s *Service) RunCleanupCycle() {
	if s == nil || s.retentionDays <= 0 {
		return
	}

	now := time.Now()
	cutoff := now.AddDate(0, 0, -s.retentionDays)
	log.Debugf("Cleanup: deleting sightings older than %s", cutoff.Format(time.RFC3339))

	deleted, err := s.repo.DeleteSightingsBefore(cutoff)
	if err != nil {
		log.Errorf("Cleanup: failed to delete old sightings: %v", err)
	} else if deleted > 0 {
		log.Infof("Cleanup: deleted %d sighting(s) older than retention period", deleted)
	}

	expired, err := s.repo.DeleteExpiredTrialSessions(now)
	if err != nil {
		log.Errorf("Cleanup: failed to delete expired trial sessions: %v", err)
	} else if expired > 0 {
		log.Infof("Cleanup: deleted %d expired trial session(s)", expired)
	}
}
