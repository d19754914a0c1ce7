package session

import (
	"sync"
	"time"

	"github.com/mispartech/new-mispartechnologies-sub001/internal/core/models"
	"github.com/mispartech/new-mispartechnologies-sub001/internal/database"

	log "github.com/sirupsen/logrus"
)

// SQLiteStore persists the trial session through the repository. Every
// mutation is written through synchronously before the call returns.
type SQLiteStore struct {
	repo       database.Repository
	expiryDays int
	now        func() time.Time
	mu         sync.Mutex
}

// NewSQLiteStore creates a durable session store.
func NewSQLiteStore(repo database.Repository, expiryDays int) *SQLiteStore {
	if expiryDays <= 0 {
		expiryDays = 7
	}
	return &SQLiteStore{
		repo:       repo,
		expiryDays: expiryDays,
		now:        time.Now,
	}
}

// SetClock replaces the time source; intended for tests.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// load reads the persisted record, dropping expired or unusable rows.
func (s *SQLiteStore) load() *Session {
	record, err := s.repo.GetTrialSession(Namespace)
	if err != nil {
		log.Warnf("Failed to read trial session record, treating as absent: %v", err)
		return nil
	}
	if record == nil {
		return nil
	}

	sess := &Session{
		ID:         record.SessionID,
		CreatedAt:  record.CreatedAt,
		EnrolledAt: record.EnrolledAt,
		ExpiresAt:  record.ExpiresAt,
	}
	if !valid(sess) || sess.Expired(s.now()) {
		// Unreadable or expired rows are cleared so the next access starts fresh.
		if err := s.repo.DeleteTrialSession(Namespace); err != nil {
			log.Warnf("Failed to clear stale trial session record: %v", err)
		}
		return nil
	}
	return sess
}

// persist writes the session through to the database.
func (s *SQLiteStore) persist(sess *Session) error {
	record, err := s.repo.GetTrialSession(Namespace)
	if err != nil {
		return err
	}
	if record == nil {
		record = &models.TrialSession{Namespace: Namespace}
	}
	record.SessionID = sess.ID
	record.EnrolledAt = sess.EnrolledAt
	record.ExpiresAt = sess.ExpiresAt
	return s.repo.SaveTrialSession(record)
}

// GetOrCreate returns the live session or creates a fresh one.
func (s *SQLiteStore) GetOrCreate() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess := s.load(); sess != nil {
		return sess, nil
	}

	sess := newSession(s.now(), s.expiryDays)
	if err := s.persist(sess); err != nil {
		return nil, err
	}
	log.Infof("Created new trial session %s (expires %s)", sess.ID, sess.ExpiresAt.Format(time.RFC3339))
	return sess, nil
}

// MarkEnrolled stamps the enrollment time; no-op when no session exists.
func (s *SQLiteStore) MarkEnrolled() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.load()
	if sess == nil {
		log.Debug("MarkEnrolled called without a live trial session")
		return nil
	}
	now := s.now()
	sess.EnrolledAt = &now
	return s.persist(sess)
}

// IsEnrolled reports whether a live, enrolled session exists.
func (s *SQLiteStore) IsEnrolled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.load()
	return sess != nil && sess.EnrolledAt != nil
}

// TimeRemaining returns the floored trial time left, or nil.
func (s *SQLiteStore) TimeRemaining() *Remaining {
	s.mu.Lock()
	defer s.mu.Unlock()

	return remaining(s.load(), s.now())
}

// Reset discards the persisted session.
func (s *SQLiteStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.repo.DeleteTrialSession(Namespace)
}
