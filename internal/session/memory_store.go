package session

import (
	"sync"
	"time"
)

// MemoryStore keeps the trial session in memory only. Used by tests and
// when the kiosk runs without durable storage.
type MemoryStore struct {
	expiryDays int
	now        func() time.Time
	mu         sync.Mutex
	current    *Session
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(expiryDays int) *MemoryStore {
	if expiryDays <= 0 {
		expiryDays = 7
	}
	return &MemoryStore{
		expiryDays: expiryDays,
		now:        time.Now,
	}
}

// SetClock replaces the time source; intended for tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) live() *Session {
	if !valid(s.current) || s.current.Expired(s.now()) {
		s.current = nil
	}
	return s.current
}

// GetOrCreate returns the live session or creates a fresh one.
func (s *MemoryStore) GetOrCreate() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess := s.live(); sess != nil {
		return sess, nil
	}
	s.current = newSession(s.now(), s.expiryDays)
	return s.current, nil
}

// MarkEnrolled stamps the enrollment time; no-op when no session exists.
func (s *MemoryStore) MarkEnrolled() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.live()
	if sess == nil {
		return nil
	}
	now := s.now()
	sess.EnrolledAt = &now
	return nil
}

// IsEnrolled reports whether a live, enrolled session exists.
func (s *MemoryStore) IsEnrolled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.live()
	return sess != nil && sess.EnrolledAt != nil
}

// TimeRemaining returns the floored trial time left, or nil.
func (s *MemoryStore) TimeRemaining() *Remaining {
	s.mu.Lock()
	defer s.mu.Unlock()

	return remaining(s.live(), s.now())
}

// Reset discards the current session.
func (s *MemoryStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = nil
	return nil
}
