package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"medboard-server-go/internal/domain/security/model"
)

// cleanupEligible decides whether a record is pure housekeeping debris:
// never an active lockout, and no recent attempts.
func cleanupEligible(rec model.LockoutRecord, now time.Time, age time.Duration) bool {
	if rec.Locked(now) {
		return false
	}
	if now.Sub(rec.LastAttempt) <= age {
		return false
	}
	if rec.LockedUntil != nil && now.Sub(*rec.LockedUntil) <= age {
		return false
	}
	return true
}

type memoryStore struct {
	items map[string]model.LockoutRecord
	mutex sync.RWMutex
}

// NewMemory builds an in-memory lockout store.
func NewMemory(_ Config) Store {
	return &memoryStore{
		items: make(map[string]model.LockoutRecord),
	}
}

func (s *memoryStore) Put(_ context.Context, rec model.LockoutRecord) error {
	if rec.Email == "" {
		return fmt.Errorf("email required")
	}
	s.mutex.Lock()
	s.items[rec.Email] = rec
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Get(_ context.Context, email string) (model.LockoutRecord, error) {
	s.mutex.RLock()
	rec, ok := s.items[email]
	s.mutex.RUnlock()
	if !ok {
		return model.LockoutRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *memoryStore) Delete(_ context.Context, email string) error {
	s.mutex.Lock()
	delete(s.items, email)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) List(_ context.Context) ([]model.LockoutRecord, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	recs := make([]model.LockoutRecord, 0, len(s.items))
	for _, rec := range s.items {
		recs = append(recs, rec)
	}
	return recs, nil
}

func (s *memoryStore) CleanupExpired(_ context.Context, age time.Duration) (int, error) {
	now := time.Now()
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for email, rec := range s.items {
		if cleanupEligible(rec, now, age) {
			delete(s.items, email)
			removed++
		}
	}
	return removed, nil
}

func (s *memoryStore) Close(_ context.Context) error {
	return nil
}
