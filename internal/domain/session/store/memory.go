package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"medboard-server-go/internal/domain/session/model"
)

type memoryStore struct {
	items map[string]model.Record
	mutex sync.RWMutex
}

// NewMemory builds an in-memory session store. Expiry sweeping is owned by
// the session manager so destroyed notifications are never skipped.
func NewMemory(_ Config) Store {
	return &memoryStore{
		items: make(map[string]model.Record),
	}
}

func (s *memoryStore) Put(_ context.Context, rec model.Record) error {
	if rec.SessionID == "" {
		return fmt.Errorf("session id required")
	}

	s.mutex.Lock()
	s.items[rec.SessionID] = rec
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Get(_ context.Context, sessionID string) (model.Record, error) {
	s.mutex.RLock()
	rec, ok := s.items[sessionID]
	s.mutex.RUnlock()
	if !ok {
		return model.Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *memoryStore) Delete(_ context.Context, sessionID string) error {
	s.mutex.Lock()
	delete(s.items, sessionID)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) ListByUser(_ context.Context, userID string) ([]model.Record, error) {
	now := time.Now()
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	recs := make([]model.Record, 0)
	for _, rec := range s.items {
		if rec.UserID == userID && rec.Live(now) {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func (s *memoryStore) ListAll(_ context.Context) ([]model.Record, error) {
	now := time.Now()
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	recs := make([]model.Record, 0, len(s.items))
	for _, rec := range s.items {
		if rec.Live(now) {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func (s *memoryStore) CleanupExpired(_ context.Context) ([]model.Record, error) {
	now := time.Now()
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := make([]model.Record, 0)
	for id, rec := range s.items {
		if !rec.Live(now) {
			removed = append(removed, rec)
			delete(s.items, id)
		}
	}
	return removed, nil
}

func (s *memoryStore) Stats(_ context.Context) (map[string]any, error) {
	now := time.Now()
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	live := 0
	for _, rec := range s.items {
		if rec.Live(now) {
			live++
		}
	}
	return map[string]any{
		"type":  "memory",
		"total": len(s.items),
		"live":  live,
	}, nil
}

func (s *memoryStore) Close(_ context.Context) error {
	return nil
}
