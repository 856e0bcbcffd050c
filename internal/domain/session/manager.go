package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"medboard-server-go/internal/domain/eventbus"
	"medboard-server-go/internal/domain/session/model"
	"medboard-server-go/internal/domain/session/store"
)

type (
	// Record re-exports the shared session entity for callers.
	Record = model.Record
	// Logger re-exports the logging interface used across the domain.
	Logger = model.Logger
)

const (
	defaultTimeoutMinutes  = 30
	defaultMaxConcurrent   = 1
	defaultCleanupInterval = 10 * time.Minute
	minCleanupInterval     = 30 * time.Second
)

// Options encapsulates the dependencies required to construct a Manager.
type Options struct {
	Store           store.Store
	Logger          Logger
	Bus             *eventbus.Bus
	TimeoutMinutes  int
	MaxConcurrent   int
	CleanupInterval time.Duration
}

// Manager is the single source of truth for live sessions: creation with
// concurrent-session eviction, authoritative expiry on validation,
// destruction with broadcast, and the periodic expiry sweep.
type Manager struct {
	store         store.Store
	logger        Logger
	bus           *eventbus.Bus
	timeout       time.Duration
	maxConcurrent int

	cleanupInterval time.Duration
	cleanupStop     chan struct{}
	cleanupOnce     sync.Once
}

// NewManager wires a Manager using the supplied options.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("session manager requires a store")
	}
	if opts.Logger == nil {
		return nil, errors.New("session manager requires a logger")
	}
	if opts.Bus == nil {
		return nil, errors.New("session manager requires an event bus")
	}
	timeoutMinutes := opts.TimeoutMinutes
	if timeoutMinutes <= 0 {
		timeoutMinutes = defaultTimeoutMinutes
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	cleanupInterval := opts.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = defaultCleanupInterval
	} else if cleanupInterval < minCleanupInterval {
		opts.Logger.Warn(
			"cleanup interval too small, adjusting to %s",
			minCleanupInterval,
		)
		cleanupInterval = minCleanupInterval
	}

	mgr := &Manager{
		store:           opts.Store,
		logger:          opts.Logger,
		bus:             opts.Bus,
		timeout:         time.Duration(timeoutMinutes) * time.Minute,
		maxConcurrent:   maxConcurrent,
		cleanupInterval: cleanupInterval,
		cleanupStop:     make(chan struct{}),
	}

	go mgr.runCleanup()
	return mgr, nil
}

func (m *Manager) runCleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := m.CleanupExpired(context.Background()); err != nil {
				m.logger.Warn("session sweep failed: %v", err)
			}
		case <-m.cleanupStop:
			return
		}
	}
}

// newSessionID builds a time-prefixed, unguessable session identifier.
func newSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("sess_%d_%s", now.UnixMilli(), suffix)
}

// CreateSession registers a session for a freshly authenticated identity.
// When the user already holds the maximum number of live sessions the
// oldest ones are evicted first, so at most maxConcurrent remain after
// return. The limit check is best-effort against concurrent logins; the
// sweep reconciles any transient overshoot.
func (m *Manager) CreateSession(
	ctx context.Context,
	userID string,
	email string,
	role string,
	ipAddress string,
	userAgent string,
) (Record, error) {
	if userID == "" || email == "" {
		return Record{}, errors.New("user id and email required")
	}
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	// opportunistic sweep; failure must not block the login
	if _, err := m.CleanupExpired(ctx); err != nil {
		m.logger.Warn("pre-create sweep failed: %v", err)
	}

	existing, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		m.logger.Error("failed to enumerate sessions for %s: %v", userID, err)
		return Record{}, err
	}
	if len(existing) >= m.maxConcurrent {
		sort.Slice(existing, func(i, j int) bool {
			return existing[i].CreatedAt.Before(existing[j].CreatedAt)
		})
		excess := len(existing) - m.maxConcurrent + 1
		for _, victim := range existing[:excess] {
			if err := m.destroy(ctx, victim, eventbus.ReasonEvicted); err != nil {
				m.logger.Warn("failed to evict session %s: %v", victim.SessionID, err)
			}
		}
	}

	now := time.Now()
	rec := Record{
		SessionID:    newSessionID(now),
		UserID:       userID,
		UserEmail:    email,
		UserRole:     role,
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		CreatedAt:    now,
		LastActivity: now,
		ExpiresAt:    now.Add(m.timeout),
		IsActive:     true,
	}
	if err := m.store.Put(ctx, rec); err != nil {
		m.logger.Error("failed to create session for %s: %v", userID, err)
		return Record{}, err
	}

	m.logger.Debug("session created: %s user=%s", rec.SessionID, userID)
	m.bus.PublishAsync(eventbus.EventSessionCreated, eventbus.SessionCreatedData{
		SessionID: rec.SessionID,
		UserID:    rec.UserID,
		UserEmail: rec.UserEmail,
	})
	return rec, nil
}

// ValidateSession is the only place expiry is authoritatively enforced on
// read. A missing, inactive, or expired record is destroyed (if present)
// and reported as invalid; a live record has its activity window refreshed
// before being returned.
func (m *Manager) ValidateSession(ctx context.Context, sessionID string) (Record, bool, error) {
	rec, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	if !rec.Live(time.Now()) {
		if err := m.destroy(ctx, rec, eventbus.ReasonExpired); err != nil {
			m.logger.Warn("failed to destroy dead session %s: %v", sessionID, err)
		}
		return Record{}, false, nil
	}

	now := time.Now()
	rec.LastActivity = now
	rec.ExpiresAt = now.Add(m.timeout)
	if err := m.store.Put(ctx, rec); err != nil {
		m.logger.Warn("failed to refresh session %s: %v", sessionID, err)
		// the record is live; refresh failure is not grounds for logout
	}
	return rec, true, nil
}

// UpdateActivity bumps the activity window without validating liveness.
// Updating a missing session is an idempotent no-op.
func (m *Manager) UpdateActivity(ctx context.Context, sessionID string, at time.Time) error {
	rec, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if at.IsZero() {
		at = time.Now()
	}
	rec.LastActivity = at
	rec.ExpiresAt = at.Add(m.timeout)
	return m.store.Put(ctx, rec)
}

// DestroySession removes the session and broadcasts the destruction.
// Destroying a missing session never errors.
func (m *Manager) DestroySession(ctx context.Context, sessionID string) error {
	rec, err := m.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	return m.destroy(ctx, rec, eventbus.ReasonExplicit)
}

func (m *Manager) destroy(ctx context.Context, rec Record, reason string) error {
	if err := m.store.Delete(ctx, rec.SessionID); err != nil {
		return err
	}
	m.logger.Info("session destroyed: %s user=%s reason=%s", rec.SessionID, rec.UserID, reason)
	m.bus.Publish(eventbus.EventSessionDestroyed, eventbus.SessionDestroyedData{
		SessionID: rec.SessionID,
		UserID:    rec.UserID,
		UserEmail: rec.UserEmail,
		Reason:    reason,
	})
	return nil
}

// GetSession reads the record without refreshing or enforcing liveness.
func (m *Manager) GetSession(ctx context.Context, sessionID string) (Record, error) {
	return m.store.Get(ctx, sessionID)
}

// UserSessions returns the user's live sessions.
func (m *Manager) UserSessions(ctx context.Context, userID string) ([]Record, error) {
	return m.store.ListByUser(ctx, userID)
}

// AllActiveSessions returns live sessions across all users.
func (m *Manager) AllActiveSessions(ctx context.Context) ([]Record, error) {
	return m.store.ListAll(ctx)
}

// CleanupExpired sweeps dead records, broadcasting each destruction.
// Safe to call concurrently: deleting an already-deleted record is a no-op.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	removed, err := m.store.CleanupExpired(ctx)
	if err != nil {
		return len(removed), err
	}
	for _, rec := range removed {
		m.bus.Publish(eventbus.EventSessionDestroyed, eventbus.SessionDestroyedData{
			SessionID: rec.SessionID,
			UserID:    rec.UserID,
			UserEmail: rec.UserEmail,
			Reason:    eventbus.ReasonExpired,
		})
	}
	if len(removed) > 0 {
		m.logger.Info("session sweep removed %d dead sessions", len(removed))
	}
	return len(removed), nil
}

// ForceLogoutUser destroys every live session the user holds and returns
// how many were destroyed.
func (m *Manager) ForceLogoutUser(ctx context.Context, userID string) (int, error) {
	recs, err := m.store.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, rec := range recs {
		if err := m.destroy(ctx, rec, eventbus.ReasonExplicit); err != nil {
			m.logger.Warn("failed to destroy session %s: %v", rec.SessionID, err)
			continue
		}
		count++
	}
	return count, nil
}

// SessionStats derives the admin aggregate from the live session list.
func (m *Manager) SessionStats(ctx context.Context) (model.Stats, error) {
	recs, err := m.store.ListAll(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	users := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		users[rec.UserID] = struct{}{}
	}
	stats := model.Stats{
		TotalActiveSessions: len(recs),
		UniqueUsers:         len(users),
	}
	if len(users) > 0 {
		stats.AverageSessionsPerUser = float64(len(recs)) / float64(len(users))
	}
	return stats, nil
}

// Timeout exposes the configured session timeout window.
func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// Close stops the background sweep and releases the store.
func (m *Manager) Close() error {
	m.cleanupOnce.Do(func() {
		close(m.cleanupStop)
	})
	if err := m.store.Close(context.Background()); err != nil {
		m.logger.Error("failed closing session store: %v", err)
		return err
	}
	return nil
}
