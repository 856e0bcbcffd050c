package session

import (
	"context"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// ValidatorOptions configures a Validator.
type ValidatorOptions struct {
	Manager *Manager
	Cache   *Cache
	Logger  Logger
	// CreationGrace skips the server round trip for sessions created
	// moments ago, avoiding the race where a just-written record fails
	// strict validation due to propagation lag.
	CreationGrace time.Duration
	// InactivityThreshold is the locally enforced idle limit.
	InactivityThreshold time.Duration
}

// Validator gates access at each protected navigation: local checks first,
// then reconciliation against the session store. Transient infra failures
// fail open on a locally valid session; availability is preferred over
// strict correctness for backend blips.
type Validator struct {
	manager             *Manager
	cache               *Cache
	logger              Logger
	creationGrace       time.Duration
	inactivityThreshold time.Duration
	group               singleflight.Group
}

// NewValidator wires a Validator.
func NewValidator(opts ValidatorOptions) *Validator {
	grace := opts.CreationGrace
	if grace <= 0 {
		grace = 10 * time.Second
	}
	threshold := opts.InactivityThreshold
	if threshold <= 0 {
		threshold = time.Duration(defaultTimeoutMinutes) * time.Minute
	}
	return &Validator{
		manager:             opts.Manager,
		cache:               opts.Cache,
		logger:              opts.Logger,
		creationGrace:       grace,
		inactivityThreshold: threshold,
	}
}

// createdAtFromSessionID recovers the creation instant from the
// time-prefixed session identifier ("sess_<unix-ms>_<random>").
func createdAtFromSessionID(sessionID string) (time.Time, bool) {
	parts := strings.SplitN(sessionID, "_", 3)
	if len(parts) != 3 || parts[0] != "sess" {
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}

// Validate decides whether the current client session may proceed.
func (v *Validator) Validate(ctx context.Context) bool {
	stored := v.cache.read()
	if stored == nil {
		// fresh-login path, nothing to invalidate
		return true
	}

	now := time.Now()
	if now.After(stored.ExpiresAt) {
		v.logger.Debug("local session expired: %s", stored.SessionID)
		v.cache.Clear()
		return false
	}
	if now.Sub(stored.LastActivity) > v.inactivityThreshold {
		v.logger.Debug("local session idle past threshold: %s", stored.SessionID)
		v.cache.Clear()
		return false
	}
	if createdAt, ok := createdAtFromSessionID(stored.SessionID); ok {
		if now.Sub(createdAt) < v.creationGrace {
			return true
		}
	}

	type outcome struct {
		rec Record
		ok  bool
	}
	res, err, _ := v.group.Do(stored.SessionID, func() (interface{}, error) {
		rec, ok, err := v.manager.ValidateSession(ctx, stored.SessionID)
		if err != nil {
			return nil, err
		}
		return outcome{rec: rec, ok: ok}, nil
	})
	if err != nil {
		// transient infra failure: fail open on the locally valid session
		v.logger.Warn("server validation unavailable for %s, allowing local session: %v",
			stored.SessionID, err)
		return true
	}

	out := res.(outcome)
	if !out.ok {
		v.cache.Clear()
		return false
	}
	v.cache.Store(out.rec)
	return true
}

// ForceLogout destroys the server session best-effort, then clears the
// local cache unconditionally.
func (v *Validator) ForceLogout(ctx context.Context) {
	if stored := v.cache.read(); stored != nil {
		if err := v.manager.DestroySession(ctx, stored.SessionID); err != nil {
			v.logger.Warn("server-side logout failed for %s: %v", stored.SessionID, err)
		}
	}
	v.cache.Clear()
}
