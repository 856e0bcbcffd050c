package model

import "time"

// LockoutRecord tracks failed login attempts for one account email.
type LockoutRecord struct {
	Email               string     `json:"email"`
	FailedAttempts      int        `json:"failed_attempts"`
	ConsecutiveLockouts int        `json:"consecutive_lockouts"`
	LastAttempt         time.Time  `json:"last_attempt"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
}

// Locked reports whether the account is locked at the supplied instant.
func (r LockoutRecord) Locked(now time.Time) bool {
	return r.LockedUntil != nil && now.Before(*r.LockedUntil)
}

// Remaining returns how long the lockout still holds, zero when unlocked.
func (r LockoutRecord) Remaining(now time.Time) time.Duration {
	if r.LockedUntil == nil {
		return 0
	}
	d := r.LockedUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Logger provides the minimal logging contract required by the security domain.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}
