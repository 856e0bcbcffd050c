package model

import "time"

// Record is the server-side session record and the single source of truth
// for "who has a live session right now".
type Record struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	UserEmail    string    `json:"user_email"`
	UserRole     string    `json:"user_role,omitempty"`
	IPAddress    string    `json:"ip_address,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	ExpiresAt    time.Time `json:"expires_at"`
	IsActive     bool      `json:"is_active"`
}

// Live reports whether the record should be visible to enumeration: active
// and not past its expiry at the supplied instant.
func (r Record) Live(now time.Time) bool {
	return r.IsActive && now.Before(r.ExpiresAt)
}

// StoredSession is the reduced client-side view mirrored into the local
// cache. It is advisory only and always reconcilable against Record.
type StoredSession struct {
	SessionID    string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	UserEmail    string    `json:"user_email"`
	UserRole     string    `json:"user_role,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	LastActivity time.Time `json:"last_activity"`
}

// Stats aggregates the live session population for the admin surface.
type Stats struct {
	TotalActiveSessions    int     `json:"total_active_sessions"`
	UniqueUsers            int     `json:"unique_users"`
	AverageSessionsPerUser float64 `json:"average_sessions_per_user"`
}

// Logger provides the minimal logging contract required by the session domain.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}
