package eventbus

// Topics published by the session-security services.
const (
	// session lifecycle
	EventSessionCreated   = "session:created"
	EventSessionDestroyed = "session:destroyed"

	// account security
	EventLockoutEngaged = "lockout:engaged"
	EventLockoutCleared = "lockout:cleared"
)

// Destroy reasons carried by SessionDestroyedData.
const (
	ReasonExplicit = "explicit"
	ReasonExpired  = "expired"
	ReasonEvicted  = "evicted"
)

// SessionCreatedData announces a freshly created session.
type SessionCreatedData struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`
}

// SessionDestroyedData is broadcast whenever a session dies so open views
// can force an immediate client-side logout without polling.
type SessionDestroyedData struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`
	Reason    string `json:"reason"`
}

// LockoutEventData announces lockout state changes for an account.
type LockoutEventData struct {
	Email               string `json:"email"`
	ConsecutiveLockouts int    `json:"consecutive_lockouts"`
	LockedUntilMillis   int64  `json:"locked_until_ms,omitempty"`
}
