package storage

import "time"

// SessionRow is the relational shape of a server-side session record.
type SessionRow struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	SessionID    string     `gorm:"uniqueIndex;not null" json:"session_id"`
	UserID       string     `gorm:"index;not null" json:"user_id"`
	UserEmail    string     `gorm:"not null" json:"user_email"`
	UserRole     string     `json:"user_role"`
	IPAddress    string     `json:"ip_address"`
	UserAgent    string     `json:"user_agent"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity time.Time  `json:"last_activity"`
	ExpiresAt    time.Time  `gorm:"index" json:"expires_at"`
	IsActive     bool       `gorm:"default:true" json:"is_active"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
}

func (SessionRow) TableName() string {
	return "sessions"
}

// LockoutRow tracks failed login attempts per account email.
type LockoutRow struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	Email               string     `gorm:"uniqueIndex;not null" json:"email"`
	FailedAttempts      int        `gorm:"default:0" json:"failed_attempts"`
	ConsecutiveLockouts int        `gorm:"default:0" json:"consecutive_lockouts"`
	LastAttemptAt       time.Time  `json:"last_attempt_at"`
	LockedUntil         *time.Time `gorm:"index" json:"locked_until,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (LockoutRow) TableName() string {
	return "account_lockouts"
}
