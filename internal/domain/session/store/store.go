package store

import (
	"context"
	"errors"
	"time"

	"medboard-server-go/internal/domain/session/model"
)

// ErrNotFound marks reads of sessions that do not exist (or have been
// physically removed). Callers treat it as an idempotent no-op condition,
// never a failure.
var ErrNotFound = errors.New("session not found")

// Store is the persistence boundary for session records. Implementations
// enforce last-write-wins semantics at the record level; logical liveness
// is always decided from the record's own timestamps, not backend TTLs.
type Store interface {
	// Put upserts the full record.
	Put(ctx context.Context, rec model.Record) error
	// Get returns the record regardless of liveness, or ErrNotFound.
	Get(ctx context.Context, sessionID string) (model.Record, error)
	// Delete removes the record. Deleting a missing record is a no-op.
	Delete(ctx context.Context, sessionID string) error
	// ListByUser returns only live records owned by the user.
	ListByUser(ctx context.Context, userID string) ([]model.Record, error)
	// ListAll returns live records across all users.
	ListAll(ctx context.Context) ([]model.Record, error)
	// CleanupExpired removes every dead record and returns what it removed
	// so the caller can emit per-session notifications.
	CleanupExpired(ctx context.Context) ([]model.Record, error)
	// Stats returns backend debug information.
	Stats(ctx context.Context) (map[string]any, error)
	Close(ctx context.Context) error
}

// Config describes the high level store selection parameters.
type Config struct {
	Driver string
	Redis  *RedisConfig
	SQLite *SQLiteConfig
	Memory *MemoryConfig
}

// MemoryConfig holds in-memory tuning knobs.
type MemoryConfig struct{}

// SQLiteConfig provides the database dependency selector.
type SQLiteConfig struct {
	DSN string
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
	// Retention keeps physically stored records around past their logical
	// expiry so sweeps can account for and announce them.
	Retention time.Duration
}
