package store

import (
	"context"
	"errors"
	"time"

	"medboard-server-go/internal/domain/security/model"
)

// ErrNotFound marks reads of lockout records that do not exist. Treated by
// callers as "account has a clean slate", never a failure.
var ErrNotFound = errors.New("lockout record not found")

// Store persists per-account lockout records, keyed by email.
type Store interface {
	Put(ctx context.Context, rec model.LockoutRecord) error
	Get(ctx context.Context, email string) (model.LockoutRecord, error)
	// Delete removes the record. Deleting a missing record is a no-op.
	Delete(ctx context.Context, email string) error
	List(ctx context.Context) ([]model.LockoutRecord, error)
	// CleanupExpired removes records whose lockout has long passed and
	// which have seen no attempts within age. Active lockouts are never
	// touched. Returns the number of records removed.
	CleanupExpired(ctx context.Context, age time.Duration) (int, error)
	Close(ctx context.Context) error
}

// Config describes the store selection parameters, shared shape with the
// session store so both ride the same backend choice.
type Config struct {
	Driver string
	Redis  *RedisConfig
	SQLite *SQLiteConfig
}

// RedisConfig captures connection options.
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
}

// SQLiteConfig provides the database dependency selector.
type SQLiteConfig struct {
	DSN string
}
