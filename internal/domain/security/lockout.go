package security

import (
	"context"
	"errors"
	"time"

	"medboard-server-go/internal/domain/eventbus"
	"medboard-server-go/internal/domain/security/model"
	"medboard-server-go/internal/domain/security/store"
	errs "medboard-server-go/internal/platform/errors"
)

type (
	// LockoutRecord re-exports the shared security entity for callers.
	LockoutRecord = model.LockoutRecord
	// Logger re-exports the logging interface used across the domain.
	Logger = model.Logger
)

// BackoffFunc maps the number of consecutive lockouts already served to
// the duration of the next lockout window. The curve is policy, not
// correctness; it only has to be non-decreasing.
type BackoffFunc func(consecutiveLockouts int) time.Duration

// SteppedBackoff doubles the base duration per consecutive lockout,
// capped at max.
func SteppedBackoff(base, max time.Duration) BackoffFunc {
	return func(consecutiveLockouts int) time.Duration {
		if consecutiveLockouts < 0 {
			consecutiveLockouts = 0
		}
		d := base
		for i := 0; i < consecutiveLockouts; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		if d > max {
			return max
		}
		return d
	}
}

const (
	defaultMaxAttempts = 5
	defaultCleanupAge  = 7 * 24 * time.Hour
)

// LockoutOptions encapsulates the dependencies required to construct a
// LockoutTracker.
type LockoutOptions struct {
	Store       store.Store
	Logger      Logger
	Bus         *eventbus.Bus
	MaxAttempts int
	Backoff     BackoffFunc
	CleanupAge  time.Duration
}

// LockoutTracker slows down credential guessing with escalating lockout
// windows per account email.
type LockoutTracker struct {
	store       store.Store
	logger      Logger
	bus         *eventbus.Bus
	maxAttempts int
	backoff     BackoffFunc
	cleanupAge  time.Duration
}

// NewLockoutTracker wires a LockoutTracker using the supplied options.
func NewLockoutTracker(opts LockoutOptions) (*LockoutTracker, error) {
	if opts.Store == nil {
		return nil, errors.New("lockout tracker requires a store")
	}
	if opts.Logger == nil {
		return nil, errors.New("lockout tracker requires a logger")
	}
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoff := opts.Backoff
	if backoff == nil {
		backoff = SteppedBackoff(15*time.Minute, 24*time.Hour)
	}
	cleanupAge := opts.CleanupAge
	if cleanupAge <= 0 {
		cleanupAge = defaultCleanupAge
	}
	return &LockoutTracker{
		store:       opts.Store,
		logger:      opts.Logger,
		bus:         opts.Bus,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		cleanupAge:  cleanupAge,
	}, nil
}

// RecordFailedAttempt counts one failed login. Reaching the attempt
// threshold engages a lockout whose duration escalates with each
// consecutive lockout. Attempts against an already locked account are not
// counted; the caller should have rejected them via IsLocked first.
func (t *LockoutTracker) RecordFailedAttempt(ctx context.Context, email string) (LockoutRecord, error) {
	if email == "" {
		return LockoutRecord{}, errs.New(errs.KindLockout, "record", "email required")
	}

	rec, err := t.store.Get(ctx, email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return LockoutRecord{}, err
		}
		rec = LockoutRecord{Email: email}
	}

	now := time.Now()
	if rec.Locked(now) {
		return rec, nil
	}

	rec.FailedAttempts++
	rec.LastAttempt = now

	if rec.FailedAttempts >= t.maxAttempts {
		until := now.Add(t.backoff(rec.ConsecutiveLockouts))
		rec.LockedUntil = &until
		rec.ConsecutiveLockouts++
		rec.FailedAttempts = 0

		t.logger.Warn("account locked: %s until=%s consecutive=%d",
			email, until.Format(time.RFC3339), rec.ConsecutiveLockouts)
		if t.bus != nil {
			t.bus.PublishAsync(eventbus.EventLockoutEngaged, eventbus.LockoutEventData{
				Email:               email,
				ConsecutiveLockouts: rec.ConsecutiveLockouts,
				LockedUntilMillis:   until.UnixMilli(),
			})
		}
	}

	if err := t.store.Put(ctx, rec); err != nil {
		return LockoutRecord{}, err
	}
	return rec, nil
}

// Clear wipes the account's record entirely: successful login or manual
// admin reset. Clearing an unknown account is a no-op.
func (t *LockoutTracker) Clear(ctx context.Context, email string) error {
	if err := t.store.Delete(ctx, email); err != nil {
		return err
	}
	if t.bus != nil {
		t.bus.PublishAsync(eventbus.EventLockoutCleared, eventbus.LockoutEventData{
			Email: email,
		})
	}
	return nil
}

// Get returns the account's record; ok is false for a clean slate.
func (t *LockoutTracker) Get(ctx context.Context, email string) (LockoutRecord, bool, error) {
	rec, err := t.store.Get(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LockoutRecord{}, false, nil
		}
		return LockoutRecord{}, false, err
	}
	return rec, true, nil
}

// IsLocked reports the lockout state plus the remaining wait, so callers
// can show the user a specific message.
func (t *LockoutTracker) IsLocked(ctx context.Context, email string) (bool, time.Duration, error) {
	rec, ok, err := t.Get(ctx, email)
	if err != nil || !ok {
		return false, 0, err
	}
	now := time.Now()
	return rec.Locked(now), rec.Remaining(now), nil
}

// CheckAllowed converts an active lockout into the typed rejection the
// login flow surfaces to the user.
func (t *LockoutTracker) CheckAllowed(ctx context.Context, email string) error {
	locked, remaining, err := t.IsLocked(ctx, email)
	if err != nil {
		return err
	}
	if locked {
		return errs.New(errs.KindLockout, "check",
			"account locked, retry in "+remaining.Round(time.Second).String())
	}
	return nil
}

// List returns all records for the admin view.
func (t *LockoutTracker) List(ctx context.Context) ([]LockoutRecord, error) {
	return t.store.List(ctx)
}

// CleanupExpired removes long-stale records. Pure housekeeping: active
// lockouts and recently attempted accounts are never touched.
func (t *LockoutTracker) CleanupExpired(ctx context.Context) (int, error) {
	removed, err := t.store.CleanupExpired(ctx, t.cleanupAge)
	if err != nil {
		return removed, err
	}
	if removed > 0 {
		t.logger.Info("lockout cleanup removed %d stale records", removed)
	}
	return removed, nil
}

// Close releases the underlying store.
func (t *LockoutTracker) Close() error {
	return t.store.Close(context.Background())
}
