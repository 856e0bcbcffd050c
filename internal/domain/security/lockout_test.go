package security

import (
	"context"
	"sync"
	"testing"
	"time"

	"medboard-server-go/internal/domain/eventbus"
	"medboard-server-go/internal/domain/security/store"
	errs "medboard-server-go/internal/platform/errors"
)

type testLogger struct {
	t *testing.T
}

func (l *testLogger) Debug(format string, args ...any) { l.t.Logf("DEBUG "+format, args...) }
func (l *testLogger) Info(format string, args ...any)  { l.t.Logf("INFO  "+format, args...) }
func (l *testLogger) Warn(format string, args ...any)  { l.t.Logf("WARN  "+format, args...) }
func (l *testLogger) Error(format string, args ...any) { l.t.Logf("ERROR "+format, args...) }

type lockoutCollector struct {
	mutex   sync.Mutex
	engaged []eventbus.LockoutEventData
	cleared []eventbus.LockoutEventData
}

func (c *lockoutCollector) countEngaged() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.engaged)
}

func (c *lockoutCollector) countCleared() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.cleared)
}

func newTestTracker(t *testing.T) (*LockoutTracker, store.Store, *lockoutCollector) {
	t.Helper()

	bus := eventbus.New(2)
	t.Cleanup(bus.Close)

	collector := &lockoutCollector{}
	if err := bus.Subscribe(eventbus.EventLockoutEngaged, func(data eventbus.LockoutEventData) {
		collector.mutex.Lock()
		collector.engaged = append(collector.engaged, data)
		collector.mutex.Unlock()
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := bus.Subscribe(eventbus.EventLockoutCleared, func(data eventbus.LockoutEventData) {
		collector.mutex.Lock()
		collector.cleared = append(collector.cleared, data)
		collector.mutex.Unlock()
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	st := store.NewMemory(store.Config{})
	tracker, err := NewLockoutTracker(LockoutOptions{
		Store:       st,
		Logger:      &testLogger{t},
		Bus:         bus,
		MaxAttempts: 5,
		Backoff:     SteppedBackoff(15*time.Minute, 24*time.Hour),
	})
	if err != nil {
		t.Fatalf("NewLockoutTracker: %v", err)
	}
	t.Cleanup(func() { _ = tracker.Close() })
	return tracker, st, collector
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSteppedBackoff(t *testing.T) {
	backoff := SteppedBackoff(15*time.Minute, 24*time.Hour)

	cases := []struct {
		consecutive int
		want        time.Duration
	}{
		{0, 15 * time.Minute},
		{1, 30 * time.Minute},
		{2, time.Hour},
		{3, 2 * time.Hour},
		{10, 24 * time.Hour},
		{-1, 15 * time.Minute},
	}
	for _, tc := range cases {
		if got := backoff(tc.consecutive); got != tc.want {
			t.Fatalf("backoff(%d) = %s, want %s", tc.consecutive, got, tc.want)
		}
	}
}

func TestFailedAttemptsBelowThreshold(t *testing.T) {
	ctx := context.Background()
	tracker, _, collector := newTestTracker(t)

	for i := 1; i <= 4; i++ {
		rec, err := tracker.RecordFailedAttempt(ctx, "doc@clinic.test")
		if err != nil {
			t.Fatalf("RecordFailedAttempt: %v", err)
		}
		if rec.FailedAttempts != i {
			t.Fatalf("attempt %d: got count %d", i, rec.FailedAttempts)
		}
		if rec.Locked(time.Now()) {
			t.Fatalf("attempt %d should not lock", i)
		}
	}
	if collector.countEngaged() != 0 {
		t.Fatalf("no lockout should have been broadcast")
	}
}

func TestFifthAttemptEngagesLockout(t *testing.T) {
	ctx := context.Background()
	tracker, _, collector := newTestTracker(t)

	var rec LockoutRecord
	var err error
	for i := 0; i < 5; i++ {
		rec, err = tracker.RecordFailedAttempt(ctx, "doc@clinic.test")
		if err != nil {
			t.Fatalf("RecordFailedAttempt: %v", err)
		}
	}

	now := time.Now()
	if !rec.Locked(now) {
		t.Fatalf("fifth attempt must engage the lockout: %+v", rec)
	}
	if rec.ConsecutiveLockouts != 1 {
		t.Fatalf("expected first lockout, got %d", rec.ConsecutiveLockouts)
	}
	if rec.FailedAttempts != 0 {
		t.Fatalf("attempt counter must reset on lockout, got %d", rec.FailedAttempts)
	}
	remaining := rec.Remaining(now)
	if remaining <= 14*time.Minute || remaining > 15*time.Minute {
		t.Fatalf("expected a ~15m window, got %s", remaining)
	}

	waitFor(t, "lockout broadcast", func() bool { return collector.countEngaged() == 1 })
}

func TestAttemptsWhileLockedAreNotCounted(t *testing.T) {
	ctx := context.Background()
	tracker, _, _ := newTestTracker(t)

	for i := 0; i < 5; i++ {
		if _, err := tracker.RecordFailedAttempt(ctx, "doc@clinic.test"); err != nil {
			t.Fatalf("RecordFailedAttempt: %v", err)
		}
	}

	rec, err := tracker.RecordFailedAttempt(ctx, "doc@clinic.test")
	if err != nil {
		t.Fatalf("RecordFailedAttempt while locked: %v", err)
	}
	if rec.FailedAttempts != 0 || rec.ConsecutiveLockouts != 1 {
		t.Fatalf("locked-out attempt must not mutate the record: %+v", rec)
	}
}

func TestLockoutEscalates(t *testing.T) {
	ctx := context.Background()
	tracker, st, _ := newTestTracker(t)

	for i := 0; i < 5; i++ {
		if _, err := tracker.RecordFailedAttempt(ctx, "doc@clinic.test"); err != nil {
			t.Fatalf("RecordFailedAttempt: %v", err)
		}
	}

	// simulate the first window passing
	rec, err := st.Get(ctx, "doc@clinic.test")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	past := time.Now().Add(-time.Minute)
	rec.LockedUntil = &past
	if err := st.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	for i := 0; i < 5; i++ {
		rec, err = tracker.RecordFailedAttempt(ctx, "doc@clinic.test")
		if err != nil {
			t.Fatalf("RecordFailedAttempt: %v", err)
		}
	}

	now := time.Now()
	if rec.ConsecutiveLockouts != 2 {
		t.Fatalf("expected second lockout, got %d", rec.ConsecutiveLockouts)
	}
	remaining := rec.Remaining(now)
	if remaining <= 29*time.Minute || remaining > 30*time.Minute {
		t.Fatalf("second lockout should double to ~30m, got %s", remaining)
	}
}

func TestClearResetsEscalation(t *testing.T) {
	ctx := context.Background()
	tracker, _, collector := newTestTracker(t)

	for i := 0; i < 5; i++ {
		if _, err := tracker.RecordFailedAttempt(ctx, "doc@clinic.test"); err != nil {
			t.Fatalf("RecordFailedAttempt: %v", err)
		}
	}
	if err := tracker.Clear(ctx, "doc@clinic.test"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	waitFor(t, "cleared broadcast", func() bool { return collector.countCleared() == 1 })

	if _, ok, err := tracker.Get(ctx, "doc@clinic.test"); err != nil || ok {
		t.Fatalf("cleared account must have a clean slate: ok=%v err=%v", ok, err)
	}

	// the next lockout starts from the base window again
	var rec LockoutRecord
	var err error
	for i := 0; i < 5; i++ {
		rec, err = tracker.RecordFailedAttempt(ctx, "doc@clinic.test")
		if err != nil {
			t.Fatalf("RecordFailedAttempt: %v", err)
		}
	}
	if rec.ConsecutiveLockouts != 1 {
		t.Fatalf("escalation must restart after clear, got %d", rec.ConsecutiveLockouts)
	}
}

func TestCheckAllowed(t *testing.T) {
	ctx := context.Background()
	tracker, _, _ := newTestTracker(t)

	if err := tracker.CheckAllowed(ctx, "doc@clinic.test"); err != nil {
		t.Fatalf("clean account must be allowed: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := tracker.RecordFailedAttempt(ctx, "doc@clinic.test"); err != nil {
			t.Fatalf("RecordFailedAttempt: %v", err)
		}
	}

	err := tracker.CheckAllowed(ctx, "doc@clinic.test")
	if err == nil {
		t.Fatalf("locked account must be rejected")
	}
	if !errs.IsKind(err, errs.KindLockout) {
		t.Fatalf("expected a lockout-kind error, got %v", err)
	}

	locked, remaining, err := tracker.IsLocked(ctx, "doc@clinic.test")
	if err != nil {
		t.Fatalf("IsLocked: %v", err)
	}
	if !locked || remaining <= 0 {
		t.Fatalf("expected an active lockout with remaining time, got %v %s", locked, remaining)
	}
}

func TestLockoutRequiresEmail(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	if _, err := tracker.RecordFailedAttempt(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty email")
	}
}
