package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"medboard-server-go/internal/domain/eventbus"
)

func TestCreateSessionAssignsPrefixedID(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t, 1)

	rec, err := mgr.CreateSession(ctx, "user-1", "doc@clinic.test", "admin", "10.0.0.1", "go-test")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !strings.HasPrefix(rec.SessionID, "sess_") {
		t.Fatalf("unexpected session id format: %s", rec.SessionID)
	}
	if !rec.IsActive {
		t.Fatalf("new session should be active")
	}
	if !rec.ExpiresAt.After(rec.CreatedAt) {
		t.Fatalf("expiry must be in the future: %+v", rec)
	}
}

func TestCreateSessionRequiresIdentity(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t, 1)

	if _, err := mgr.CreateSession(ctx, "", "doc@clinic.test", "", "", ""); err == nil {
		t.Fatalf("expected error for missing user id")
	}
	if _, err := mgr.CreateSession(ctx, "user-1", "", "", "", ""); err == nil {
		t.Fatalf("expected error for missing email")
	}
}

func TestCreateSessionEvictsOldest(t *testing.T) {
	ctx := context.Background()
	mgr, collector := newTestManager(t, 1)

	first, err := mgr.CreateSession(ctx, "user-1", "doc@clinic.test", "", "", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	second, err := mgr.CreateSession(ctx, "user-1", "doc@clinic.test", "", "", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	live, err := mgr.UserSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("UserSessions: %v", err)
	}
	if len(live) != 1 || live[0].SessionID != second.SessionID {
		t.Fatalf("expected only the newest session live, got %+v", live)
	}

	events := collector.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected 1 destroy broadcast, got %d", len(events))
	}
	if events[0].SessionID != first.SessionID || events[0].Reason != eventbus.ReasonEvicted {
		t.Fatalf("unexpected eviction event: %+v", events[0])
	}
}

func TestValidateSessionRefreshesWindow(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t, 1)

	rec, err := mgr.CreateSession(ctx, "user-1", "doc@clinic.test", "", "", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	validated, ok, err := mgr.ValidateSession(ctx, rec.SessionID)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if !ok {
		t.Fatalf("expected live session to validate")
	}
	if !validated.LastActivity.After(rec.LastActivity) {
		t.Fatalf("validation should refresh the activity window")
	}
	if !validated.ExpiresAt.After(rec.ExpiresAt) {
		t.Fatalf("validation should push the expiry forward")
	}
}

func TestValidateSessionMissingIsInvalidNotError(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t, 1)

	_, ok, err := mgr.ValidateSession(ctx, "sess_0_missing")
	if err != nil {
		t.Fatalf("missing session must not error: %v", err)
	}
	if ok {
		t.Fatalf("missing session must be invalid")
	}
}

func TestValidateSessionDestroysExpired(t *testing.T) {
	ctx := context.Background()
	mgr, collector := newTestManager(t, 1)

	rec, err := mgr.CreateSession(ctx, "user-1", "doc@clinic.test", "", "", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// backdate the expiry directly in the store
	rec.ExpiresAt = time.Now().Add(-time.Minute)
	if err := mgr.store.Put(ctx, rec); err != nil {
		t.Fatalf("backdate: %v", err)
	}

	_, ok, err := mgr.ValidateSession(ctx, rec.SessionID)
	if err != nil {
		t.Fatalf("ValidateSession: %v", err)
	}
	if ok {
		t.Fatalf("expired session must be invalid")
	}

	events := collector.snapshot()
	if len(events) != 1 || events[0].Reason != eventbus.ReasonExpired {
		t.Fatalf("expected expiry broadcast, got %+v", events)
	}

	// the record must be physically gone
	if _, err := mgr.GetSession(ctx, rec.SessionID); err == nil {
		t.Fatalf("expired session should have been destroyed")
	}
}

func TestDestroySessionIdempotent(t *testing.T) {
	ctx := context.Background()
	mgr, collector := newTestManager(t, 1)

	rec, err := mgr.CreateSession(ctx, "user-1", "doc@clinic.test", "", "", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := mgr.DestroySession(ctx, rec.SessionID); err != nil {
		t.Fatalf("DestroySession: %v", err)
	}
	if err := mgr.DestroySession(ctx, rec.SessionID); err != nil {
		t.Fatalf("second DestroySession must be a no-op: %v", err)
	}

	events := collector.snapshot()
	if len(events) != 1 || events[0].Reason != eventbus.ReasonExplicit {
		t.Fatalf("expected exactly one explicit destroy broadcast, got %+v", events)
	}
}

func TestUpdateActivityMissingSessionIsNoOp(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t, 1)

	if err := mgr.UpdateActivity(ctx, "sess_0_missing", time.Now()); err != nil {
		t.Fatalf("UpdateActivity on missing session must not error: %v", err)
	}
}

func TestCleanupExpiredBroadcastsEachRemoval(t *testing.T) {
	ctx := context.Background()
	mgr, collector := newTestManager(t, 5)

	for i := 0; i < 3; i++ {
		rec, err := mgr.CreateSession(ctx, "user-1", "doc@clinic.test", "", "", "")
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		rec.ExpiresAt = time.Now().Add(-time.Minute)
		if err := mgr.store.Put(ctx, rec); err != nil {
			t.Fatalf("backdate: %v", err)
		}
	}
	keeper, err := mgr.CreateSession(ctx, "user-2", "nurse@clinic.test", "", "", "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	count, err := mgr.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 removals, got %d", count)
	}
	events := collector.snapshot()
	if len(events) != 3 {
		t.Fatalf("expected 3 destroy broadcasts, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Reason != eventbus.ReasonExpired {
			t.Fatalf("unexpected reason: %+v", ev)
		}
	}
	if _, err := mgr.GetSession(ctx, keeper.SessionID); err != nil {
		t.Fatalf("live session should survive sweep: %v", err)
	}
}

func TestForceLogoutUser(t *testing.T) {
	ctx := context.Background()
	mgr, collector := newTestManager(t, 3)

	for i := 0; i < 2; i++ {
		if _, err := mgr.CreateSession(ctx, "user-1", "doc@clinic.test", "", "", ""); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
	}
	if _, err := mgr.CreateSession(ctx, "user-2", "nurse@clinic.test", "", "", ""); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	count, err := mgr.ForceLogoutUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("ForceLogoutUser: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 destroyed sessions, got %d", count)
	}
	if len(collector.snapshot()) != 2 {
		t.Fatalf("expected 2 destroy broadcasts")
	}

	remaining, err := mgr.UserSessions(ctx, "user-2")
	if err != nil {
		t.Fatalf("UserSessions: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("other users' sessions must survive, got %d", len(remaining))
	}
}

func TestSessionStats(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t, 3)

	if _, err := mgr.CreateSession(ctx, "user-1", "doc@clinic.test", "", "", ""); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := mgr.CreateSession(ctx, "user-1", "doc@clinic.test", "", "", ""); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := mgr.CreateSession(ctx, "user-2", "nurse@clinic.test", "", "", ""); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	stats, err := mgr.SessionStats(ctx)
	if err != nil {
		t.Fatalf("SessionStats: %v", err)
	}
	if stats.TotalActiveSessions != 3 || stats.UniqueUsers != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.AverageSessionsPerUser != 1.5 {
		t.Fatalf("unexpected average: %v", stats.AverageSessionsPerUser)
	}
}
