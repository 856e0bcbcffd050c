package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"medboard-server-go/internal/domain/eventbus"
	"medboard-server-go/internal/domain/security"
	securitystore "medboard-server-go/internal/domain/security/store"
	"medboard-server-go/internal/domain/session"
	sessionstore "medboard-server-go/internal/domain/session/store"
)

var testSecret = []byte("test-secret")

type testLogger struct {
	t *testing.T
}

func (l *testLogger) Debug(format string, args ...any) { l.t.Logf("DEBUG "+format, args...) }
func (l *testLogger) Info(format string, args ...any)  { l.t.Logf("INFO  "+format, args...) }
func (l *testLogger) Warn(format string, args ...any)  { l.t.Logf("WARN  "+format, args...) }
func (l *testLogger) Error(format string, args ...any) { l.t.Logf("ERROR "+format, args...) }

func newTestRouter(t *testing.T) (*Router, *session.Manager, *security.PuzzleEngine) {
	t.Helper()

	logger := &testLogger{t}
	bus := eventbus.New(2)
	t.Cleanup(bus.Close)

	sessions, err := session.NewManager(session.Options{
		Store:  sessionstore.NewMemory(sessionstore.Config{}),
		Logger: logger,
		Bus:    bus,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { _ = sessions.Close() })

	lockouts, err := security.NewLockoutTracker(security.LockoutOptions{
		Store:  securitystore.NewMemory(securitystore.Config{}),
		Logger: logger,
		Bus:    bus,
	})
	if err != nil {
		t.Fatalf("NewLockoutTracker: %v", err)
	}
	t.Cleanup(func() { _ = lockouts.Close() })

	puzzles := security.NewPuzzleEngine(security.PuzzleOptions{Logger: logger})

	router := Build(Options{
		Logger:    logger,
		JWTSecret: testSecret,
		Sessions:  sessions,
		Lockouts:  lockouts,
		Puzzles:   puzzles,
	})
	return router, sessions, puzzles
}

func doRequest(t *testing.T, router *Router, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		token, err := GenerateJWT(testSecret, "admin-1", "admin@clinic.test", role, time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.Engine.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return resp
}

func TestHealthIsOpen(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSecuredRoutesRequireToken(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/sessions", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := httptest.NewRecorder()
	router.Engine.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with garbage token, got %d", w.Code)
	}
}

func TestRoleEnforcement(t *testing.T) {
	router, _, _ := newTestRouter(t)

	// observers may read
	rec := doRequest(t, router, http.MethodGet, "/api/sessions", "observer", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("observer GET should pass, got %d", rec.Code)
	}

	// but never mutate
	rec = doRequest(t, router, http.MethodPost, "/api/sessions/cleanup", "observer", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("observer POST should be forbidden, got %d", rec.Code)
	}

	// unknown roles read nothing
	rec = doRequest(t, router, http.MethodGet, "/api/sessions", "clerk", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unknown role should be forbidden, got %d", rec.Code)
	}
}

func TestListSessionsAndForceLogout(t *testing.T) {
	router, sessions, _ := newTestRouter(t)
	ctx := context.Background()

	if _, err := sessions.CreateSession(ctx, "user-1", "doc@clinic.test", "staff", "10.0.0.1", "go-test"); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	rec := doRequest(t, router, http.MethodGet, "/api/sessions", "admin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list sessions: %d (%s)", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	if data["count"].(float64) != 1 {
		t.Fatalf("expected 1 session, got %v", data["count"])
	}

	rec = doRequest(t, router, http.MethodPost, "/api/users/user-1/logout", "admin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("force logout: %d (%s)", rec.Code, rec.Body.String())
	}
	resp = decodeResponse(t, rec)
	if resp.Data.(map[string]any)["destroyed"].(float64) != 1 {
		t.Fatalf("expected 1 destroyed session, got %+v", resp.Data)
	}

	live, err := sessions.UserSessions(ctx, "user-1")
	if err != nil {
		t.Fatalf("UserSessions: %v", err)
	}
	if len(live) != 0 {
		t.Fatalf("expected no live sessions after force logout")
	}
}

func TestPuzzleEndpoints(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/puzzles", "admin", map[string]string{
		"account": "doc@clinic.test",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("generate puzzle: %d (%s)", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	puzzleID := data["id"].(string)

	solved := []int{0, 1, 2, 3, 4, 5, 6, 7, 8}
	rec = doRequest(t, router, http.MethodPost, "/api/puzzles/verify", "admin", map[string]any{
		"account":   "doc@clinic.test",
		"puzzle_id": puzzleID,
		"positions": solved,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("verify puzzle: %d (%s)", rec.Code, rec.Body.String())
	}

	// the challenge was consumed
	rec = doRequest(t, router, http.MethodPost, "/api/puzzles/verify", "admin", map[string]any{
		"account":   "doc@clinic.test",
		"puzzle_id": puzzleID,
		"positions": solved,
	})
	if rec.Code != http.StatusGone {
		t.Fatalf("expected 410 for a consumed challenge, got %d", rec.Code)
	}
}

func TestPuzzleVerifyWrongLayout(t *testing.T) {
	router, _, puzzles := newTestRouter(t)

	puzzle, err := puzzles.Generate("doc@clinic.test")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	rec := doRequest(t, router, http.MethodPost, "/api/puzzles/verify", "admin", map[string]any{
		"account":   "doc@clinic.test",
		"puzzle_id": puzzle.ID,
		"positions": puzzle.Positions,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unsolved layout, got %d", rec.Code)
	}
}

func TestLockoutEndpoints(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/api/lockouts", "admin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list lockouts: %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodDelete, "/api/lockouts/doc@clinic.test", "admin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset lockout: %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/lockouts/cleanup", "admin", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("cleanup lockouts: %d", rec.Code)
	}
}
