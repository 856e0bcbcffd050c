package httptransport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medboard-server-go/internal/domain/security"
	"medboard-server-go/internal/domain/session"
	"medboard-server-go/internal/domain/session/model"
	errs "medboard-server-go/internal/platform/errors"
)

type adminHandlers struct {
	logger   model.Logger
	sessions *session.Manager
	lockouts *security.LockoutTracker
	puzzles  *security.PuzzleEngine
}

func (h *adminHandlers) health(c *gin.Context) {
	RespondSuccess(c, http.StatusOK, gin.H{"status": "up"}, "")
}

// sessionView augments the record with a duration for the admin table.
type sessionView struct {
	model.Record
	DurationSeconds int64 `json:"duration_seconds"`
}

func (h *adminHandlers) listSessions(c *gin.Context) {
	recs, err := h.sessions.AllActiveSessions(c.Request.Context())
	if err != nil {
		h.logger.Error("list sessions failed: %v", err)
		RespondError(c, http.StatusInternalServerError, "failed to list sessions", nil)
		return
	}

	now := time.Now()
	views := make([]sessionView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, sessionView{
			Record:          rec,
			DurationSeconds: int64(now.Sub(rec.CreatedAt).Seconds()),
		})
	}
	RespondSuccess(c, http.StatusOK, gin.H{
		"sessions": views,
		"count":    len(views),
	}, "")
}

func (h *adminHandlers) sessionStats(c *gin.Context) {
	stats, err := h.sessions.SessionStats(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "failed to compute stats", nil)
		return
	}
	RespondSuccess(c, http.StatusOK, stats, "")
}

func (h *adminHandlers) destroySession(c *gin.Context) {
	sessionID := c.Param("id")
	if err := h.sessions.DestroySession(c.Request.Context(), sessionID); err != nil {
		h.logger.Error("destroy session %s failed: %v", sessionID, err)
		RespondError(c, http.StatusInternalServerError, "failed to destroy session", nil)
		return
	}
	RespondSuccess(c, http.StatusOK, gin.H{"session_id": sessionID}, "session destroyed")
}

func (h *adminHandlers) cleanupSessions(c *gin.Context) {
	count, err := h.sessions.CleanupExpired(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "session cleanup failed", nil)
		return
	}
	RespondSuccess(c, http.StatusOK, gin.H{"removed": count}, "")
}

func (h *adminHandlers) forceLogoutUser(c *gin.Context) {
	userID := c.Param("id")
	count, err := h.sessions.ForceLogoutUser(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("force logout %s failed: %v", userID, err)
		RespondError(c, http.StatusInternalServerError, "failed to force logout", nil)
		return
	}
	RespondSuccess(c, http.StatusOK, gin.H{"destroyed": count}, "user logged out")
}

// lockoutView carries the derived status string shown in the admin table.
type lockoutView struct {
	security.LockoutRecord
	Status           string `json:"status"`
	RemainingSeconds int64  `json:"remaining_seconds,omitempty"`
}

func lockoutStatus(rec security.LockoutRecord, now time.Time) (string, int64) {
	if rec.Locked(now) {
		remaining := rec.Remaining(now)
		return "Locked (" + remaining.Round(time.Second).String() + " remaining)",
			int64(remaining.Seconds())
	}
	if rec.FailedAttempts > 0 {
		return "Failed attempts", 0
	}
	return "Active", 0
}

func (h *adminHandlers) listLockouts(c *gin.Context) {
	recs, err := h.lockouts.List(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "failed to list lockouts", nil)
		return
	}

	now := time.Now()
	views := make([]lockoutView, 0, len(recs))
	for _, rec := range recs {
		status, remaining := lockoutStatus(rec, now)
		views = append(views, lockoutView{
			LockoutRecord:    rec,
			Status:           status,
			RemainingSeconds: remaining,
		})
	}
	RespondSuccess(c, http.StatusOK, gin.H{
		"lockouts": views,
		"count":    len(views),
	}, "")
}

func (h *adminHandlers) resetLockout(c *gin.Context) {
	email := c.Param("email")
	if err := h.lockouts.Clear(c.Request.Context(), email); err != nil {
		h.logger.Error("reset lockout %s failed: %v", email, err)
		RespondError(c, http.StatusInternalServerError, "failed to reset lockout", nil)
		return
	}
	RespondSuccess(c, http.StatusOK, gin.H{"email": email}, "lockout reset")
}

func (h *adminHandlers) cleanupLockouts(c *gin.Context) {
	count, err := h.lockouts.CleanupExpired(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "lockout cleanup failed", nil)
		return
	}
	RespondSuccess(c, http.StatusOK, gin.H{"removed": count}, "")
}

type generatePuzzleRequest struct {
	Account string `json:"account" binding:"required"`
}

func (h *adminHandlers) generatePuzzle(c *gin.Context) {
	var req generatePuzzleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "account required", nil)
		return
	}
	puzzle, err := h.puzzles.Generate(req.Account)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "failed to generate puzzle", nil)
		return
	}
	RespondSuccess(c, http.StatusOK, puzzle, "")
}

type verifyPuzzleRequest struct {
	Account   string `json:"account" binding:"required"`
	PuzzleID  string `json:"puzzle_id" binding:"required"`
	Positions []int  `json:"positions" binding:"required"`
}

func (h *adminHandlers) verifyPuzzle(c *gin.Context) {
	var req verifyPuzzleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "account, puzzle_id and positions required", nil)
		return
	}

	valid, err := h.puzzles.Verify(req.Account, req.PuzzleID, req.Positions)
	if err != nil {
		if errs.IsKind(err, errs.KindPuzzle) {
			// consumed, mismatched, or expired challenge: a fresh one is needed
			RespondError(c, http.StatusGone, "challenge no longer valid, request a new puzzle", nil)
			return
		}
		RespondError(c, http.StatusInternalServerError, "puzzle verification failed", nil)
		return
	}
	if !valid {
		RespondError(c, http.StatusBadRequest, "incorrect solution", gin.H{"valid": false})
		return
	}
	RespondSuccess(c, http.StatusOK, gin.H{"valid": true}, "")
}
