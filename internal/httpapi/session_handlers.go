package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"gymgate.dev/internal/auth"
)

type sessionRequest struct {
	StaffID string `json:"staff_id"`
	PIN     string `json:"pin"`
}

type sessionResponse struct {
	Token     string    `json:"token"`
	BranchID  string    `json:"branch_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.handleSessionCreate(w, r)
	case http.MethodDelete:
		a.handleSessionDelete(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

// handleSessionCreate is primary authentication for branch staff: PIN in,
// opaque session token out. Invalid PIN and unknown staff id produce the
// same generic 401.
func (a *API) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, kindBadRequest, err.Error(), nil)
		return
	}
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.StaffID == "" {
		writeError(w, r, http.StatusBadRequest, kindBadRequest, "staff_id is required", nil)
		return
	}

	result, err := a.pins.Verify(r.Context(), req.StaffID, req.PIN, clientIP(r))
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	if !result.Valid {
		writeError(w, r, http.StatusUnauthorized, kindUnauthenticated, "authentication failed", map[string]any{
			"attempts_remaining": result.AttemptsRemaining,
		})
		return
	}

	session := &auth.Session{
		Token:     newSessionToken(),
		StaffID:   result.Staff.ID,
		BranchID:  result.Staff.BranchID,
		ExpiresAt: time.Now().UTC().Add(a.sessionTTL),
		IsActive:  true,
	}
	if err := a.sessions.Create(r.Context(), session); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, kindStorageUnavailable, "could not create session", nil)
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		Token:     session.Token,
		BranchID:  session.BranchID,
		ExpiresAt: session.ExpiresAt,
	})
}

// handleSessionDelete is logout. Idempotent: deleting an unknown or
// already-deleted token still returns 204.
func (a *API) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.Header.Get(branchSessionHeader))
	if token == "" {
		writeError(w, r, http.StatusBadRequest, kindBadRequest, "session token is required", nil)
		return
	}
	if err := a.sessions.Delete(r.Context(), token); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, kindStorageUnavailable, "could not delete session", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// newSessionToken draws 32 bytes from the process-wide random source.
func newSessionToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic(err)
	}
	return hex.EncodeToString(buf)
}
