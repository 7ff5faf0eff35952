package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"gymgate.dev/internal/auth"
	"gymgate.dev/internal/pin"
)

// Machine-readable error kinds. These are the stable contract; messages are
// for humans and may change.
const (
	kindBadRequest         = "bad_request"
	kindUnauthenticated    = "unauthenticated"
	kindPermissionDenied   = "permission_denied"
	kindBranchAccessDenied = "branch_access_denied"
	kindInvalidPinFormat   = "invalid_pin_format"
	kindMigrationRequired  = "migration_required"
	kindTooManyAttempts    = "too_many_attempts"
	kindNotFound           = "not_found"
	kindStorageUnavailable = "storage_unavailable"
	kindInternal           = "internal"
)

type errorBody struct {
	Kind    string         `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, kind, msg string, details map[string]any) {
	payload := map[string]any{
		"error": errorBody{Kind: kind, Message: msg, Details: details},
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// handleAuthError maps core errors onto the HTTP contract. Unknown errors
// collapse into an opaque 500; no internals leak.
func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var branchErr *auth.BranchAccessError
	var lockErr *pin.LockoutError
	switch {
	case errors.As(err, &branchErr):
		writeError(w, r, http.StatusForbidden, kindBranchAccessDenied, "branch access denied", map[string]any{
			"assigned_branch":  branchErr.Assigned,
			"requested_branch": branchErr.Requested,
		})
	case errors.As(err, &lockErr):
		w.Header().Set("Retry-After", lockErr.LockedUntil.UTC().Format(http.TimeFormat))
		writeError(w, r, http.StatusTooManyRequests, kindTooManyAttempts, "too many attempts", map[string]any{
			"locked_until": lockErr.LockedUntil.UTC().Format(time.RFC3339),
		})
	case errors.Is(err, auth.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, kindUnauthenticated, "authentication required", nil)
	case errors.Is(err, auth.ErrPermissionDenied):
		writeError(w, r, http.StatusForbidden, kindPermissionDenied, "permission denied", nil)
	case errors.Is(err, pin.ErrInvalidFormat):
		writeError(w, r, http.StatusBadRequest, kindInvalidPinFormat, "pin must be exactly 4 digits", nil)
	case errors.Is(err, pin.ErrMigrationRequired):
		writeError(w, r, http.StatusConflict, kindMigrationRequired, "pin must be set before use", nil)
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, kindNotFound, "resource not found", nil)
	case errors.Is(err, auth.ErrStorageUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, kindStorageUnavailable, "credential store unavailable", nil)
	default:
		writeError(w, r, http.StatusInternalServerError, kindInternal, "internal error", nil)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, kindBadRequest, "method not allowed", nil)
}
