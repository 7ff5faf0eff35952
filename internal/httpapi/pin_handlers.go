package httpapi

import (
	"net/http"
	"strings"

	"gymgate.dev/internal/auth"
)

type pinVerifyRequest struct {
	StaffID string `json:"staff_id"`
	PIN     string `json:"pin"`
}

type pinVerifyResponse struct {
	IsValid           bool `json:"is_valid"`
	AttemptsRemaining *int `json:"attempts_remaining,omitempty"`
}

// handlePinVerify is the standalone step-up endpoint. Routes with sensitive
// writes use RequireStepUp instead; this surface exists for the front-desk
// primary-auth flow and for the routing layer to pre-check PINs.
//
// A wrong PIN and an unknown staff id produce the same response shape, so
// the endpoint cannot confirm whether a staff id exists.
func (a *API) handlePinVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req pinVerifyRequest
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

	resp := pinVerifyResponse{IsValid: result.Valid}
	if !result.Valid {
		remaining := result.AttemptsRemaining
		resp.AttemptsRemaining = &remaining
	}
	writeJSON(w, http.StatusOK, resp)
}

type setPinRequest struct {
	PIN string `json:"pin"`
}

// handleSetStaffPIN sets or rotates a staff member's PIN. This is the
// migration path for records still carrying a nil hash. Reached only through
// WithAuth + RequirePermission(staff:write) + RequireStepUp + AuditLog.
func (a *API) handleSetStaffPIN(w http.ResponseWriter, r *http.Request) {
	staffID := strings.TrimSpace(r.PathValue("id"))
	if staffID == "" {
		writeError(w, r, http.StatusBadRequest, kindBadRequest, "staff id is required", nil)
		return
	}

	target, err := a.staff.Find(r.Context(), staffID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}

	// Branch isolation applies to the target staff member's branch even
	// though this route is not branch-parameterized in the URL.
	principal, _ := auth.PrincipalFromContext(r.Context())
	if err := auth.CheckBranchAccess(a.registry, principal, target.BranchID); err != nil {
		handleAuthError(w, r, err)
		return
	}

	var req setPinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, kindBadRequest, err.Error(), nil)
		return
	}

	if err := a.pins.SetPIN(r.Context(), staffID, req.PIN); err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     staffID,
		"status": "pin_updated",
	})
}
