package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"gymgate.dev/internal/audit"
	"gymgate.dev/internal/auth"
)

// captureWriter tees the response through to the client while keeping status
// and a bounded copy of the body for the audit record. The client write
// always happens first; capture is a side channel, not an interception.
type captureWriter struct {
	http.ResponseWriter
	code int
	body bytes.Buffer
}

const captureLimit = 64 << 10

func (w *captureWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if remaining := captureLimit - w.body.Len(); remaining > 0 {
		if len(p) <= remaining {
			w.body.Write(p)
		} else {
			w.body.Write(p[:remaining])
		}
	}
	return w.ResponseWriter.Write(p)
}

// AuditLog records the outcome of a permitted, executed operation. The
// record is built after the wrapped handler has written its response, then
// handed to the recorder's fire-and-forget path, so persistence can never
// delay or fail the response.
func (a *API) AuditLog(action, resourceType string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqData := snapshotRequestBody(r)

			cw := &captureWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(cw, r)

			entry := audit.Entry{
				Action:       action,
				ResourceType: resourceType,
				BranchID:     targetBranch(r),
				IP:           clientIP(r),
				UserAgent:    r.UserAgent(),
				Success:      cw.code < http.StatusBadRequest,
				StatusCode:   cw.code,
				RequestData:  reqData,
				ResponseData: decodeBody(cw.body.Bytes()),
			}

			// Prefer the step-up-verified identity: the PIN check is the
			// stronger signal for the resource being touched.
			if staff, ok := auth.VerifiedStaffFromContext(r.Context()); ok {
				entry.UserID = staff.StaffID
				entry.UserEmail = staff.Email
				if entry.BranchID == "" {
					entry.BranchID = staff.BranchID
				}
			} else if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
				entry.UserID = principal.ID
				entry.UserEmail = principal.Email
				if entry.BranchID == "" {
					entry.BranchID = principal.BranchID
				}
			}

			entry.ResourceID = resourceID(r, entry.ResponseData)

			a.recorder.Record(r.Context(), entry)
		})
	}
}

// snapshotRequestBody reads and restores the full body so the wrapped handler
// sees exactly what the client sent; only bodies within the capture limit are
// snapshotted. Non-JSON bodies are skipped rather than guessed at.
func snapshotRequestBody(r *http.Request) map[string]any {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil
	}
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if len(raw) > captureLimit {
		return nil
	}
	return decodeBody(raw)
}

func decodeBody(raw []byte) map[string]any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil
	}
	return data
}

// resourceID digs the acted-on resource id out of the path or, for creates,
// the response payload.
func resourceID(r *http.Request, responseData map[string]any) string {
	if id := strings.TrimSpace(r.PathValue("id")); id != "" {
		return id
	}
	if responseData != nil {
		if id, ok := responseData["id"].(string); ok {
			return id
		}
	}
	return ""
}
