package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"gymgate.dev/internal/auth"
	"gymgate.dev/internal/obs"
)

const (
	authHeader          = "Authorization"
	bearerPrefix        = "Bearer "
	branchSessionHeader = "X-Branch-Session"
	branchIDHeader      = "X-Branch-ID"
)

// Middleware is the shape the routing layer composes.
type Middleware func(http.Handler) http.Handler

// credentialsFromRequest extracts the raw credential materials. Nothing else
// about the request influences identity.
func credentialsFromRequest(r *http.Request) auth.Credentials {
	creds := auth.Credentials{
		BranchSessionToken: strings.TrimSpace(r.Header.Get(branchSessionHeader)),
	}
	if header := strings.TrimSpace(r.Header.Get(authHeader)); header != "" {
		if strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearerPrefix)) {
			creds.BearerToken = strings.TrimSpace(header[len(bearerPrefix):])
		}
	}
	return creds
}

// WithAuth resolves the request identity and attaches the principal. No
// principal, no passage.
func (a *API) WithAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := a.resolver.Resolve(r.Context(), credentialsFromRequest(r))
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) {
				obs.AuthResolutions.WithLabelValues("unauthenticated").Inc()
			} else {
				obs.AuthResolutions.WithLabelValues("error").Inc()
			}
			handleAuthError(w, r, err)
			return
		}
		obs.AuthResolutions.WithLabelValues("resolved").Inc()
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	})
}

// WithOptionalAuth attaches a principal when one resolves and lets the
// request through either way. For genuinely public endpoints only.
func (a *API) WithOptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok, err := a.resolver.ResolveOptional(r.Context(), credentialsFromRequest(r))
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		if ok {
			r = r.WithContext(auth.ContextWithPrincipal(r.Context(), principal))
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission rejects with 401 when no principal is attached and 403
// when the principal's role lacks the permission.
func (a *API) RequirePermission(perm string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				handleAuthError(w, r, auth.ErrUnauthenticated)
				return
			}
			if !a.registry.Has(principal.Role, perm) {
				writeError(w, r, http.StatusForbidden, kindPermissionDenied, "permission denied", map[string]any{
					"required":  perm,
					"user_role": principal.Role,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission passes when the role holds at least one of the listed
// permissions.
func (a *API) RequireAnyPermission(perms ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				handleAuthError(w, r, auth.ErrUnauthenticated)
				return
			}
			if !a.registry.HasAny(principal.Role, perms...) {
				writeError(w, r, http.StatusForbidden, kindPermissionDenied, "permission denied", map[string]any{
					"required":  perms,
					"user_role": principal.Role,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireBranchAccess enforces branch isolation on every branch-parameterized
// operation. Permissions passed in are checked first (any one suffices), so a
// route can gate on both in one middleware; with none given only the branch
// check runs. The target branch comes from the path, the query string or the
// branch header, in that order.
func (a *API) RequireBranchAccess(perms ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := auth.PrincipalFromContext(r.Context())
			if !ok {
				handleAuthError(w, r, auth.ErrUnauthenticated)
				return
			}
			if len(perms) > 0 && !a.registry.HasAny(principal.Role, perms...) {
				writeError(w, r, http.StatusForbidden, kindPermissionDenied, "permission denied", map[string]any{
					"required":  perms,
					"user_role": principal.Role,
				})
				return
			}
			target := targetBranch(r)
			if target == "" {
				writeError(w, r, http.StatusBadRequest, kindBadRequest, "branch id is required", nil)
				return
			}
			if err := auth.CheckBranchAccess(a.registry, principal, target); err != nil {
				handleAuthError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func targetBranch(r *http.Request) string {
	if v := strings.TrimSpace(r.PathValue("branchID")); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.URL.Query().Get("branch_id")); v != "" {
		return v
	}
	return strings.TrimSpace(r.Header.Get(branchIDHeader))
}

// RequireStepUp re-verifies the caller's PIN (X-Staff-PIN header) before
// sensitive actions. Only branch-scoped staff have PINs; on success the
// verified identity is attached for the audit recorder to prefer.
func (a *API) RequireStepUp(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := auth.PrincipalFromContext(r.Context())
		if !ok {
			handleAuthError(w, r, auth.ErrUnauthenticated)
			return
		}
		if !principal.IsBranchScoped() {
			// Platform admins have no PIN; their bearer token is the
			// strongest credential they hold.
			next.ServeHTTP(w, r)
			return
		}
		supplied := strings.TrimSpace(r.Header.Get("X-Staff-PIN"))
		result, err := a.pins.Verify(r.Context(), principal.ID, supplied, clientIP(r))
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		if !result.Valid {
			writeError(w, r, http.StatusUnauthorized, kindUnauthenticated, "pin verification failed", map[string]any{
				"attempts_remaining": result.AttemptsRemaining,
			})
			return
		}
		ctx := auth.ContextWithVerifiedStaff(r.Context(), auth.VerifiedStaff{
			StaffID:  result.Staff.ID,
			Email:    result.Staff.Email,
			BranchID: result.Staff.BranchID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
