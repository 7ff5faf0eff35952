package auth

import "context"

// SessionKind identifies which credential path produced a principal.
type SessionKind string

const (
	// SessionKindPlatformToken marks principals resolved from a platform
	// bearer JWT (hosted auth users, no branch affiliation).
	SessionKindPlatformToken SessionKind = "platform_token"
	// SessionKindBranchSession marks branch-scoped staff principals.
	SessionKindBranchSession SessionKind = "branch_session"
	// SessionKindDevBypass marks the synthetic principal injected by the
	// development bypass mode. It never appears under strict mode.
	SessionKindDevBypass SessionKind = "dev_bypass"
)

// Principal is the resolved identity for a single request. The resolver
// builds it, the HTTP layer carries it on the context, and nothing persists
// or mutates it afterwards.
type Principal struct {
	ID          string
	Email       string
	Role        string
	SessionKind SessionKind
	BranchID    string
}

// IsBranchScoped reports whether the principal is tied to a single branch.
func (p Principal) IsBranchScoped() bool {
	return p.SessionKind == SessionKindBranchSession && p.BranchID != ""
}

// VerifiedStaff is an identity confirmed by a step-up PIN check during the
// current request. Audit records prefer it over the primary principal since
// the PIN is the stronger signal for the resource being touched.
type VerifiedStaff struct {
	StaffID  string
	Email    string
	BranchID string
}

type principalContextKey struct{}
type verifiedStaffContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}

// ContextWithVerifiedStaff records a successful step-up verification.
func ContextWithVerifiedStaff(ctx context.Context, staff VerifiedStaff) context.Context {
	return context.WithValue(ctx, verifiedStaffContextKey{}, &staff)
}

// VerifiedStaffFromContext extracts the step-up-verified identity if present.
func VerifiedStaffFromContext(ctx context.Context) (VerifiedStaff, bool) {
	if ctx == nil {
		return VerifiedStaff{}, false
	}
	v, ok := ctx.Value(verifiedStaffContextKey{}).(*VerifiedStaff)
	if !ok || v == nil {
		return VerifiedStaff{}, false
	}
	return *v, true
}
