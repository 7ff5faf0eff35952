package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Mode selects how the resolver treats incoming credentials.
type Mode int

const (
	// ModeStrict requires a verifiable credential on every resolution.
	ModeStrict Mode = iota
	// ModeDevelopmentBypass returns a synthetic dev principal without
	// touching any credential. Selecting it is gated at the config layer;
	// the resolver only honours what was injected at startup.
	ModeDevelopmentBypass
)

// Credentials are the raw materials the HTTP layer extracts from a request.
type Credentials struct {
	BearerToken        string
	BranchSessionToken string
}

// resolution is the tagged outcome of one strategy: not applicable (the
// credential kind is absent), failed, or resolved. Strategies never use
// errors as "try the next one" control flow.
type resolution struct {
	applicable bool
	principal  Principal
	err        error
}

func notApplicable() resolution       { return resolution{} }
func failed(err error) resolution     { return resolution{applicable: true, err: err} }
func resolved(p Principal) resolution { return resolution{applicable: true, principal: p} }

type strategy interface {
	resolve(ctx context.Context, creds Credentials) resolution
}

// Resolver turns request credentials into exactly one Principal, trying an
// ordered list of strategies: branch session first, then platform bearer.
type Resolver struct {
	mode       Mode
	strategies []strategy
	now        func() time.Time
}

// ResolverOption configures Resolver behavior.
type ResolverOption func(*Resolver)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewResolver wires the strategy list. verifier may be nil only when the
// platform token path is disabled outright.
func NewResolver(staff StaffStore, sessions SessionStore, profiles ProfileStore, verifier *TokenVerifier, mode Mode, opts ...ResolverOption) (*Resolver, error) {
	if staff == nil || sessions == nil {
		return nil, errors.New("auth: staff and session stores are required")
	}
	r := &Resolver{mode: mode, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	r.strategies = []strategy{
		&branchSessionStrategy{staff: staff, sessions: sessions, now: func() time.Time { return r.now() }},
	}
	if verifier != nil {
		r.strategies = append(r.strategies, &platformTokenStrategy{profiles: profiles, verifier: verifier})
	}
	return r, nil
}

// Resolve produces the request's principal or ErrUnauthenticated. A strategy
// whose credential kind is present but invalid terminates resolution; there
// is no silent fallthrough to a weaker identity.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (Principal, error) {
	if r.mode == ModeDevelopmentBypass {
		return devBypassPrincipal(), nil
	}
	for _, s := range r.strategies {
		res := s.resolve(ctx, creds)
		if !res.applicable {
			continue
		}
		if res.err != nil {
			return Principal{}, res.err
		}
		return res.principal, nil
	}
	return Principal{}, ErrUnauthenticated
}

// ResolveOptional is the named resolution mode for genuinely public
// endpoints: an absent or invalid credential yields (zero, false, nil)
// instead of an error. Storage failures still propagate.
func (r *Resolver) ResolveOptional(ctx context.Context, creds Credentials) (Principal, bool, error) {
	principal, err := r.Resolve(ctx, creds)
	switch {
	case err == nil:
		return principal, true, nil
	case errors.Is(err, ErrUnauthenticated):
		return Principal{}, false, nil
	default:
		return Principal{}, false, err
	}
}

// devBypassPrincipal is deliberately conspicuous: synthetic id, synthetic
// email, its own session kind. It can never be mistaken for a real record.
func devBypassPrincipal() Principal {
	return Principal{
		ID:          "dev-bypass",
		Email:       "dev-bypass@gymgate.invalid",
		Role:        RoleSystemAdmin,
		SessionKind: SessionKindDevBypass,
	}
}

// branchSessionStrategy resolves X-Branch-Session tokens. The principal's
// branch and role come from the session and staff rows, never from request
// input.
type branchSessionStrategy struct {
	staff    StaffStore
	sessions SessionStore
	now      func() time.Time
}

func (s *branchSessionStrategy) resolve(ctx context.Context, creds Credentials) resolution {
	token := creds.BranchSessionToken
	if token == "" {
		return notApplicable()
	}

	session, err := s.sessions.Find(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return failed(ErrUnauthenticated)
		}
		return failed(fmt.Errorf("%w: find session: %v", ErrStorageUnavailable, err))
	}
	if !session.IsActive {
		return failed(ErrUnauthenticated)
	}
	if !s.now().Before(session.ExpiresAt) {
		// Lazy cleanup; the sweep would get it eventually anyway.
		_ = s.sessions.Delete(ctx, token)
		return failed(ErrUnauthenticated)
	}

	staff, err := s.staff.Find(ctx, session.StaffID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return failed(ErrUnauthenticated)
		}
		return failed(fmt.Errorf("%w: find staff: %v", ErrStorageUnavailable, err))
	}

	// The only side effect of resolution.
	_ = s.staff.TouchLastSeen(ctx, staff.ID)

	return resolved(Principal{
		ID:          staff.ID,
		Email:       staff.Email,
		Role:        staff.Role,
		SessionKind: SessionKindBranchSession,
		BranchID:    session.BranchID,
	})
}

// platformTokenStrategy resolves bearer JWTs issued by the hosted auth
// platform. Role comes from the profile table; users without a profile row
// get the member role.
type platformTokenStrategy struct {
	profiles ProfileStore
	verifier *TokenVerifier
}

func (s *platformTokenStrategy) resolve(ctx context.Context, creds Credentials) resolution {
	token := creds.BearerToken
	if token == "" {
		return notApplicable()
	}

	claims, err := s.verifier.Verify(token)
	if err != nil {
		return failed(ErrUnauthenticated)
	}

	role := RoleMember
	if s.profiles != nil {
		switch r, err := s.profiles.RoleFor(ctx, claims.Subject); {
		case err == nil:
			role = r
		case errors.Is(err, ErrNotFound):
			// keep the member default
		default:
			return failed(fmt.Errorf("%w: find profile: %v", ErrStorageUnavailable, err))
		}
	}

	return resolved(Principal{
		ID:          claims.Subject,
		Email:       claims.Email,
		Role:        role,
		SessionKind: SessionKindPlatformToken,
	})
}
