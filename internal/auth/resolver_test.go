package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStaffStore struct {
	staff      map[string]*Staff
	lastSeen   []string
	findErr    error
	updateErrs map[string]error
}

func (f *fakeStaffStore) Find(ctx context.Context, staffID string) (*Staff, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	st, ok := f.staff[staffID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (f *fakeStaffStore) TouchLastSeen(ctx context.Context, staffID string) error {
	f.lastSeen = append(f.lastSeen, staffID)
	return nil
}

func (f *fakeStaffStore) UpdatePINHash(ctx context.Context, staffID, pinHash string) error {
	if err := f.updateErrs[staffID]; err != nil {
		return err
	}
	st, ok := f.staff[staffID]
	if !ok {
		return ErrNotFound
	}
	st.PINHash = &pinHash
	return nil
}

type fakeSessionStore struct {
	sessions map[string]*Session
	deleted  []string
	findErr  error
}

func (f *fakeSessionStore) Create(ctx context.Context, s *Session) error {
	if f.sessions == nil {
		f.sessions = map[string]*Session{}
	}
	f.sessions[s.Token] = s
	return nil
}

func (f *fakeSessionStore) Find(ctx context.Context, token string) (*Session, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	s, ok := f.sessions[token]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionStore) Delete(ctx context.Context, token string) error {
	f.deleted = append(f.deleted, token)
	delete(f.sessions, token)
	return nil
}

func (f *fakeSessionStore) DeleteExpired(ctx context.Context) (int64, error) { return 0, nil }

type fakeProfileStore struct {
	roles map[string]string
	err   error
}

func (f *fakeProfileStore) RoleFor(ctx context.Context, userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	role, ok := f.roles[userID]
	if !ok {
		return "", ErrNotFound
	}
	return role, nil
}

func newTestResolver(t *testing.T, staff *fakeStaffStore, sessions *fakeSessionStore, profiles *fakeProfileStore, now time.Time) (*Resolver, *TokenVerifier) {
	t.Helper()
	verifier, err := NewTokenVerifier("test-secret", "gymgate-platform")
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}
	resolver, err := NewResolver(staff, sessions, profiles, verifier, ModeStrict, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return resolver, verifier
}

func TestResolveBranchSession(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	staff := &fakeStaffStore{staff: map[string]*Staff{
		"s1": {ID: "s1", BranchID: "b1", Email: "s1@gym.test", Role: RoleAssociate},
	}}
	sessions := &fakeSessionStore{sessions: map[string]*Session{
		"tok1": {Token: "tok1", StaffID: "s1", BranchID: "b1", ExpiresAt: now.Add(time.Hour), IsActive: true},
	}}
	resolver, _ := newTestResolver(t, staff, sessions, &fakeProfileStore{}, now)

	principal, err := resolver.Resolve(context.Background(), Credentials{BranchSessionToken: "tok1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if principal.SessionKind != SessionKindBranchSession {
		t.Fatalf("unexpected session kind: %s", principal.SessionKind)
	}
	if principal.ID != "s1" || principal.Role != RoleAssociate || principal.BranchID != "b1" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	if len(staff.lastSeen) != 1 || staff.lastSeen[0] != "s1" {
		t.Fatalf("expected last-seen touch for s1, got %v", staff.lastSeen)
	}
}

func TestResolveSessionTakesPriorityOverBearer(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	staff := &fakeStaffStore{staff: map[string]*Staff{
		"s1": {ID: "s1", BranchID: "b1", Email: "s1@gym.test", Role: RoleAssociate},
	}}
	sessions := &fakeSessionStore{sessions: map[string]*Session{
		"tok1": {Token: "tok1", StaffID: "s1", BranchID: "b1", ExpiresAt: now.Add(time.Hour), IsActive: true},
	}}
	resolver, verifier := newTestResolver(t, staff, sessions, &fakeProfileStore{}, now)

	bearer, err := verifier.Mint("u9", "u9@gym.test", time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	principal, err := resolver.Resolve(context.Background(), Credentials{
		BranchSessionToken: "tok1",
		BearerToken:        bearer,
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if principal.ID != "s1" || principal.SessionKind != SessionKindBranchSession {
		t.Fatalf("expected the branch session to win, got %+v", principal)
	}
}

func TestResolveExpiredSessionIsUnauthenticatedAndLazilyDeleted(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	staff := &fakeStaffStore{staff: map[string]*Staff{"s1": {ID: "s1"}}}
	sessions := &fakeSessionStore{sessions: map[string]*Session{
		"old": {Token: "old", StaffID: "s1", BranchID: "b1", ExpiresAt: now.Add(-time.Minute), IsActive: true},
	}}
	resolver, _ := newTestResolver(t, staff, sessions, &fakeProfileStore{}, now)

	_, err := resolver.Resolve(context.Background(), Credentials{BranchSessionToken: "old"})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if len(sessions.deleted) != 1 || sessions.deleted[0] != "old" {
		t.Fatalf("expected lazy delete of expired session, got %v", sessions.deleted)
	}
}

func TestResolveInactiveSessionIsUnauthenticated(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sessions := &fakeSessionStore{sessions: map[string]*Session{
		"off": {Token: "off", StaffID: "s1", BranchID: "b1", ExpiresAt: now.Add(time.Hour), IsActive: false},
	}}
	resolver, _ := newTestResolver(t, &fakeStaffStore{}, sessions, &fakeProfileStore{}, now)

	_, err := resolver.Resolve(context.Background(), Credentials{BranchSessionToken: "off"})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestResolvePlatformToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	profiles := &fakeProfileStore{roles: map[string]string{"u1": RoleOwner}}
	resolver, verifier := newTestResolver(t, &fakeStaffStore{}, &fakeSessionStore{}, profiles, now)

	token, err := verifier.Mint("u1", "owner@gym.test", time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	principal, err := resolver.Resolve(context.Background(), Credentials{BearerToken: token})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if principal.SessionKind != SessionKindPlatformToken {
		t.Fatalf("unexpected session kind: %s", principal.SessionKind)
	}
	if principal.ID != "u1" || principal.Email != "owner@gym.test" || principal.Role != RoleOwner {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	if principal.BranchID != "" {
		t.Fatalf("platform principal must not carry a branch, got %q", principal.BranchID)
	}
}

func TestResolvePlatformTokenDefaultsToMemberRole(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	resolver, verifier := newTestResolver(t, &fakeStaffStore{}, &fakeSessionStore{}, &fakeProfileStore{}, now)

	token, err := verifier.Mint("u2", "member@gym.test", time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	principal, err := resolver.Resolve(context.Background(), Credentials{BearerToken: token})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if principal.Role != RoleMember {
		t.Fatalf("expected member default role, got %s", principal.Role)
	}
}

func TestResolveGarbageBearerFailsWithoutFallback(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	resolver, _ := newTestResolver(t, &fakeStaffStore{}, &fakeSessionStore{}, &fakeProfileStore{}, now)

	_, err := resolver.Resolve(context.Background(), Credentials{BearerToken: "not-a-jwt"})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestResolveNoCredentials(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	resolver, _ := newTestResolver(t, &fakeStaffStore{}, &fakeSessionStore{}, &fakeProfileStore{}, now)

	_, err := resolver.Resolve(context.Background(), Credentials{})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestResolveStorageFailureIsNotUnauthenticated(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	sessions := &fakeSessionStore{findErr: errors.New("connection refused")}
	resolver, _ := newTestResolver(t, &fakeStaffStore{}, sessions, &fakeProfileStore{}, now)

	_, err := resolver.Resolve(context.Background(), Credentials{BranchSessionToken: "tok"})
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if errors.Is(err, ErrUnauthenticated) {
		t.Fatal("storage failure must not masquerade as unauthenticated")
	}
}

func TestResolveOptional(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	resolver, verifier := newTestResolver(t, &fakeStaffStore{}, &fakeSessionStore{}, &fakeProfileStore{}, now)

	_, ok, err := resolver.ResolveOptional(context.Background(), Credentials{})
	if err != nil || ok {
		t.Fatalf("expected anonymous pass, got ok=%v err=%v", ok, err)
	}

	token, err := verifier.Mint("u3", "u3@gym.test", time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	principal, ok, err := resolver.ResolveOptional(context.Background(), Credentials{BearerToken: token})
	if err != nil || !ok {
		t.Fatalf("expected resolution, got ok=%v err=%v", ok, err)
	}
	if principal.ID != "u3" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

func TestDevelopmentBypassYieldsSyntheticPrincipal(t *testing.T) {
	resolver, err := NewResolver(&fakeStaffStore{}, &fakeSessionStore{}, &fakeProfileStore{}, nil, ModeDevelopmentBypass)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}

	principal, err := resolver.Resolve(context.Background(), Credentials{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if principal.SessionKind != SessionKindDevBypass {
		t.Fatalf("bypass principal must be labelled, got kind %s", principal.SessionKind)
	}
	if principal.ID != "dev-bypass" {
		t.Fatalf("unexpected id %q", principal.ID)
	}
}

func TestTokenVerifierRejectsExpiredAndForeign(t *testing.T) {
	verifier, err := NewTokenVerifier("secret-a", "gymgate-platform")
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}

	token, err := verifier.Mint("u1", "", time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	other, err := NewTokenVerifier("secret-b", "gymgate-platform")
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign secret, got %v", err)
	}

	verifier.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := verifier.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}
