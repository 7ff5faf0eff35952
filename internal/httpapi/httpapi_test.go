package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gymgate.dev/internal/audit"
	"gymgate.dev/internal/auth"
	"gymgate.dev/internal/pin"
)

// In-memory stores for wiring the API without a database.

type memStaffStore struct {
	mu    sync.Mutex
	staff map[string]*auth.Staff
}

func (m *memStaffStore) Find(ctx context.Context, staffID string) (*auth.Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[staffID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStaffStore) TouchLastSeen(ctx context.Context, staffID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.staff[staffID]; ok {
		s.LastSeenAt = time.Now().UTC()
	}
	return nil
}

func (m *memStaffStore) UpdatePINHash(ctx context.Context, staffID, pinHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[staffID]
	if !ok {
		return auth.ErrNotFound
	}
	s.PINHash = &pinHash
	return nil
}

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*auth.Session
}

func (m *memSessionStore) Create(ctx context.Context, s *auth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.Token] = &cp
	return nil
}

func (m *memSessionStore) Find(ctx context.Context, token string) (*auth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return nil, auth.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionStore) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *memSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now().UTC()
	for token, s := range m.sessions {
		if !now.Before(s.ExpiresAt) || !s.IsActive {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

func (m *memSessionStore) has(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[token]
	return ok
}

type memProfileStore struct {
	roles map[string]string
}

func (m *memProfileStore) RoleFor(ctx context.Context, platformUserID string) (string, error) {
	role, ok := m.roles[platformUserID]
	if !ok {
		return "", auth.ErrNotFound
	}
	return role, nil
}

// memAttemptStore reproduces the rolling-window contract: count pin_attempt
// events after the later of (at - window) and the last pin_success.
type memAttemptStore struct {
	mu     sync.Mutex
	events []pin.Event
}

func (m *memAttemptStore) RecordAttempt(ctx context.Context, staffID, ip string, at time.Time) (pin.WindowStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, pin.Event{StaffID: staffID, Type: pin.EventAttempt, OccurredAt: at, IP: ip})

	cutoff := at.Add(-pin.WindowDuration)
	for _, ev := range m.events {
		if ev.StaffID == staffID && ev.Type == pin.EventSuccess && ev.OccurredAt.After(cutoff) {
			cutoff = ev.OccurredAt
		}
	}

	stats := pin.WindowStats{WindowStart: at}
	for _, ev := range m.events {
		if ev.StaffID != staffID || ev.Type != pin.EventAttempt || !ev.OccurredAt.After(cutoff) {
			continue
		}
		if stats.Attempts == 0 || ev.OccurredAt.Before(stats.WindowStart) {
			stats.WindowStart = ev.OccurredAt
		}
		stats.Attempts++
	}
	return stats, nil
}

func (m *memAttemptStore) Append(ctx context.Context, ev pin.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

type memAuditStore struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (m *memAuditStore) Append(ctx context.Context, e *audit.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memAuditStore) all() []audit.Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]audit.Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// testEnv wires a full API against the in-memory stores.
type testEnv struct {
	api      *API
	staff    *memStaffStore
	sessions *memSessionStore
	audits   *memAuditStore
	recorder *audit.Recorder
	verifier *auth.TokenVerifier
	profiles *memProfileStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	staff := &memStaffStore{staff: map[string]*auth.Staff{}}
	sessions := &memSessionStore{sessions: map[string]*auth.Session{}}
	profiles := &memProfileStore{roles: map[string]string{}}
	attempts := &memAttemptStore{}
	audits := &memAuditStore{}

	verifier, err := auth.NewTokenVerifier("test-secret", "https://auth.gymgate.test")
	if err != nil {
		t.Fatalf("NewTokenVerifier: %v", err)
	}
	resolver, err := auth.NewResolver(staff, sessions, profiles, verifier, auth.ModeStrict)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	pins, err := pin.NewAuthenticator(staff, attempts)
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	recorder, err := audit.NewRecorder(audits)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	api := New(Deps{
		Resolver:   resolver,
		Registry:   auth.NewRegistry(),
		PINs:       pins,
		Recorder:   recorder,
		Sessions:   sessions,
		Staff:      staff,
		SessionTTL: time.Hour,
		Version:    "test",
	})
	return &testEnv{
		api:      api,
		staff:    staff,
		sessions: sessions,
		audits:   audits,
		recorder: recorder,
		verifier: verifier,
		profiles: profiles,
	}
}

// addStaff registers a staff record; pinCode may be empty for an unmigrated
// record (nil hash).
func (e *testEnv) addStaff(t *testing.T, id, branchID, role, pinCode string) {
	t.Helper()
	s := &auth.Staff{
		ID:        id,
		BranchID:  branchID,
		Email:     id + "@gym.test",
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if pinCode != "" {
		hash, err := pin.Hash(pinCode)
		if err != nil {
			t.Fatalf("pin.Hash: %v", err)
		}
		s.PINHash = &hash
	}
	e.staff.mu.Lock()
	e.staff.staff[id] = s
	e.staff.mu.Unlock()
}

func (e *testEnv) addSession(t *testing.T, token, staffID, branchID string) {
	t.Helper()
	err := e.sessions.Create(context.Background(), &auth.Session{
		Token:     token,
		StaffID:   staffID,
		BranchID:  branchID,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("session create: %v", err)
	}
}

func (e *testEnv) platformToken(t *testing.T, userID, email string) string {
	t.Helper()
	token, err := e.verifier.Mint(userID, email, time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	return token
}

// decodeErrorBody unpacks the error envelope.
func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) (kind string, details map[string]any) {
	t.Helper()
	var body struct {
		Error struct {
			Kind    string         `json:"kind"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v\n%s", err, rec.Body.String())
	}
	if body.Error.Kind == "" {
		t.Fatalf("error body has no kind: %s", rec.Body.String())
	}
	return body.Error.Kind, body.Error.Details
}

func decodeBodyMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rec.Body.String())
	}
	return body
}
