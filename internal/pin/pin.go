// Package pin implements the step-up authenticator: a second, stronger
// credential check required before sensitive staff actions. Attempts are
// throttled over a rolling window; every verification leaves a trace in the
// append-only attempt log before any decision is made, so probing volume is
// visible even when the lockout is what rejects the request.
package pin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gymgate.dev/internal/auth"
	"gymgate.dev/internal/ids"
	"gymgate.dev/internal/obs"
)

const (
	// MaxAttempts is the lockout threshold. An attempt arriving with this
	// many prior attempts already in the window is rejected unevaluated.
	MaxAttempts = 5
	// WindowDuration is the rolling lockout window.
	WindowDuration = 15 * time.Minute

	pinLength = 4
)

var (
	// ErrInvalidFormat rejects anything that is not exactly 4 digits, before
	// any hashing or attempt bookkeeping happens.
	ErrInvalidFormat = errors.New("pin: must be exactly 4 digits")

	// ErrMigrationRequired means the staff record has no PIN hash yet. No
	// comparison is attempted against legacy material.
	ErrMigrationRequired = errors.New("pin: not migrated to hashed storage")

	// ErrLocked means the attempt window is saturated. Unwrapped from
	// LockoutError.
	ErrLocked = errors.New("pin: too many attempts")
)

// LockoutError carries the instant the lockout lapses so a legitimate caller
// can react.
type LockoutError struct {
	LockedUntil time.Time
}

func (e *LockoutError) Error() string {
	return fmt.Sprintf("pin: too many attempts, locked until %s", e.LockedUntil.Format(time.RFC3339))
}

func (e *LockoutError) Unwrap() error { return ErrLocked }

// CredentialStore is the slice of the staff store the authenticator needs.
// auth.StaffStore satisfies it.
type CredentialStore interface {
	Find(ctx context.Context, staffID string) (*auth.Staff, error)
	UpdatePINHash(ctx context.Context, staffID, pinHash string) error
}

// Result is the outcome of an evaluated verification. A wrong PIN is a
// Result, not an error; errors are reserved for format, migration, lockout
// and storage conditions.
type Result struct {
	Valid             bool
	AttemptsRemaining int
	Staff             *auth.Staff
}

// Authenticator performs step-up PIN verification with lockout bookkeeping.
type Authenticator struct {
	staff  CredentialStore
	events AttemptStore
	now    func() time.Time
}

// Option configures the Authenticator.
type Option func(*Authenticator)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(a *Authenticator) {
		if fn != nil {
			a.now = fn
		}
	}
}

// NewAuthenticator wires the authenticator to its stores.
func NewAuthenticator(staff CredentialStore, events AttemptStore, opts ...Option) (*Authenticator, error) {
	if staff == nil || events == nil {
		return nil, errors.New("pin: credential and attempt stores are required")
	}
	a := &Authenticator{staff: staff, events: events, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Verify checks the supplied PIN for a staff member.
//
// Sequence: format precondition, then append a pin_attempt, then evaluate
// the window, then compare. Appending before evaluating means lockout
// rejections still record the probe. The threshold admits MaxAttempts
// evaluated attempts per window: the fifth attempt is still compared, the
// sixth is rejected regardless of the PIN supplied.
//
// An unknown staff id behaves exactly like a wrong PIN so the endpoint
// cannot be used to enumerate staff.
func (a *Authenticator) Verify(ctx context.Context, staffID, pin, ip string) (Result, error) {
	if !validFormat(pin) {
		obs.PinAttempts.WithLabelValues("bad_format").Inc()
		return Result{}, ErrInvalidFormat
	}

	now := a.now().UTC()
	stats, err := a.events.RecordAttempt(ctx, staffID, ip, now)
	if err != nil {
		obs.PinAttempts.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("%w: record attempt: %v", auth.ErrStorageUnavailable, err)
	}

	if stats.Attempts > MaxAttempts {
		lockedUntil := stats.WindowStart.Add(WindowDuration)
		a.append(ctx, staffID, EventLockout, ip, now)
		obs.PinAttempts.WithLabelValues("locked").Inc()
		obs.PinLockouts.Inc()
		return Result{}, &LockoutError{LockedUntil: lockedUntil}
	}

	remaining := MaxAttempts - stats.Attempts
	if remaining < 0 {
		remaining = 0
	}

	staff, err := a.staff.Find(ctx, staffID)
	switch {
	case errors.Is(err, auth.ErrNotFound):
		a.append(ctx, staffID, EventFailure, ip, now)
		obs.PinAttempts.WithLabelValues("invalid").Inc()
		return Result{Valid: false, AttemptsRemaining: remaining}, nil
	case err != nil:
		obs.PinAttempts.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("%w: find staff: %v", auth.ErrStorageUnavailable, err)
	}

	if staff.PINHash == nil {
		return Result{}, ErrMigrationRequired
	}

	ok, err := VerifyHash(*staff.PINHash, pin)
	if err != nil {
		obs.PinAttempts.WithLabelValues("error").Inc()
		return Result{}, err
	}
	if !ok {
		a.append(ctx, staffID, EventFailure, ip, now)
		obs.PinAttempts.WithLabelValues("invalid").Inc()
		return Result{Valid: false, AttemptsRemaining: remaining}, nil
	}

	// Success starts a fresh window; prior attempts stay in the log for
	// audit but stop counting.
	a.append(ctx, staffID, EventSuccess, ip, now)
	obs.PinAttempts.WithLabelValues("valid").Inc()
	return Result{Valid: true, Staff: staff}, nil
}

// SetPIN hashes and stores a new PIN for the staff member. This is the
// migration path for records whose PINHash is still nil, and the admin reset
// flow.
func (a *Authenticator) SetPIN(ctx context.Context, staffID, pin string) error {
	if !validFormat(pin) {
		return ErrInvalidFormat
	}
	hash, err := Hash(pin)
	if err != nil {
		return err
	}
	if err := a.staff.UpdatePINHash(ctx, staffID, hash); err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return auth.ErrNotFound
		}
		return fmt.Errorf("%w: update pin hash: %v", auth.ErrStorageUnavailable, err)
	}
	return nil
}

// append writes a marker event best-effort. Marker failures must not turn a
// decided verification into an error.
func (a *Authenticator) append(ctx context.Context, staffID string, typ EventType, ip string, at time.Time) {
	ev := Event{
		ID:         ids.New(),
		StaffID:    staffID,
		Type:       typ,
		OccurredAt: at,
		IP:         ip,
	}
	if err := a.events.Append(ctx, ev); err != nil {
		obs.Warn("pin_event_append_failed", map[string]any{
			"staff_id": staffID,
			"type":     string(typ),
			"error":    err.Error(),
		})
	}
}

func validFormat(pin string) bool {
	if len(pin) != pinLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		if pin[i] < '0' || pin[i] > '9' {
			return false
		}
	}
	return true
}
