package auth

import "context"

// StaffStore manages staff credential records.
type StaffStore interface {
	Find(ctx context.Context, staffID string) (*Staff, error)
	// TouchLastSeen updates the last-seen timestamp. Best-effort: resolvers
	// ignore its error.
	TouchLastSeen(ctx context.Context, staffID string) error
	UpdatePINHash(ctx context.Context, staffID, pinHash string) error
}

// SessionStore manages branch session token records.
type SessionStore interface {
	Create(ctx context.Context, s *Session) error
	Find(ctx context.Context, token string) (*Session, error)
	// Delete is idempotent: removing an absent token is a no-op, not an error.
	Delete(ctx context.Context, token string) error
	// DeleteExpired removes expired and deactivated sessions, returning the
	// number of rows swept.
	DeleteExpired(ctx context.Context) (int64, error)
}

// ProfileStore resolves a platform user id to its admin role. ErrNotFound
// means no profile row exists; callers fall back to the member role.
type ProfileStore interface {
	RoleFor(ctx context.Context, platformUserID string) (string, error)
}
