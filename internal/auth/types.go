package auth

import "time"

// Staff is a credential record for a branch employee. PINHash is nil until
// the member of staff has been migrated to hashed PINs; a nil hash means the
// PIN flow must refuse to compare anything.
type Staff struct {
	ID         string    `json:"id"`
	BranchID   string    `json:"branch_id"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	PINHash    *string   `json:"-"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Session is an opaque branch session token record. Tokens are minted from a
// process-wide random source on successful primary authentication. Expired
// rows are removed lazily on lookup and eagerly by the cleanup sweep.
type Session struct {
	Token     string    `json:"token"`
	StaffID   string    `json:"staff_id"`
	BranchID  string    `json:"branch_id"`
	ExpiresAt time.Time `json:"expires_at"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
