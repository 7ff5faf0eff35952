package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated covers every primary-credential failure: missing
	// token, unknown token, expired or inactive session. Callers must not
	// be able to tell those apart.
	ErrUnauthenticated = errors.New("auth: unauthenticated")

	// ErrPermissionDenied indicates the principal lacks a required permission.
	ErrPermissionDenied = errors.New("auth: permission denied")

	// ErrNotFound indicates a missing staff, session or profile row.
	ErrNotFound = errors.New("auth: not found")

	// ErrStorageUnavailable indicates a transient failure talking to the
	// credential store. Requests cannot be authorized without that data, so
	// this surfaces as a 5xx.
	ErrStorageUnavailable = errors.New("auth: storage unavailable")
)

// BranchAccessError reports a branch-scope violation. It carries both sides
// of the mismatch so rejections can name the assigned and requested branch.
type BranchAccessError struct {
	Assigned  string
	Requested string
}

func (e *BranchAccessError) Error() string {
	return fmt.Sprintf("auth: branch access denied (assigned %q, requested %q)", e.Assigned, e.Requested)
}
