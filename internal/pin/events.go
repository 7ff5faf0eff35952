package pin

import (
	"context"
	"time"
)

// EventType labels entries in the append-only PIN attempt log.
type EventType string

const (
	EventAttempt EventType = "pin_attempt"
	EventSuccess EventType = "pin_success"
	EventFailure EventType = "pin_failure"
	EventLockout EventType = "pin_lockout"
)

// Event is one row of the attempt log. Rows are never updated or deleted;
// retention is a deployment concern.
type Event struct {
	ID         string
	StaffID    string
	Type       EventType
	OccurredAt time.Time
	IP         string
}

// WindowStats describes the rolling attempt window at the moment an attempt
// was recorded.
type WindowStats struct {
	// Attempts is the number of pin_attempt events inside the window,
	// including the one just recorded.
	Attempts int
	// WindowStart is the occurrence time of the oldest counted attempt.
	WindowStart time.Time
}

// AttemptStore persists the attempt log and answers the window query.
type AttemptStore interface {
	// RecordAttempt appends a pin_attempt event and returns the window
	// stats as of that append. The window covers the last WindowDuration
	// and restarts after the staff member's most recent pin_success.
	//
	// Implementations should fold the append and the count into one
	// storage operation where the backend allows it. When they cannot, the
	// lockout threshold is a soft bound: concurrent attempts may each see
	// a pre-threshold count and slip past the limit by a small margin.
	RecordAttempt(ctx context.Context, staffID, ip string, at time.Time) (WindowStats, error)

	// Append writes a marker event (success, failure, lockout).
	Append(ctx context.Context, ev Event) error
}
