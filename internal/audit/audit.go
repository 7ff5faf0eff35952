// Package audit captures the outcome of permitted, executed operations. A
// record is written at most once per responded-to operation, after the
// response is on its way to the caller; persistence failures are logged and
// swallowed, never surfaced.
package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"gymgate.dev/internal/ids"
	"gymgate.dev/internal/obs"
)

// Action taxonomy strings. Financial actions get extra payload
// canonicalization, see sanitize.go.
const (
	ActionCreateMember   = "CREATE_MEMBER"
	ActionUpdateMember   = "UPDATE_MEMBER"
	ActionDeleteMember   = "DELETE_MEMBER"
	ActionProcessRenewal = "PROCESS_RENEWAL"
	ActionCreateStaff    = "CREATE_STAFF"
	ActionUpdateStaff    = "UPDATE_STAFF"
	ActionUpdateStaffPIN = "UPDATE_STAFF_PIN"
	ActionCreatePackage  = "CREATE_PACKAGE"
	ActionUpdatePackage  = "UPDATE_PACKAGE"
	ActionCreateBranch   = "CREATE_BRANCH"
	ActionUpdateBranch   = "UPDATE_BRANCH"
)

// Entry is one immutable audit record.
type Entry struct {
	ID           string
	UserID       string
	UserEmail    string
	Action       string
	ResourceType string
	ResourceID   string
	BranchID     string
	IP           string
	UserAgent    string
	OccurredAt   time.Time
	Success      bool
	StatusCode   int
	RequestData  map[string]any
	ResponseData map[string]any
}

// Store appends immutable audit rows.
type Store interface {
	Append(ctx context.Context, e *Entry) error
}

const defaultWriteTimeout = 5 * time.Second

// Recorder persists entries off the response path.
type Recorder struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

// RecorderOption configures the Recorder.
type RecorderOption func(*Recorder)

// WithWriteTimeout bounds the detached store write.
func WithWriteTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

// NewRecorder wires the recorder to its store.
func NewRecorder(store Store, opts ...RecorderOption) (*Recorder, error) {
	if store == nil {
		return nil, errors.New("audit: store is required")
	}
	r := &Recorder{store: store, timeout: defaultWriteTimeout, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Record sanitizes the entry and persists it on a detached goroutine. The
// caller's response is never delayed and never sees a persistence failure;
// the write gets exactly one attempt. An entry without an attributable actor
// (both id and email) is skipped outright; an unattributable audit row is
// worse than none.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if e.UserID == "" || e.UserEmail == "" {
		obs.Warn("audit_skipped_no_actor", map[string]any{
			"action":        e.Action,
			"resource_type": e.ResourceType,
		})
		obs.AuditWrites.WithLabelValues("skipped").Inc()
		return
	}

	// Sanitize synchronously so the caller mutating its maps afterwards
	// cannot race the write.
	e.RequestData = Sanitize(e.Action, e.RequestData)
	e.ResponseData = Sanitize(e.Action, e.ResponseData)
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = r.now().UTC()
	}

	// The request context may be cancelled the moment the response is
	// flushed; the write must survive that, bounded by its own timeout.
	detached := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		writeCtx, cancel := context.WithTimeout(detached, r.timeout)
		defer cancel()

		if err := r.store.Append(writeCtx, &e); err != nil {
			obs.Error("audit_write_failed", map[string]any{
				"action":        e.Action,
				"resource_type": e.ResourceType,
				"user_id":       e.UserID,
				"error":         err.Error(),
			})
			obs.AuditWrites.WithLabelValues("error").Inc()
			return
		}
		obs.AuditWrites.WithLabelValues("ok").Inc()
	}()
}

// Wait blocks until in-flight writes settle. Used on shutdown and in tests.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
