package pg

import (
	"context"
	"database/sql"
	"time"

	"gymgate.dev/internal/ids"
	"gymgate.dev/internal/pin"
)

type attemptStore struct{ db *sql.DB }

// RecordAttempt appends the attempt and reads the window in one statement.
// PostgreSQL data-modifying CTEs run on a single snapshot, so the main query
// cannot see the row inserted by the CTE; the count therefore covers prior
// attempts and the current one is added explicitly. Two concurrent attempts
// still cannot see each other's uncommitted rows, so the lockout threshold
// remains a soft bound under concurrency (documented on pin.AttemptStore).
// Making it exact would take a per-staff counter row updated with
// `update .. returning`.
func (s *attemptStore) RecordAttempt(ctx context.Context, staffID, ip string, at time.Time) (pin.WindowStats, error) {
	const q = `
		with last_success as (
			select coalesce(max(occurred_at), 'epoch'::timestamptz) as ts
			from pin_events
			where staff_id=$1 and event_type='pin_success'
		), ins as (
			insert into pin_events(id, staff_id, event_type, occurred_at, ip_address)
			values ($2,$1,'pin_attempt',$3,$4)
		)
		select count(*), coalesce(min(e.occurred_at), $3)
		from pin_events e, last_success s
		where e.staff_id=$1
		  and e.event_type='pin_attempt'
		  and e.occurred_at > greatest($3::timestamptz - interval '15 minutes', s.ts)`

	var (
		prior  int
		oldest time.Time
	)
	err := s.db.QueryRowContext(ctx, q, staffID, ids.New(), at, ip).Scan(&prior, &oldest)
	if err != nil {
		return pin.WindowStats{}, err
	}
	if prior == 0 {
		oldest = at
	}
	return pin.WindowStats{Attempts: prior + 1, WindowStart: oldest}, nil
}

func (s *attemptStore) Append(ctx context.Context, ev pin.Event) error {
	if ev.ID == "" {
		ev.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into pin_events(id, staff_id, event_type, occurred_at, ip_address)
		 values($1,$2,$3,$4,$5)`,
		ev.ID, ev.StaffID, string(ev.Type), ev.OccurredAt, ev.IP,
	)
	return err
}
