package pg

import (
	"context"
	"database/sql"
	"errors"

	"gymgate.dev/internal/auth"
)

type sessionStore struct{ db *sql.DB }

func (s *sessionStore) Create(ctx context.Context, session *auth.Session) error {
	_, err := s.db.ExecContext(ctx,
		`insert into branch_sessions(token, staff_id, branch_id, expires_at, is_active)
		 values($1,$2,$3,$4,$5)`,
		session.Token, session.StaffID, session.BranchID, session.ExpiresAt, session.IsActive,
	)
	return err
}

func (s *sessionStore) Find(ctx context.Context, token string) (*auth.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select token, staff_id, branch_id, expires_at, is_active, created_at
		 from branch_sessions where token=$1`, token)
	var sess auth.Session
	if err := row.Scan(&sess.Token, &sess.StaffID, &sess.BranchID, &sess.ExpiresAt, &sess.IsActive, &sess.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

// Delete is idempotent: deleting an already-deleted token is a no-op.
func (s *sessionStore) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx,
		`delete from branch_sessions where token=$1`, token)
	return err
}

func (s *sessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from branch_sessions where expires_at < now() or not is_active`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
