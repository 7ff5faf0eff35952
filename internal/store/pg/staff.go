package pg

import (
	"context"
	"database/sql"
	"errors"

	"gymgate.dev/internal/auth"
)

type staffStore struct{ db *sql.DB }

func (s *staffStore) Find(ctx context.Context, staffID string) (*auth.Staff, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, branch_id, email, role, pin_hash, last_seen_at, created_at from staff where id=$1`,
		staffID,
	)
	var (
		st       auth.Staff
		pinHash  sql.NullString
		lastSeen sql.NullTime
	)
	if err := row.Scan(&st.ID, &st.BranchID, &st.Email, &st.Role, &pinHash, &lastSeen, &st.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	if pinHash.Valid {
		st.PINHash = &pinHash.String
	}
	if lastSeen.Valid {
		st.LastSeenAt = lastSeen.Time
	}
	return &st, nil
}

func (s *staffStore) TouchLastSeen(ctx context.Context, staffID string) error {
	_, err := s.db.ExecContext(ctx,
		`update staff set last_seen_at = now() where id=$1`, staffID)
	return err
}

func (s *staffStore) UpdatePINHash(ctx context.Context, staffID, pinHash string) error {
	res, err := s.db.ExecContext(ctx,
		`update staff set pin_hash=$2, updated_at = now() where id=$1`, staffID, pinHash)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// profileStore maps platform user ids to admin roles.
type profileStore struct{ db *sql.DB }

func (s *profileStore) RoleFor(ctx context.Context, platformUserID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx,
		`select role from platform_profiles where user_id=$1`, platformUserID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", auth.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return role, nil
}
