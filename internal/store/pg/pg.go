// Package pg is the credential store adapter: staff, branch sessions, the
// PIN attempt log and audit rows over PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"gymgate.dev/internal/audit"
	"gymgate.dev/internal/auth"
	"gymgate.dev/internal/pin"
)

// Store bundles the per-table stores over one connection pool.
type Store struct {
	db *sql.DB
}

var (
	_ auth.StaffStore   = (*staffStore)(nil)
	_ auth.SessionStore = (*sessionStore)(nil)
	_ auth.ProfileStore = (*profileStore)(nil)
	_ pin.AttemptStore  = (*attemptStore)(nil)
	_ audit.Store       = (*auditStore)(nil)
)

// Open connects to PostgreSQL via the pgx stdlib driver.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests.
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing pool. Tests use it with sqlmock.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Ping reports pool health, used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Staff() auth.StaffStore      { return &staffStore{db: s.db} }
func (s *Store) Sessions() auth.SessionStore { return &sessionStore{db: s.db} }
func (s *Store) Profiles() auth.ProfileStore { return &profileStore{db: s.db} }
func (s *Store) Attempts() pin.AttemptStore  { return &attemptStore{db: s.db} }
func (s *Store) Audit() audit.Store          { return &auditStore{db: s.db} }
