package pg

import (
	"context"
	"embed"

	"gymgate.dev/internal/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// EnsureSchema applies any pending schema migrations. Safe to run on every
// startup; already-applied versions are skipped.
func (s *Store) EnsureSchema(ctx context.Context) (int, error) {
	return migrate.NewRunner(s.db, migrationsFS).Up(ctx)
}
