// Package migrate applies versioned SQL migrations from an fs.FS, typically
// embedded next to the store that owns the schema. Files are applied in
// lexical order; each one runs in its own transaction and is recorded in a
// bookkeeping table so reruns are no-ops.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

const (
	defaultTable = "schema_migrations"

	upSuffix   = ".up.sql"
	downSuffix = ".down.sql"
)

// Runner executes migrations against a database.
type Runner struct {
	db    *sql.DB
	fsys  fs.FS
	table string
}

// Option configures Runner.
type Option func(*Runner)

// WithTable overrides the default bookkeeping table.
func WithTable(name string) Option {
	return func(r *Runner) {
		if name != "" {
			r.table = name
		}
	}
}

// NewRunner constructs a Runner over the given migration source.
func NewRunner(db *sql.DB, fsys fs.FS, opts ...Option) *Runner {
	r := &Runner{db: db, fsys: fsys, table: defaultTable}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Up applies all pending migrations and returns how many ran.
func (r *Runner) Up(ctx context.Context) (int, error) {
	if err := r.ensureTable(ctx); err != nil {
		return 0, err
	}
	applied, err := r.applied(ctx)
	if err != nil {
		return 0, err
	}
	files, err := collect(r.fsys, upSuffix)
	if err != nil {
		return 0, err
	}
	ran := 0
	for _, mig := range files {
		if applied[mig.base] {
			continue
		}
		if err := r.execFile(ctx, mig.path); err != nil {
			return ran, fmt.Errorf("apply migration %s: %w", mig.base, err)
		}
		if err := r.record(ctx, mig.base); err != nil {
			return ran, err
		}
		ran++
	}
	return ran, nil
}

// Down rolls back the most recently applied migration. Every up file must
// have a matching down file for rollback to be available.
func (r *Runner) Down(ctx context.Context) error {
	if err := r.ensureTable(ctx); err != nil {
		return err
	}
	history, err := r.history(ctx)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return errors.New("migrate: nothing applied")
	}
	last := history[len(history)-1]

	files, err := collect(r.fsys, downSuffix)
	if err != nil {
		return err
	}
	want := strings.TrimSuffix(last, upSuffix) + downSuffix
	var down *sqlFile
	for i := range files {
		if files[i].base == want {
			down = &files[i]
			break
		}
	}
	if down == nil {
		return fmt.Errorf("migrate: missing down migration for %s", last)
	}
	if err := r.execFile(ctx, down.path); err != nil {
		return fmt.Errorf("rollback migration %s: %w", last, err)
	}
	_, err = r.db.ExecContext(ctx, fmt.Sprintf(`delete from %s where name = $1`, r.table), last)
	return err
}

// Status returns applied migrations in application order.
func (r *Runner) Status(ctx context.Context) ([]string, error) {
	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}
	return r.history(ctx)
}

func (r *Runner) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		create table if not exists %s (
			name       text primary key,
			applied_at timestamptz not null default now()
		)`, r.table)
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

func (r *Runner) execFile(ctx context.Context, path string) error {
	raw, err := fs.ReadFile(r.fsys, path)
	if err != nil {
		return err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(raw)) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Runner) record(ctx context.Context, name string) error {
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`insert into %s(name, applied_at) values ($1, $2)`, r.table),
		name, time.Now().UTC())
	return err
}

func (r *Runner) applied(ctx context.Context) (map[string]bool, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`select name from %s`, r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		result[name] = true
	}
	return result, rows.Err()
}

func (r *Runner) history(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`select name from %s order by applied_at asc, name asc`, r.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		res = append(res, name)
	}
	return res, rows.Err()
}

type sqlFile struct {
	base string
	path string
}

func collect(fsys fs.FS, suffix string) ([]sqlFile, error) {
	var files []sqlFile
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), suffix) {
			files = append(files, sqlFile{base: d.Name(), path: path})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].base < files[j].base
	})
	return files, nil
}

// splitStatements splits SQL on semicolons outside single-quoted strings.
func splitStatements(sql string) []string {
	var stmts []string
	var current strings.Builder
	var inString bool
	for _, r := range sql {
		switch r {
		case '\'':
			current.WriteRune(r)
			inString = !inString
		case ';':
			current.WriteRune(r)
			if !inString {
				stmts = append(stmts, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		stmts = append(stmts, current.String())
	}
	return stmts
}
