// Package registry persists golden repository records and the
// refresh-operation log in SQLite.
package registry

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golden-go/internal/golden"
	"golden-go/internal/registry/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteRegistry implements golden.Registry using SQLite.
type SQLiteRegistry struct {
	db   *sql.DB
	path string
}

// NewSQLiteRegistry opens (or creates) a registry database at path and
// brings its schema up to date. path can be ":memory:" for tests.
func NewSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating registry schema: %w", err)
	}

	return &SQLiteRegistry{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. Exported for tools and tests that need a raw connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Scheduler workers and CLI commands may hit the registry concurrently.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Create inserts a new repository record.
func (r *SQLiteRegistry) Create(rec *golden.RepoRecord) error {
	_, err := r.db.Exec(`
		INSERT INTO repos (
			alias, source_kind, upstream, default_branch,
			last_refresh_at, last_error, enable_temporal, enable_scip, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Alias,
		string(rec.SourceKind),
		rec.Upstream,
		rec.DefaultBranch,
		unixOrZero(rec.LastRefreshAt),
		rec.LastError,
		boolToInt(rec.EnableTemporal),
		boolToInt(rec.EnableSCIP),
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("creating repo record: %w", err)
	}
	return nil
}

// Get returns the record for an alias, or nil if it is not registered.
func (r *SQLiteRegistry) Get(alias string) (*golden.RepoRecord, error) {
	row := r.db.QueryRow(`
		SELECT alias, source_kind, upstream, default_branch,
		       last_refresh_at, last_error, enable_temporal, enable_scip, created_at
		FROM repos WHERE alias = ?
	`, alias)

	rec, err := scanRepo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("finding repo by alias: %w", err)
	}
	return rec, nil
}

// List returns all records ordered by alias.
func (r *SQLiteRegistry) List() ([]*golden.RepoRecord, error) {
	rows, err := r.db.Query(`
		SELECT alias, source_kind, upstream, default_branch,
		       last_refresh_at, last_error, enable_temporal, enable_scip, created_at
		FROM repos ORDER BY alias
	`)
	if err != nil {
		return nil, fmt.Errorf("listing repos: %w", err)
	}
	defer rows.Close()

	var recs []*golden.RepoRecord
	for rows.Next() {
		rec, err := scanRepo(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning repo row: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating repos: %w", err)
	}
	return recs, nil
}

// TouchRefresh records a successful publish time and clears the last error.
func (r *SQLiteRegistry) TouchRefresh(alias string, at time.Time) error {
	res, err := r.db.Exec(`
		UPDATE repos SET last_refresh_at = ?, last_error = '' WHERE alias = ?
	`, at.Unix(), alias)
	if err != nil {
		return fmt.Errorf("updating last refresh: %w", err)
	}
	return requireOneRow(res, alias)
}

// SetLastError records the most recent failure message for an alias.
func (r *SQLiteRegistry) SetLastError(alias, msg string) error {
	res, err := r.db.Exec(`UPDATE repos SET last_error = ? WHERE alias = ?`, msg, alias)
	if err != nil {
		return fmt.Errorf("updating last error: %w", err)
	}
	return requireOneRow(res, alias)
}

// Delete removes a repository record.
func (r *SQLiteRegistry) Delete(alias string) error {
	res, err := r.db.Exec(`DELETE FROM repos WHERE alias = ?`, alias)
	if err != nil {
		return fmt.Errorf("deleting repo record: %w", err)
	}
	return requireOneRow(res, alias)
}

// AppendOp appends one row to the refresh-operation log.
func (r *SQLiteRegistry) AppendOp(op *golden.RefreshOp) error {
	_, err := r.db.Exec(`
		INSERT INTO refresh_ops (id, alias, status, message, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, op.ID, op.Alias, op.Status, op.Message, op.StartedAt.Unix(), op.FinishedAt.Unix())
	if err != nil {
		return fmt.Errorf("appending refresh op: %w", err)
	}
	return nil
}

// ListOps returns the most recent operations, newest first.
func (r *SQLiteRegistry) ListOps(limit int) ([]*golden.RefreshOp, error) {
	rows, err := r.db.Query(`
		SELECT id, alias, status, message, started_at, finished_at
		FROM refresh_ops ORDER BY started_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing refresh ops: %w", err)
	}
	defer rows.Close()

	var ops []*golden.RefreshOp
	for rows.Next() {
		var op golden.RefreshOp
		var started, finished int64
		if err := rows.Scan(&op.ID, &op.Alias, &op.Status, &op.Message, &started, &finished); err != nil {
			return nil, fmt.Errorf("scanning refresh op: %w", err)
		}
		op.StartedAt = time.Unix(started, 0).UTC()
		op.FinishedAt = time.Unix(finished, 0).UTC()
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating refresh ops: %w", err)
	}
	return ops, nil
}

// Close closes the database connection.
func (r *SQLiteRegistry) Close() error {
	return r.db.Close()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRepo(s scanner) (*golden.RepoRecord, error) {
	var rec golden.RepoRecord
	var kind string
	var lastRefresh, created int64
	var temporal, scip int

	err := s.Scan(&rec.Alias, &kind, &rec.Upstream, &rec.DefaultBranch,
		&lastRefresh, &rec.LastError, &temporal, &scip, &created)
	if err != nil {
		return nil, err
	}

	rec.SourceKind = golden.SourceKind(kind)
	if lastRefresh > 0 {
		rec.LastRefreshAt = time.Unix(lastRefresh, 0).UTC()
	}
	rec.EnableTemporal = temporal != 0
	rec.EnableSCIP = scip != 0
	rec.CreatedAt = time.Unix(created, 0).UTC()
	return &rec, nil
}

func requireOneRow(res sql.Result, alias string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("alias is not registered: %s", alias)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
