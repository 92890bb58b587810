// Package sqlite is a SQLite-backed implementation of job.Store.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"replicator/internal/dbutil"
	"replicator/internal/job"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a SQLite-backed job.Store.
type Store struct {
	db *sql.DB
}

var _ job.Store = (*Store)(nil)

// Open opens (or creates) a job database at path and applies schema
// migrations.
func Open(path string) (*Store, error) {
	db, err := dbutil.Open(path)
	if err != nil {
		return nil, err
	}
	if err := dbutil.RunMigrations(db, migrationsFS, "job"); err != nil {
		db.Close()
		return nil, fmt.Errorf("job/sqlite: run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenWithDB wraps an already-open *sql.DB, applying this package's
// migrations to it. Used when the job store shares a database connection
// with another store (the control plane keeps jobs and nodes in one file).
func OpenWithDB(db *sql.DB) (*Store, error) {
	if err := dbutil.RunMigrations(db, migrationsFS, "job"); err != nil {
		return nil, fmt.Errorf("job/sqlite: run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Enqueue inserts j with StatusQueued and returns it with ID/timestamps set.
func (s *Store) Enqueue(ctx context.Context, j job.Job) (job.Job, error) {
	if err := j.Validate(); err != nil {
		return job.Job{}, err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (kind, object_id, source_node, dest_node, status, retries, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, '', ?, ?)
	`, job.KindMigrate, j.ObjectID, j.SourceNode, j.DestNode, job.StatusQueued, now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
	if err != nil {
		return job.Job{}, fmt.Errorf("job/sqlite: enqueue: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return job.Job{}, fmt.Errorf("job/sqlite: enqueue: last insert id: %w", err)
	}

	j.ID = id
	j.Kind = job.KindMigrate
	j.Status = job.StatusQueued
	j.Retries = 0
	j.Error = ""
	j.CreatedAt = now
	j.UpdatedAt = now
	return j, nil
}

// Get returns the job with id, or job.ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (job.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, object_id, source_node, dest_node, status, retries, error, created_at, updated_at
		FROM jobs WHERE id = ?
	`, id)
	return scanJob(row)
}

// List returns all jobs, most recently created first.
func (s *Store) List(ctx context.Context) ([]job.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, object_id, source_node, dest_node, status, retries, error, created_at, updated_at
		FROM jobs ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("job/sqlite: list: %w", err)
	}
	defer rows.Close()

	var jobs []job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("job/sqlite: list: %w", err)
	}
	return jobs, nil
}

// PeekOldestQueued returns the oldest job in StatusQueued without claiming
// it, or job.ErrNotFound if none are queued.
func (s *Store) PeekOldestQueued(ctx context.Context) (job.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, object_id, source_node, dest_node, status, retries, error, created_at, updated_at
		FROM jobs WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1
	`, job.StatusQueued)
	return scanJob(row)
}

// Transition atomically moves the job with id from status from to status
// to, setting errMsg (typically empty on success) and bumping retries by
// one if bumpRetries is set (the store is the source of truth for the
// retry count, §4.5). If the job's current status is not from, no row is
// updated and job.ErrConflict is returned — this is the compare-and-swap
// used to give exactly one runner ownership of a job (§4.6).
func (s *Store) Transition(ctx context.Context, id int64, from, to job.Status, errMsg string, bumpRetries bool) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	retryDelta := 0
	if bumpRetries {
		retryDelta = 1
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = ?, retries = retries + ?
		WHERE id = ? AND status = ?
	`, to, errMsg, now, retryDelta, id, from)
	if err != nil {
		return fmt.Errorf("job/sqlite: transition %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("job/sqlite: transition %d: rows affected: %w", id, err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, id); errors.Is(err, job.ErrNotFound) {
			return job.ErrNotFound
		}
		return job.ErrConflict
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (job.Job, error) {
	var j job.Job
	var kind, status string
	var createdAt, updatedAt string

	if err := row.Scan(&j.ID, &kind, &j.ObjectID, &j.SourceNode, &j.DestNode, &status, &j.Retries, &j.Error, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return job.Job{}, job.ErrNotFound
		}
		return job.Job{}, fmt.Errorf("job/sqlite: scan: %w", err)
	}
	j.Kind = job.Kind(kind)
	j.Status = job.Status(status)

	var err error
	if j.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return job.Job{}, fmt.Errorf("job/sqlite: parse created_at: %w", err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return job.Job{}, fmt.Errorf("job/sqlite: parse updated_at: %w", err)
	}
	return j, nil
}
