// Package job defines the migration job record and the durable queue
// interface the job runner polls (C5, C6).
package job

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status is a job's position in the queued → running → {succeeded, failed}
// lifecycle (§3, §4.6).
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Kind identifies the kind of work a job performs. §3: "kind ∈ {migrate}
// (extensible)" — only KindMigrate exists today, but the field and schema
// leave room for others.
type Kind string

// KindMigrate is the only job kind this system creates.
const KindMigrate Kind = "migrate"

// ErrNotFound is returned when no job exists for an ID.
var ErrNotFound = errors.New("job: not found")

// ErrInvalid is returned when a job fails validation.
var ErrInvalid = errors.New("job: invalid")

// ErrConflict is returned by Transition when the job's current status does
// not match the expected from-status — another writer already claimed or
// finished it (§4.6 "atomic optimistic-concurrency claim").
var ErrConflict = errors.New("job: status conflict")

// Job is one migrate-object-to-node request plus its lifecycle bookkeeping.
type Job struct {
	ID         int64
	Kind       Kind
	ObjectID   string
	SourceNode string
	DestNode   string
	Status     Status
	Retries    int
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Validate checks the structural invariants required to enqueue a job.
func (j Job) Validate() error {
	if j.ObjectID == "" {
		return fmt.Errorf("%w: object_id must not be empty", ErrInvalid)
	}
	if j.SourceNode == "" {
		return fmt.Errorf("%w: source_node must not be empty", ErrInvalid)
	}
	if j.DestNode == "" {
		return fmt.Errorf("%w: dest_node must not be empty", ErrInvalid)
	}
	if j.SourceNode == j.DestNode {
		return fmt.Errorf("%w: source_node and dest_node must differ", ErrInvalid)
	}
	return nil
}

// Store is the durable job queue. Enqueue creates a job in StatusQueued
// with Kind forced to KindMigrate (the only kind this system creates) and
// Retries at zero. PeekOldestQueued returns the oldest queued job without
// claiming it. Transition performs an atomic, optimistic-concurrency
// status change: it only applies if the job's current status equals from,
// otherwise it returns ErrConflict. bumpRetries increments the durable
// retry counter by one when the caller has classified the failure as
// transient (§4.6 step 4, §7); it is the store, not the runner, that is
// the source of truth for the counter (§4.5). Get returns a job by ID.
// List returns jobs, most recently created first.
type Store interface {
	Enqueue(ctx context.Context, j Job) (Job, error)
	Get(ctx context.Context, id int64) (Job, error)
	List(ctx context.Context) ([]Job, error)
	PeekOldestQueued(ctx context.Context) (Job, error)
	Transition(ctx context.Context, id int64, from, to Status, errMsg string, bumpRetries bool) error
}
