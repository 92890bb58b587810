package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"replicator/internal/job"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnqueueAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.Enqueue(ctx, job.Job{ObjectID: "obj-1", SourceNode: "a", DestNode: "b"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("Enqueue did not assign an ID")
	}

	got, err := s.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != job.StatusQueued || got.ObjectID != "obj-1" {
		t.Fatalf("Get returned unexpected job: %+v", got)
	}
}

func TestEnqueueRejectsInvalidJob(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Enqueue(context.Background(), job.Job{SourceNode: "a", DestNode: "b"}); err == nil {
		t.Fatal("Enqueue accepted a job with empty object_id")
	}
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get(context.Background(), 999); err != job.ErrNotFound {
		t.Fatalf("Get: got %v, want ErrNotFound", err)
	}
}

func TestPeekOldestQueuedOrdersByCreation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Enqueue(ctx, job.Job{ObjectID: "first", SourceNode: "a", DestNode: "b"})
	if err != nil {
		t.Fatalf("Enqueue first: %v", err)
	}
	if _, err := s.Enqueue(ctx, job.Job{ObjectID: "second", SourceNode: "a", DestNode: "b"}); err != nil {
		t.Fatalf("Enqueue second: %v", err)
	}

	peeked, err := s.PeekOldestQueued(ctx)
	if err != nil {
		t.Fatalf("PeekOldestQueued: %v", err)
	}
	if peeked.ID != first.ID {
		t.Fatalf("PeekOldestQueued returned job %d, want %d", peeked.ID, first.ID)
	}
}

func TestTransitionRequiresMatchingFromStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	j, err := s.Enqueue(ctx, job.Job{ObjectID: "obj-1", SourceNode: "a", DestNode: "b"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := s.Transition(ctx, j.ID, job.StatusRunning, job.StatusSucceeded, "", false); err != job.ErrConflict {
		t.Fatalf("Transition: got %v, want ErrConflict", err)
	}

	if err := s.Transition(ctx, j.ID, job.StatusQueued, job.StatusRunning, "", false); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	got, err := s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != job.StatusRunning {
		t.Fatalf("Status = %v, want %v", got.Status, job.StatusRunning)
	}
}

func TestTransitionRecordsErrorMessageOnFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	j, err := s.Enqueue(ctx, job.Job{ObjectID: "obj-1", SourceNode: "a", DestNode: "b"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := s.Transition(ctx, j.ID, job.StatusQueued, job.StatusRunning, "", false); err != nil {
		t.Fatalf("Transition to running: %v", err)
	}
	if err := s.Transition(ctx, j.ID, job.StatusRunning, job.StatusFailed, "destination unreachable", false); err != nil {
		t.Fatalf("Transition to failed: %v", err)
	}

	got, err := s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != job.StatusFailed || got.Error != "destination unreachable" {
		t.Fatalf("Get returned unexpected job: %+v", got)
	}
}

func TestTransitionBumpsRetriesOnTransientFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	j, err := s.Enqueue(ctx, job.Job{ObjectID: "obj-1", SourceNode: "a", DestNode: "b"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if j.Kind != job.KindMigrate {
		t.Fatalf("Kind = %q, want %q", j.Kind, job.KindMigrate)
	}
	if err := s.Transition(ctx, j.ID, job.StatusQueued, job.StatusRunning, "", false); err != nil {
		t.Fatalf("Transition to running: %v", err)
	}
	if err := s.Transition(ctx, j.ID, job.StatusRunning, job.StatusFailed, "dst: 503", true); err != nil {
		t.Fatalf("Transition to failed: %v", err)
	}
	if err := s.Transition(ctx, j.ID, job.StatusFailed, job.StatusRunning, "", false); err != nil {
		t.Fatalf("Transition back to running: %v", err)
	}
	if err := s.Transition(ctx, j.ID, job.StatusRunning, job.StatusFailed, "dst: 503 again", true); err != nil {
		t.Fatalf("Transition to failed again: %v", err)
	}

	got, err := s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Retries != 2 {
		t.Fatalf("Retries = %d, want 2", got.Retries)
	}
}

func TestListOrdersMostRecentFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.Enqueue(ctx, job.Job{ObjectID: "a", SourceNode: "n1", DestNode: "n2"})
	if err != nil {
		t.Fatalf("Enqueue a: %v", err)
	}
	b, err := s.Enqueue(ctx, job.Job{ObjectID: "b", SourceNode: "n1", DestNode: "n2"})
	if err != nil {
		t.Fatalf("Enqueue b: %v", err)
	}

	jobs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("List returned %d jobs, want 2", len(jobs))
	}
	if jobs[0].ID != b.ID || jobs[1].ID != a.ID {
		t.Fatalf("List not ordered most-recent-first: %+v", jobs)
	}
}
