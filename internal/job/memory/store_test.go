package memory

import (
	"context"
	"testing"

	"replicator/internal/job"
)

func TestEnqueueAssignsIDAndQueuedStatus(t *testing.T) {
	s := New()
	got, err := s.Enqueue(context.Background(), job.Job{ObjectID: "obj-1", SourceNode: "a", DestNode: "b"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got.ID == 0 {
		t.Fatal("Enqueue did not assign an ID")
	}
	if got.Status != job.StatusQueued {
		t.Fatalf("Status = %v, want %v", got.Status, job.StatusQueued)
	}
}

func TestEnqueueRejectsInvalidJob(t *testing.T) {
	s := New()
	if _, err := s.Enqueue(context.Background(), job.Job{SourceNode: "a", DestNode: "b"}); err == nil {
		t.Fatal("Enqueue accepted a job with empty object_id")
	}
	if _, err := s.Enqueue(context.Background(), job.Job{ObjectID: "x", SourceNode: "a", DestNode: "a"}); err == nil {
		t.Fatal("Enqueue accepted a job with source_node == dest_node")
	}
}

func TestPeekOldestQueuedOrdersByCreation(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, _ := s.Enqueue(ctx, job.Job{ObjectID: "first", SourceNode: "a", DestNode: "b"})
	_, _ = s.Enqueue(ctx, job.Job{ObjectID: "second", SourceNode: "a", DestNode: "b"})

	peeked, err := s.PeekOldestQueued(ctx)
	if err != nil {
		t.Fatalf("PeekOldestQueued: %v", err)
	}
	if peeked.ID != first.ID {
		t.Fatalf("PeekOldestQueued returned job %d, want %d", peeked.ID, first.ID)
	}
}

func TestPeekOldestQueuedSkipsNonQueued(t *testing.T) {
	s := New()
	ctx := context.Background()

	j, _ := s.Enqueue(ctx, job.Job{ObjectID: "obj-1", SourceNode: "a", DestNode: "b"})
	if err := s.Transition(ctx, j.ID, job.StatusQueued, job.StatusRunning, "", false); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	if _, err := s.PeekOldestQueued(ctx); err != job.ErrNotFound {
		t.Fatalf("PeekOldestQueued: got %v, want ErrNotFound", err)
	}
}

func TestTransitionRequiresMatchingFromStatus(t *testing.T) {
	s := New()
	ctx := context.Background()

	j, _ := s.Enqueue(ctx, job.Job{ObjectID: "obj-1", SourceNode: "a", DestNode: "b"})
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

func TestTransitionBumpsRetriesOnTransientFailure(t *testing.T) {
	s := New()
	ctx := context.Background()

	j, _ := s.Enqueue(ctx, job.Job{ObjectID: "obj-1", SourceNode: "a", DestNode: "b"})
	if err := s.Transition(ctx, j.ID, job.StatusQueued, job.StatusRunning, "", false); err != nil {
		t.Fatalf("Transition to running: %v", err)
	}
	if err := s.Transition(ctx, j.ID, job.StatusRunning, job.StatusFailed, "dst: 503", true); err != nil {
		t.Fatalf("Transition to failed: %v", err)
	}

	got, err := s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Retries != 1 {
		t.Fatalf("Retries = %d, want 1", got.Retries)
	}

	if err := s.Transition(ctx, j.ID, job.StatusFailed, job.StatusRunning, "", false); err != nil {
		t.Fatalf("Transition back to running: %v", err)
	}
	if err := s.Transition(ctx, j.ID, job.StatusRunning, job.StatusSucceeded, "", false); err != nil {
		t.Fatalf("Transition to succeeded: %v", err)
	}
	got, err = s.Get(ctx, j.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Retries != 1 {
		t.Fatalf("Retries = %d after non-transient transition, want unchanged 1", got.Retries)
	}
}

func TestTransitionOnUnknownJobReturnsNotFound(t *testing.T) {
	s := New()
	if err := s.Transition(context.Background(), 999, job.StatusQueued, job.StatusRunning, "", false); err != job.ErrNotFound {
		t.Fatalf("Transition: got %v, want ErrNotFound", err)
	}
}

func TestListOrdersMostRecentFirst(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, _ := s.Enqueue(ctx, job.Job{ObjectID: "a", SourceNode: "n1", DestNode: "n2"})
	b, _ := s.Enqueue(ctx, job.Job{ObjectID: "b", SourceNode: "n1", DestNode: "n2"})

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
