// Package memory is an in-process job.Store backed by a map, used in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"replicator/internal/job"
)

// Store is a concurrency-safe in-memory job.Store.
type Store struct {
	mu     sync.Mutex
	nextID int64
	jobs   map[int64]job.Job
}

var _ job.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{jobs: make(map[int64]job.Job)}
}

func (s *Store) Enqueue(_ context.Context, j job.Job) (job.Job, error) {
	if err := j.Validate(); err != nil {
		return job.Job{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	now := time.Now().UTC()
	j.ID = s.nextID
	j.Kind = job.KindMigrate
	j.Status = job.StatusQueued
	j.Retries = 0
	j.Error = ""
	j.CreatedAt = now
	j.UpdatedAt = now
	s.jobs[j.ID] = j
	return j, nil
}

func (s *Store) Get(_ context.Context, id int64) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return job.Job{}, job.ErrNotFound
	}
	return j, nil
}

func (s *Store) List(_ context.Context) ([]job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobs := make([]job.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].CreatedAt.Equal(jobs[k].CreatedAt) {
			return jobs[i].ID > jobs[k].ID
		}
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})
	return jobs, nil
}

func (s *Store) PeekOldestQueued(_ context.Context) (job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var oldest job.Job
	found := false
	for _, j := range s.jobs {
		if j.Status != job.StatusQueued {
			continue
		}
		if !found || j.CreatedAt.Before(oldest.CreatedAt) || (j.CreatedAt.Equal(oldest.CreatedAt) && j.ID < oldest.ID) {
			oldest = j
			found = true
		}
	}
	if !found {
		return job.Job{}, job.ErrNotFound
	}
	return oldest, nil
}

func (s *Store) Transition(_ context.Context, id int64, from, to job.Status, errMsg string, bumpRetries bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return job.ErrNotFound
	}
	if j.Status != from {
		return job.ErrConflict
	}
	j.Status = to
	j.Error = errMsg
	if bumpRetries {
		j.Retries++
	}
	j.UpdatedAt = time.Now().UTC()
	s.jobs[id] = j
	return nil
}
