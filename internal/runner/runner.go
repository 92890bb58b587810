// Package runner implements the single-writer job runner (C6): a
// gocron-driven poll loop that claims the oldest queued migration job,
// runs it through the migration engine, and records the terminal status.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"replicator/internal/httpclient"
	"replicator/internal/job"
	"replicator/internal/logging"
	"replicator/internal/migration"
	"replicator/internal/node"
)

// Config configures a Runner.
type Config struct {
	Jobs         job.Store
	Nodes        node.Registry
	Engine       *migration.Engine
	PollInterval time.Duration // default 2s
	Logger       *slog.Logger
}

// Runner polls job.Store for queued work and executes it one job at a
// time (§5 "single-writer job runner": exactly one goroutine ever claims
// and runs jobs, so there is no need to guard migration state with extra
// locking beyond the store's own atomic Transition).
type Runner struct {
	jobs         job.Store
	nodes        node.Registry
	engine       *migration.Engine
	pollInterval time.Duration
	logger       *slog.Logger

	scheduler gocron.Scheduler
}

// New returns a Runner. Call Start to begin polling.
func New(cfg Config) (*Runner, error) {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("runner: create scheduler: %w", err)
	}

	return &Runner{
		jobs:         cfg.Jobs,
		nodes:        cfg.Nodes,
		engine:       cfg.Engine,
		pollInterval: pollInterval,
		logger:       logging.Default(cfg.Logger).With("component", "runner"),
		scheduler:    s,
	}, nil
}

// Start registers the poll job and begins executing it on PollInterval.
// Non-blocking: the scheduler runs the poll loop on its own goroutine.
func (r *Runner) Start(ctx context.Context) error {
	_, err := r.scheduler.NewJob(
		gocron.DurationJob(r.pollInterval),
		gocron.NewTask(func() { r.pollOnce(ctx) }),
		gocron.WithName("job-runner-poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("runner: schedule poll job: %w", err)
	}
	r.scheduler.Start()
	r.logger.Info("job runner started", "poll_interval", r.pollInterval)
	return nil
}

// Stop shuts down the scheduler. In-flight jobs run to completion before
// Shutdown returns: gocron's stdlib-backed scheduler waits for its single
// executing task, and pollOnce claims at most one job per tick.
func (r *Runner) Stop() error {
	r.logger.Info("job runner stopping")
	return r.scheduler.Shutdown()
}

// pollOnce claims and runs at most one queued job. Errors are logged, not
// returned: a single malformed or unreachable job must never stop the poll
// loop from servicing the rest of the queue.
func (r *Runner) pollOnce(ctx context.Context) {
	j, err := r.jobs.PeekOldestQueued(ctx)
	if err != nil {
		if err != job.ErrNotFound {
			r.logger.Error("poll: peek oldest queued job failed", "error", err)
		}
		return
	}

	// Atomic optimistic-concurrency claim: if another writer already moved
	// this job out of queued, Transition reports ErrConflict and this tick
	// simply does nothing (§4.6).
	if err := r.jobs.Transition(ctx, j.ID, job.StatusQueued, job.StatusRunning, "", false); err != nil {
		if err != job.ErrConflict {
			r.logger.Error("poll: claim job failed", "job_id", j.ID, "error", err)
		}
		return
	}

	r.runJob(ctx, j)
}

func (r *Runner) runJob(ctx context.Context, j job.Job) {
	logger := r.logger.With("job_id", j.ID, "object_id", j.ObjectID, "src", j.SourceNode, "dst", j.DestNode)

	src, err := r.nodes.Get(ctx, j.SourceNode)
	if err != nil {
		r.fail(ctx, j.ID, logger, fmt.Errorf("resolve source node %s: %w", j.SourceNode, err))
		return
	}
	dst, err := r.nodes.Get(ctx, j.DestNode)
	if err != nil {
		r.fail(ctx, j.ID, logger, fmt.Errorf("resolve dest node %s: %w", j.DestNode, err))
		return
	}

	report, err := r.engine.Migrate(ctx, src.BaseURL, dst.BaseURL, j.ObjectID)
	if err != nil {
		r.fail(ctx, j.ID, logger, err)
		return
	}

	if err := r.jobs.Transition(ctx, j.ID, job.StatusRunning, job.StatusSucceeded, "", false); err != nil {
		logger.Error("record job success failed", "error", err)
		return
	}
	logger.Info("migration succeeded",
		"total_chunks", report.TotalChunks, "missing_chunks", report.MissingChunks, "copied_chunks", report.CopiedChunks)
}

func (r *Runner) fail(ctx context.Context, id int64, logger *slog.Logger, cause error) {
	// Only failures classified as transient (§7) bump the durable retry
	// counter; a resolve-node failure or a non-retryable protocol error is
	// not a transient one (§4.6 step 4).
	transient := httpclient.IsTransient(cause)
	logger.Error("migration failed", "error", cause, "transient", transient)
	if err := r.jobs.Transition(ctx, id, job.StatusRunning, job.StatusFailed, cause.Error(), transient); err != nil {
		logger.Error("record job failure failed", "error", err)
	}
}
