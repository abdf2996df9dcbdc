// Package dispatchrunner drives email job execution. It LISTENs on the
// Postgres dispatch channel and feeds notified job ids to a worker pool,
// with a periodic poll sweep that picks up anything a dropped
// notification left behind.
package dispatchrunner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wisestep/emailing/internal/core"
)

const pollBatchSize = 100

// Executor runs one delivery attempt for a job id.
type Executor interface {
	Execute(ctx context.Context, jobID string) error
}

// RunnerOptions configures the dispatch runner adapter.
type RunnerOptions struct {
	Jobs     core.JobRepository
	Executor Executor
	Logger   *slog.Logger

	Concurrency  int           // number of worker goroutines; defaults to 1
	PollInterval time.Duration // fallback sweep interval; defaults to 15s
}

// Runner owns the listen loop, the poll sweep, and the worker pool.
type Runner struct {
	jobs         core.JobRepository
	executor     Executor
	logger       *slog.Logger
	workers      int
	pollInterval time.Duration
}

// NewRunner constructs a dispatch runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("Executor is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 15 * time.Second
	}
	return &Runner{
		jobs:         opts.Jobs,
		executor:     opts.Executor,
		logger:       logger.With("component", "dispatch_runner"),
		workers:      workers,
		pollInterval: pollInterval,
	}, nil
}

// Run starts the runner and blocks until the context is cancelled or a
// loop fails fatally. Duplicate ids from the listen and poll paths are
// harmless; the executor's atomic claim deduplicates.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting dispatch runner",
		"workers", r.workers, "poll_interval", r.pollInterval)

	queue := make(chan string, r.workers)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return r.listenLoop(gctx, queue) })
	group.Go(func() error { return r.pollLoop(gctx, queue) })
	for range r.workers {
		group.Go(func() error { return r.workerLoop(gctx, queue) })
	}

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// listenLoop turns dispatch-channel notifications into queued job ids.
// Connection failures back off and re-listen rather than killing the
// runner; the poll sweep covers the gap.
func (r *Runner) listenLoop(ctx context.Context, queue chan<- string) error {
	for ctx.Err() == nil {
		jobID, err := r.jobs.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			r.logger.WarnContext(ctx, "dispatch listen failed, retrying", "err", err)
			if !sleepCtx(ctx, time.Second) {
				break
			}
			continue
		}
		if jobID == "" {
			continue
		}
		if !r.enqueue(ctx, queue, jobID) {
			break
		}
	}
	return ctx.Err()
}

// pollLoop sweeps for scheduled jobs on an interval, starting with an
// immediate pass so a restart drains anything left over.
func (r *Runner) pollLoop(ctx context.Context, queue chan<- string) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		if err := r.sweep(ctx, queue); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Runner) sweep(ctx context.Context, queue chan<- string) error {
	ids, err := r.jobs.ListScheduledIDs(ctx, pollBatchSize)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.WarnContext(ctx, "dispatch poll failed", "err", err)
		return nil
	}
	if len(ids) > 0 {
		r.logger.DebugContext(ctx, "poll sweep found scheduled jobs", "count", len(ids))
	}
	for _, id := range ids {
		if !r.enqueue(ctx, queue, id) {
			return ctx.Err()
		}
	}
	return nil
}

func (r *Runner) workerLoop(ctx context.Context, queue <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case jobID := <-queue:
			if err := r.executor.Execute(ctx, jobID); err != nil {
				// Persistence-level failure. The job is still scheduled or
				// processing in the store and a later sweep retries it.
				r.logger.ErrorContext(ctx, "dispatch execution failed", "job_id", jobID, "err", err)
			}
		}
	}
}

func (r *Runner) enqueue(ctx context.Context, queue chan<- string, jobID string) bool {
	select {
	case <-ctx.Done():
		return false
	case queue <- jobID:
		return true
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
