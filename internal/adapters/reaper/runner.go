// Package reaper fails email jobs stranded in processing.
package reaper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wisestep/emailing/config"
	"github.com/wisestep/emailing/internal/observability/statsd"
)

// Repository is the persistence surface the reaper needs.
type Repository interface {
	FailStuckProcessing(ctx context.Context, olderThan time.Duration, batchSize int) (int64, error)
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Jobs    Repository
	Config  config.ReaperConfig
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// Runner periodically sweeps the jobs table for processing rows older
// than the configured deadline and fails them. The dispatch claim is a
// one-way transition, so a job the reaper fails cannot be claimed again;
// a send already in flight may still reach the provider, but its late
// outcome cannot overwrite the failed state.
type Runner struct {
	jobs    Repository
	cfg     config.ReaperConfig
	logger  *slog.Logger
	metrics statsd.Sink
}

// NewRunner creates a new reaper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Jobs == nil {
		return nil, errors.New("jobs repository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	cfg.Sanitize()

	return &Runner{
		jobs:    opts.Jobs,
		cfg:     cfg,
		logger:  logger.With("component", "reaper"),
		metrics: opts.Metrics,
	}, nil
}

// Run executes reap sweeps until the context is canceled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper",
		"interval", r.cfg.Interval,
		"stuck_after", r.cfg.StuckAfter,
	)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Runner) sweep(ctx context.Context) {
	reaped, err := r.jobs.FailStuckProcessing(ctx, r.cfg.StuckAfter, r.cfg.BatchSize)
	if err != nil {
		r.logger.ErrorContext(ctx, "reap sweep failed", "error", err)
		return
	}
	if reaped == 0 {
		return
	}

	r.logger.WarnContext(ctx, "failed stuck processing jobs",
		"count", reaped,
		"stuck_after", r.cfg.StuckAfter,
	)
	if r.metrics != nil {
		r.metrics.Count("jobs.reaped", reaped, nil)
	}
}
