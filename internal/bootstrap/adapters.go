package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/wisestep/emailing/config"
	"github.com/wisestep/emailing/internal/adapters/dispatchrunner"
	"github.com/wisestep/emailing/internal/core"
	"github.com/wisestep/emailing/internal/service"
)

// DispatchRunnerConfig contains configuration for the dispatch runner.
type DispatchRunnerConfig struct {
	Jobs     core.JobRepository
	Dispatch *service.DispatchService
	Config   config.DispatchConfig
	Logger   *slog.Logger
}

// RunDispatchRunner starts the dispatch runner and blocks until the
// context is canceled.
func RunDispatchRunner(ctx context.Context, cfg DispatchRunnerConfig) error {
	runner, err := dispatchrunner.NewRunner(dispatchrunner.RunnerOptions{
		Jobs:         cfg.Jobs,
		Executor:     cfg.Dispatch,
		Logger:       cfg.Logger,
		Concurrency:  cfg.Config.Concurrency,
		PollInterval: cfg.Config.PollInterval,
	})
	if err != nil {
		return fmt.Errorf("create dispatch runner: %w", err)
	}

	if runErr := runner.Run(ctx); runErr != nil {
		return fmt.Errorf("run dispatch runner: %w", runErr)
	}
	return nil
}
