package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wisestep/emailing/config"
	"github.com/wisestep/emailing/internal/adapters/reaper"
)

// runnerStopTimeout bounds how long shutdown waits for the dispatch
// runner to drain its in-flight jobs.
const runnerStopTimeout = 30 * time.Second

// RunConfig contains dependencies for the service runtime.
type RunConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunWithShutdown starts the HTTP server and the dispatch runner and
// blocks until a shutdown signal is received or the runner fails.
func RunWithShutdown(cfg RunConfig) error {
	if cfg.Config == nil {
		return errors.New("run config missing AppConfig")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 2)
	runnerDone := make(chan struct{})
	go func() {
		defer close(runnerDone)
		if err := RunDispatchRunner(runCtx, DispatchRunnerConfig{
			Jobs:     cfg.Services.Jobs,
			Dispatch: cfg.Services.Dispatch,
			Config:   cfg.Config.Dispatch,
			Logger:   logger,
		}); err != nil {
			errCh <- err
		}
	}()

	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		if err := runReaper(runCtx, cfg, logger); err != nil {
			errCh <- err
		}
	}()

	server := StartHTTPServer(&HTTPServerConfig{
		Config:   cfg.Config,
		Services: cfg.Services,
		Logger:   logger,
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case <-quit:
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		logger.Error("background runner failed", "error", runErr)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Config.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := ShutdownHTTPServer(shutdownCtx, server, logger); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
		if runErr == nil {
			runErr = err
		}
	}

	select {
	case <-runnerDone:
		logger.Info("dispatch runner stopped")
	case <-time.After(runnerStopTimeout):
		logger.Warn("timeout waiting for dispatch runner to stop")
	}
	<-reaperDone

	if err := cfg.Services.Metrics.Close(); err != nil {
		logger.Warn("close statsd client failed", "error", err)
	}

	return runErr
}

// runReaper keeps the stuck-job reaper alive for the lifetime of the
// service; a canceled context is a clean stop.
func runReaper(ctx context.Context, cfg RunConfig, logger *slog.Logger) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		Jobs:    cfg.Services.Jobs,
		Config:  cfg.Config.Reaper,
		Logger:  logger,
		Metrics: cfg.Services.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper: %w", err)
	}
	if runErr := runner.Run(ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run reaper: %w", runErr)
	}
	return nil
}
