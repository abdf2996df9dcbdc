package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"time"

	"github.com/wisestep/emailing/config"
	"github.com/wisestep/emailing/internal/bootstrap"
	"github.com/wisestep/emailing/internal/data"
)

func connect(cfg config.AppConfig, logger *slog.Logger) (*sql.DB, error) {
	return bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig:    cfg.Postgres,
		RedisConfig: cfg.Redis,
		Logger:      logger,
	})
}

func runMigrate(ctx context.Context, logger *slog.Logger, cfg config.AppConfig) error {
	db, err := connect(cfg, logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer db.Close()

	return bootstrap.RunMigrations(ctx, db, logger)
}

func runReapStuck(ctx context.Context, logger *slog.Logger, cfg config.AppConfig, args []string) error {
	fs := flag.NewFlagSet("reap-stuck", flag.ContinueOnError)
	stuckAfter := fs.Duration("stuck-after", cfg.Reaper.StuckAfter, "fail jobs in processing longer than this")
	batchSize := fs.Int("batch-size", cfg.Reaper.BatchSize, "maximum jobs to fail in one sweep")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *stuckAfter <= 0 {
		return fmt.Errorf("stuck-after must be positive")
	}

	db, err := connect(cfg, logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer db.Close()

	jobs := data.NewJobRepo(db, data.JobRepoOptions{Logger: logger})
	reaped, err := jobs.FailStuckProcessing(ctx, *stuckAfter, *batchSize)
	if err != nil {
		return fmt.Errorf("fail stuck jobs: %w", err)
	}

	logger.InfoContext(ctx, "reap sweep complete",
		"reaped", reaped,
		"stuck_after", stuckAfter.Round(time.Second),
	)
	return nil
}

func runProviders(ctx context.Context, logger *slog.Logger, cfg config.AppConfig) error {
	type provider struct {
		name    string
		enabled bool
	}
	providers := []provider{
		{"sendgrid", cfg.Providers.SendGrid.Enabled()},
		{"elasticemail", cfg.Providers.ElasticEmail.Enabled()},
		{"mailchimp", cfg.Providers.Mailchimp.Enabled()},
		{"smtp", cfg.Providers.SMTP.Enabled()},
		{"gmail", cfg.OAuth.Google.Enabled()},
		{"outlook", cfg.OAuth.Microsoft.Enabled()},
	}

	for _, p := range providers {
		logger.InfoContext(ctx, "provider",
			"name", p.name,
			"enabled", p.enabled,
			"default", p.name == cfg.DefaultProvider,
		)
	}
	return nil
}
