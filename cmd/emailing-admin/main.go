// Command emailing-admin runs operational tasks against the emailing
// database without starting the service: applying migrations and
// sweeping jobs stranded in processing. Useful when the service runs
// with RUN_MIGRATIONS_ON_START disabled.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/wisestep/emailing/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger, os.Args[1:]); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func usage() string {
	return `usage: emailing-admin <command>

commands:
  migrate             apply pending database migrations
  reap-stuck          fail jobs stuck in processing (see -stuck-after)
  providers           print the providers enabled by the current config
`
}

func run(ctx context.Context, logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage())
		return fmt.Errorf("missing command")
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	switch args[0] {
	case "migrate":
		return runMigrate(ctx, logger, cfg)
	case "reap-stuck":
		return runReapStuck(ctx, logger, cfg, args[1:])
	case "providers":
		return runProviders(ctx, logger, cfg)
	default:
		fmt.Fprint(os.Stderr, usage())
		return fmt.Errorf("unknown command %q", args[0])
	}
}
