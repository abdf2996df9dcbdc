package data

import (
	"context"
	"database/sql"

	"github.com/wisestep/emailing/internal/migrate"
)

// RunMigrations sets up the emailing schema by delegating to the migrate package.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	return migrate.Run(ctx, db)
}
