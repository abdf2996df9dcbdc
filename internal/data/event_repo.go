package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	apperrors "github.com/wisestep/emailing/internal/errors"

	"github.com/wisestep/emailing/internal/data/pgxutil"
	"github.com/wisestep/emailing/internal/domain/model"
)

const eventColumns = `
  id,
  job_id,
  provider,
  provider_message_id,
  event_type,
  event_timestamp,
  recipient,
  url,
  ip_address,
  user_agent,
  reason,
  details,
  created_at
`

// EventRepo provides database operations for delivery events. The table
// is append-only; there are no update paths.
type EventRepo struct {
	DB     *sql.DB
	logger *slog.Logger
}

// EventRepoOptions groups optional dependencies for EventRepo.
type EventRepoOptions struct {
	Logger *slog.Logger
}

// NewEventRepo creates a new EventRepo instance.
func NewEventRepo(db *sql.DB, opts EventRepoOptions) *EventRepo {
	return &EventRepo{DB: db, logger: opts.Logger}
}

// Insert persists one delivery event, linked or not.
func (r *EventRepo) Insert(ctx context.Context, event *model.DeliveryEvent) error {
	if event == nil {
		return errors.New("event is required")
	}

	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO delivery_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		event.ID, event.JobID, event.Provider, event.ProviderMessageID,
		event.EventType, event.EventTimestamp, event.Recipient, event.URL,
		event.IPAddress, event.UserAgent, event.Reason, event.Details,
		event.CreatedAt,
	)
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("insert delivery event: %w", err))
	}
	return nil
}

// ListByJob returns the delivery events linked to one job, ordered by
// event timestamp. Webhook batches arrive unordered, so arrival order is
// meaningless here.
func (r *EventRepo) ListByJob(ctx context.Context, jobID string) ([]*model.DeliveryEvent, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, apperrors.Validation("job id is required")
	}

	var events []*model.DeliveryEvent
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, `
			SELECT `+eventColumns+`
			FROM delivery_events
			WHERE job_id = $1
			ORDER BY event_timestamp ASC, created_at ASC`, jobID)
		if queryErr != nil {
			return fmt.Errorf("query events by job: %w", queryErr)
		}
		defer rows.Close()

		collected, collectErr := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.DeliveryEvent])
		if collectErr != nil {
			return fmt.Errorf("collect events by job: %w", collectErr)
		}
		events = collected
		return nil
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return events, nil
}
