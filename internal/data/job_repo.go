// Package data implements the PostgreSQL repositories backing the
// emailing system.
package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	apperrors "github.com/wisestep/emailing/internal/errors"

	"github.com/wisestep/emailing/internal/data/pgxutil"
	"github.com/wisestep/emailing/internal/domain/model"
)

// DispatchChannel is the pg_notify channel that wakes the dispatch runner
// when a job is scheduled.
const DispatchChannel = "email_job_scheduled"

const jobColumns = `
  id,
  recipient,
  from_address,
  subject,
  body,
  provider,
  user_id,
  status,
  attachments,
  message_id,
  error_message,
  created_at,
  updated_at
`

// JobRepo provides database operations for email job management.
type JobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// JobRepoOptions groups optional dependencies for JobRepo.
type JobRepoOptions struct {
	TimeProvider TimeProvider
	Logger       *slog.Logger
}

// NewJobRepo creates a new JobRepo instance with the given database connection.
func NewJobRepo(db *sql.DB, opts JobRepoOptions) *JobRepo {
	tp := opts.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobRepo{DB: db, timeProvider: tp, logger: logger}
}

// Create inserts a scheduled job and notifies the dispatch channel in one
// transaction, so a committed job always has a pending wake-up.
func (r *JobRepo) Create(ctx context.Context, job *model.EmailJob) error {
	if job == nil {
		return errors.New("job is required")
	}

	err := pgxutil.WithPgxTx(ctx, r.DB, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, `
			INSERT INTO email_jobs (`+jobColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			job.ID, job.Recipient, job.FromAddress, job.Subject, job.Body,
			job.Provider, job.UserID, job.Status, job.Attachments,
			job.MessageID, job.ErrorMessage, job.CreatedAt, job.UpdatedAt,
		)
		if execErr != nil {
			return fmt.Errorf("insert job: %w", execErr)
		}
		if _, notifyErr := tx.Exec(ctx, `SELECT pg_notify($1::text, $2::text)`, DispatchChannel, job.ID); notifyErr != nil {
			return fmt.Errorf("notify dispatch channel: %w", notifyErr)
		}
		return nil
	})
	if err != nil {
		return apperrors.MapDBError(err)
	}
	return nil
}

// GetByID retrieves a job by its id.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.EmailJob, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.Validation("job id is required")
	}

	var job *model.EmailJob
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, `SELECT `+jobColumns+` FROM email_jobs WHERE id = $1`, id)
		if queryErr != nil {
			return fmt.Errorf("query job: %w", queryErr)
		}
		defer rows.Close()

		collected, collectErr := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.EmailJob])
		if collectErr != nil {
			return collectErr
		}
		job = collected
		return nil
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return job, nil
}

// FindByMessageID returns jobs whose stored provider message id equals the
// given core id, ordered oldest first so ambiguous matches resolve
// deterministically.
func (r *JobRepo) FindByMessageID(ctx context.Context, messageID string) ([]*model.EmailJob, error) {
	if strings.TrimSpace(messageID) == "" {
		return nil, nil
	}

	var jobs []*model.EmailJob
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, `
			SELECT `+jobColumns+`
			FROM email_jobs
			WHERE message_id = $1
			ORDER BY created_at ASC, id ASC`, messageID)
		if queryErr != nil {
			return fmt.Errorf("query jobs by message id: %w", queryErr)
		}
		defer rows.Close()

		collected, collectErr := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.EmailJob])
		if collectErr != nil {
			return fmt.Errorf("collect jobs by message id: %w", collectErr)
		}
		jobs = collected
		return nil
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return jobs, nil
}

// ClaimProcessing atomically transitions a job from scheduled to
// processing. It returns false when the job was not in scheduled status,
// which is how a duplicate trigger loses the claim race.
func (r *JobRepo) ClaimProcessing(ctx context.Context, id string) (bool, error) {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE email_jobs
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4`,
		id, model.JobStatusProcessing, now, model.JobStatusScheduled,
	)
	if err != nil {
		return false, apperrors.MapDBError(fmt.Errorf("claim job: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim job rows affected: %w", err)
	}
	return affected == 1, nil
}

// MarkSent finalizes a processing job as sent, storing the provider
// message id (when one exists) and clearing any error detail. A job that
// already left processing keeps its state.
func (r *JobRepo) MarkSent(ctx context.Context, id string, messageID *string) error {
	now := r.timeProvider.Now().UTC()
	return r.finalize(ctx, finalizeParams{
		ID:        id,
		Status:    model.JobStatusSent,
		MessageID: messageID,
		UpdatedAt: now,
	})
}

// MarkFailed finalizes a processing job as failed with the given error
// detail. A job that already left processing keeps its state.
func (r *JobRepo) MarkFailed(ctx context.Context, id, errMsg string) error {
	now := r.timeProvider.Now().UTC()
	return r.finalize(ctx, finalizeParams{
		ID:        id,
		Status:    model.JobStatusFailed,
		ErrorMsg:  &errMsg,
		UpdatedAt: now,
	})
}

// finalizeParams groups parameters for finalize.
type finalizeParams struct {
	ID        string
	Status    model.JobStatus
	MessageID *string
	ErrorMsg  *string
	UpdatedAt time.Time
}

func (r *JobRepo) finalize(ctx context.Context, p finalizeParams) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE email_jobs
		SET status = $2, message_id = $3, error_message = $4, updated_at = $5
		WHERE id = $1 AND status = $6`,
		p.ID, p.Status, p.MessageID, p.ErrorMsg, p.UpdatedAt, model.JobStatusProcessing,
	)
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("finalize job: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize job rows affected: %w", err)
	}
	if affected == 0 {
		// Either the job vanished or something else finalized it first,
		// such as the reaper timing out a slow send. Terminal states stay
		// terminal, so a late outcome is a logged no-op.
		var current model.JobStatus
		scanErr := r.DB.QueryRowContext(ctx,
			`SELECT status FROM email_jobs WHERE id = $1`, p.ID,
		).Scan(&current)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return apperrors.NotFoundf("job %s not found", p.ID)
		}
		if scanErr != nil {
			return apperrors.MapDBError(fmt.Errorf("finalize job status check: %w", scanErr))
		}
		r.logger.WarnContext(ctx, "job already finalized, keeping existing state",
			"job_id", p.ID, "status", current, "requested", p.Status)
	}
	return nil
}

// FailStuckProcessing fails jobs that have sat in processing longer than
// olderThan. A dispatcher crash between claim and finalize strands jobs
// there; failing them keeps the terminal-state contract visible instead
// of leaving the job in limbo.
func (r *JobRepo) FailStuckProcessing(ctx context.Context, olderThan time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	now := r.timeProvider.Now().UTC()
	cutoff := now.Add(-olderThan)
	res, err := r.DB.ExecContext(ctx, `
		UPDATE email_jobs
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id IN (
			SELECT id FROM email_jobs
			WHERE status = $4 AND updated_at < $5
			ORDER BY updated_at ASC
			LIMIT $6
		)`,
		model.JobStatusFailed, "dispatch timed out: job stuck in processing", now,
		model.JobStatusProcessing, cutoff, batchSize,
	)
	if err != nil {
		return 0, apperrors.MapDBError(fmt.Errorf("fail stuck jobs: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fail stuck jobs rows affected: %w", err)
	}
	return affected, nil
}

// ListScheduledIDs returns ids of jobs still awaiting dispatch, oldest
// first. The dispatch runner uses this as its polling fallback when no
// notification arrives.
func (r *JobRepo) ListScheduledIDs(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT id FROM email_jobs
		WHERE status = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2`, model.JobStatusScheduled, limit)
	if err != nil {
		return nil, apperrors.MapDBError(fmt.Errorf("query scheduled jobs: %w", err))
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, fmt.Errorf("scan scheduled job id: %w", scanErr)
		}
		ids = append(ids, id)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate scheduled jobs: %w", rowsErr)
	}
	return ids, nil
}

// WaitForNotification blocks until a job id arrives on the dispatch
// channel or the context is done. A dedicated connection LISTENs for the
// duration of the call.
func (r *JobRepo) WaitForNotification(ctx context.Context) (string, error) {
	var jobID string
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		if _, listenErr := conn.Exec(ctx, `LISTEN `+DispatchChannel); listenErr != nil {
			return fmt.Errorf("listen on dispatch channel: %w", listenErr)
		}
		notification, waitErr := conn.WaitForNotification(ctx)
		if waitErr != nil {
			return waitErr
		}
		jobID = notification.Payload
		return nil
	})
	if err != nil {
		return "", err
	}
	return jobID, nil
}
