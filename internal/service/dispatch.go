package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/wisestep/emailing/internal/core"
	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
	obserrors "github.com/wisestep/emailing/internal/observability/errors"
	"github.com/wisestep/emailing/internal/observability/metrics"
	"github.com/wisestep/emailing/internal/observability/notify"
	"github.com/wisestep/emailing/internal/observability/statsd"
)

// notifyTimeout bounds how long a failure notification may delay the
// dispatch worker.
const notifyTimeout = 10 * time.Second

// DispatchServiceOptions groups dependencies for DispatchService.
// Metrics and Notifier are optional.
type DispatchServiceOptions struct {
	Jobs     core.JobRepository
	Registry *ProviderRegistry
	Metrics  statsd.Sink
	Notifier notify.Sink
}

// DispatchService executes scheduled jobs. Execute is idempotent per job
// id: the scheduled-to-processing transition is an atomic conditional
// update, so concurrent triggers for the same job race for one claim and
// the losers no-op.
type DispatchService struct {
	jobs     core.JobRepository
	registry *ProviderRegistry
	metrics  statsd.Sink
	notifier notify.Sink
	logger   *slog.Logger
}

// NewDispatchService constructs the service.
func NewDispatchService(opts DispatchServiceOptions, logger *slog.Logger) *DispatchService {
	if opts.Jobs == nil {
		panic("JobRepository is required")
	}
	if opts.Registry == nil {
		panic("ProviderRegistry is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchService{
		jobs:     opts.Jobs,
		registry: opts.Registry,
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
		logger:   logger.With("component", "dispatch_service"),
	}
}

// Execute runs one delivery attempt for a job. Every failure after the
// claim is captured as a FAILED transition rather than returned; only a
// missing job record or a persistence failure surfaces as an error to the
// caller.
func (s *DispatchService) Execute(ctx context.Context, jobID string) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			s.logger.WarnContext(ctx, "dispatch trigger for unknown job", "job_id", jobID)
			return nil
		}
		return fmt.Errorf("load job: %w", err)
	}

	switch job.Status {
	case model.JobStatusSent, model.JobStatusFailed:
		s.logger.InfoContext(ctx, "job already finalized, skipping", "job_id", jobID, "status", job.Status)
		return nil
	case model.JobStatusProcessing:
		// Duplicate trigger or a crashed prior attempt. The job stays
		// visibly stuck rather than silently retried.
		s.logger.WarnContext(ctx, "job already processing, skipping", "job_id", jobID)
		return nil
	case model.JobStatusScheduled:
	default:
		s.logger.ErrorContext(ctx, "job has unknown status", "job_id", jobID, "status", job.Status)
		return nil
	}

	claimed, err := s.jobs.ClaimProcessing(ctx, jobID)
	if err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if !claimed {
		s.logger.InfoContext(ctx, "lost dispatch claim race", "job_id", jobID)
		return nil
	}

	return s.deliver(ctx, job)
}

// deliver runs the provider send for a claimed job and persists the final
// state unconditionally.
func (s *DispatchService) deliver(ctx context.Context, job *model.EmailJob) error {
	sender, err := s.registry.Resolve(job.Provider)
	if err != nil {
		return s.fail(ctx, job, fmt.Sprintf("no sender for provider %q", job.Provider), err)
	}

	// Attachments are best-effort: a malformed list degrades to none, and
	// the parse error only reaches the stored detail if the send fails too.
	atts, attErr := job.DecodeAttachments()
	if attErr != nil {
		s.logger.WarnContext(ctx, "attachment list is malformed, sending without attachments",
			"job_id", job.ID, "err", attErr)
		atts = nil
	}

	started := time.Now()
	result, sendErr := sender.Send(ctx, job, atts)
	if sendErr != nil {
		detail := sendErr.Error()
		if attErr != nil {
			detail = fmt.Sprintf("%s (attachments dropped: %v)", detail, attErr)
		}
		metrics.EmitSendOutcome(s.metrics, metrics.SendOutcome{
			Provider: job.Provider,
			Result:   metrics.ResultFailed,
			Duration: time.Since(started),
			Err:      sendErr,
		})
		return s.fail(ctx, job, detail, sendErr)
	}

	var messageID *string
	if result != nil {
		messageID = result.MessageID
	}
	if err = s.jobs.MarkSent(ctx, job.ID, messageID); err != nil {
		return fmt.Errorf("mark job sent: %w", err)
	}

	metrics.EmitSendOutcome(s.metrics, metrics.SendOutcome{
		Provider: job.Provider,
		Result:   metrics.ResultSent,
		Duration: time.Since(started),
	})
	s.logger.InfoContext(ctx, "job sent", "job_id", job.ID, "provider", job.Provider,
		"has_message_id", messageID != nil)
	return nil
}

func (s *DispatchService) fail(ctx context.Context, job *model.EmailJob, detail string, cause error) error {
	s.logger.ErrorContext(ctx, "job failed", "job_id", job.ID, "detail", detail)
	if err := s.jobs.MarkFailed(ctx, job.ID, detail); err != nil {
		return fmt.Errorf("mark job failed: %w", err)
	}
	s.notifyFailure(ctx, job, detail, cause)
	return nil
}

// notifyFailure delivers the failure to the configured sink. Delivery is
// best effort; a sink outage never affects the job outcome.
func (s *DispatchService) notifyFailure(ctx context.Context, job *model.EmailJob, detail string, cause error) {
	if s.notifier == nil {
		return
	}

	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	err := s.notifier.SendFailure(notifyCtx, notify.SendFailurePayload{
		JobID:      job.ID,
		Provider:   job.Provider,
		Recipient:  job.Recipient,
		Subject:    job.Subject,
		Error:      detail,
		ErrorClass: obserrors.Classify(cause),
		Severity:   notify.SeverityCritical,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "send failure notification failed", "job_id", job.ID, "error", err)
	}
}
