package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wisestep/emailing/internal/core"
	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
)

// SchedulingServiceOptions groups dependencies for SchedulingService.
type SchedulingServiceOptions struct {
	Jobs            core.JobRepository
	Registry        *ProviderRegistry
	DefaultProvider string
}

// SchedulingService accepts email submissions and persists them as
// scheduled jobs. Creating the row also registers the dispatch trigger,
// so a committed job is always picked up.
type SchedulingService struct {
	jobs            core.JobRepository
	registry        *ProviderRegistry
	defaultProvider string
	logger          *slog.Logger
	now             func() time.Time
}

// NewSchedulingService constructs the service.
func NewSchedulingService(opts SchedulingServiceOptions, logger *slog.Logger) *SchedulingService {
	if opts.Jobs == nil {
		panic("JobRepository is required")
	}
	if opts.Registry == nil {
		panic("ProviderRegistry is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SchedulingService{
		jobs:            opts.Jobs,
		registry:        opts.Registry,
		defaultProvider: opts.DefaultProvider,
		logger:          logger.With("component", "scheduling_service"),
		now:             time.Now,
	}
}

// Schedule validates the request and creates a scheduled job. Unknown
// providers are rejected up front rather than discovered at dispatch time.
func (s *SchedulingService) Schedule(ctx context.Context, req *model.EmailRequest) (*model.EmailJob, error) {
	if req == nil {
		return nil, apperrors.Validation("request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Provider != "" && !s.registry.Known(req.Provider) {
		return nil, apperrors.ValidationField("provider", fmt.Sprintf("unknown provider %q", req.Provider))
	}

	job, err := model.NewEmailJob(req, s.defaultProvider, s.now())
	if err != nil {
		return nil, err
	}
	if err = s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.logger.InfoContext(ctx, "email job scheduled",
		"job_id", job.ID, "provider", job.Provider, "recipient", job.Recipient)
	return job, nil
}

// Status returns the submitter-facing status projection for a job.
func (s *SchedulingService) Status(ctx context.Context, jobID string) (*model.JobStatusResponse, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	updatedAt := job.UpdatedAt
	return &model.JobStatusResponse{
		ID:           job.ID,
		Status:       job.Status,
		MessageID:    job.MessageID,
		ErrorMessage: job.ErrorMessage,
		UpdatedAt:    &updatedAt,
	}, nil
}
