package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/wisestep/emailing/internal/core"
	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
	"github.com/wisestep/emailing/internal/observability/metrics"
	"github.com/wisestep/emailing/internal/observability/statsd"
)

// PayloadVerifier checks a provider's signature over a raw webhook body and
// its timestamp header. A nil return means the payload is authentic.
type PayloadVerifier interface {
	Verify(payload []byte, signature, timestamp string) error
}

// IngestRequest carries one raw webhook delivery.
type IngestRequest struct {
	Provider  string
	Body      []byte
	Signature string
	Timestamp string
}

// WebhookServiceOptions groups dependencies for WebhookService.
// Metrics is optional.
type WebhookServiceOptions struct {
	Events   core.DeliveryEventRepository
	Jobs     core.JobRepository
	Verifier PayloadVerifier
	Metrics  statsd.Sink
}

// WebhookService ingests provider delivery-event webhooks: it verifies the
// payload signature, normalizes each event, correlates it back to the
// originating job by provider message id, and persists it append-only.
type WebhookService struct {
	events   core.DeliveryEventRepository
	jobs     core.JobRepository
	verifier PayloadVerifier
	metrics  statsd.Sink
	logger   *slog.Logger
	now      func() time.Time
}

// NewWebhookService constructs the service.
func NewWebhookService(opts WebhookServiceOptions, logger *slog.Logger) *WebhookService {
	if opts.Events == nil {
		panic("DeliveryEventRepository is required")
	}
	if opts.Jobs == nil {
		panic("JobRepository is required")
	}
	if opts.Verifier == nil {
		panic("PayloadVerifier is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookService{
		events:   opts.Events,
		jobs:     opts.Jobs,
		verifier: opts.Verifier,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "webhook_service"),
		now:      time.Now,
	}
}

// IngestResult summarizes one verified webhook batch: how many events
// were stored (linked or not) and how many were lost to per-event
// persistence failures.
type IngestResult struct {
	Persisted int
	Dropped   int
}

// Ingest processes one webhook delivery. An invalid signature rejects the
// whole batch; after that, events are isolated from each other and a bad
// event never blocks the rest of the batch, it only shows up in the
// dropped count.
func (s *WebhookService) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if err := s.verifier.Verify(req.Body, req.Signature, req.Timestamp); err != nil {
		s.logger.WarnContext(ctx, "webhook signature rejected", "provider", req.Provider, "err", err)
		return IngestResult{}, apperrors.Unauthorized("webhook signature verification failed")
	}

	var raw []map[string]any
	if err := json.Unmarshal(req.Body, &raw); err != nil {
		return IngestResult{}, apperrors.Validation("webhook body is not a JSON event array")
	}

	var result IngestResult
	for i, payload := range raw {
		event := s.normalize(ctx, req.Provider, payload)
		if err := s.events.Insert(ctx, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to persist delivery event",
				"provider", req.Provider, "index", i, "event_type", event.EventType, "err", err)
			result.Dropped++
			continue
		}
		result.Persisted++
	}
	metrics.EmitWebhookBatch(s.metrics, req.Provider, result.Persisted)
	return result, nil
}

// normalize maps one raw provider event onto a DeliveryEvent, correlating
// it to a job when the provider message id matches one we recorded at send
// time.
func (s *WebhookService) normalize(ctx context.Context, provider string, payload map[string]any) *model.DeliveryEvent {
	event := model.NewDeliveryEvent(provider, s.now())

	if v := stringField(payload, "event"); v != "" {
		event.EventType = strings.ToLower(v)
	}
	event.EventTimestamp = s.eventTime(payload)
	event.Recipient = optionalField(payload, "email")
	event.URL = optionalField(payload, "url")
	event.IPAddress = optionalField(payload, "ip")
	event.UserAgent = optionalField(payload, "useragent")
	event.Reason = optionalField(payload, "reason")

	if snapshot, err := json.Marshal(payload); err == nil {
		event.Details = snapshot
	}

	if messageID := stringField(payload, "sg_message_id"); messageID != "" {
		// SendGrid suffixes the send-time message id with routing metadata
		// after a dot; only the prefix matches what the send API returned.
		base := strings.SplitN(messageID, ".", 2)[0]
		event.ProviderMessageID = &base
		s.correlate(ctx, event, base)
	}
	return event
}

func (s *WebhookService) correlate(ctx context.Context, event *model.DeliveryEvent, messageID string) {
	jobs, err := s.jobs.FindByMessageID(ctx, messageID)
	if err != nil {
		s.logger.ErrorContext(ctx, "job correlation lookup failed",
			"provider_message_id", messageID, "err", err)
		return
	}
	switch {
	case len(jobs) == 0:
		// Event from a send this system did not originate. Still stored,
		// just unlinked.
	case len(jobs) == 1:
		event.JobID = &jobs[0].ID
	default:
		event.JobID = &jobs[0].ID
		s.logger.WarnContext(ctx, "provider message id matches multiple jobs",
			"provider_message_id", messageID, "matches", len(jobs), "linked_job_id", jobs[0].ID)
	}
}

// eventTime reads the epoch-seconds timestamp field, falling back to
// ingestion time when it is missing or malformed.
func (s *WebhookService) eventTime(payload map[string]any) time.Time {
	switch v := payload["timestamp"].(type) {
	case float64:
		return time.Unix(int64(v), 0).UTC()
	case string:
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Unix(secs, 0).UTC()
		}
	}
	return s.now().UTC()
}

func stringField(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

func optionalField(payload map[string]any, key string) *string {
	if v := stringField(payload, key); v != "" {
		return &v
	}
	return nil
}
