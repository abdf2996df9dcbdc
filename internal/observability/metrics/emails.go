// Package metrics defines the metric emission helpers for the email
// dispatch pipeline.
package metrics

import (
	"time"

	obserrors "github.com/wisestep/emailing/internal/observability/errors"
	"github.com/wisestep/emailing/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSent   = "sent"
	ResultFailed = "failed"
	ResultNoop   = "noop"
)

// SendOutcome captures the terminal outcome of a dispatch attempt.
type SendOutcome struct {
	Provider string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitSendOutcome emits the dispatch outcome counter and timing.
func EmitSendOutcome(sink statsd.Sink, in SendOutcome) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"provider": in.Provider,
		"result":   in.Result,
	}
	if in.Err != nil && in.Result == ResultFailed {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("emails.dispatched", 1, tags)
	if in.Duration > 0 {
		sink.Timing("emails.send_duration", in.Duration, tags)
	}
}

// EmitWebhookBatch emits counters for an ingested delivery-event batch.
func EmitWebhookBatch(sink statsd.Sink, provider string, persisted int) {
	if sink == nil || persisted <= 0 {
		return
	}
	sink.Count("webhooks.events_persisted", int64(persisted), map[string]string{
		"provider": provider,
	})
}
