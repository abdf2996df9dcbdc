// Package notify defines the send-failure notification contract shared
// by the downstream sinks.
package notify

import (
	"context"
	"errors"
	"time"
)

// Severity constants recognised by downstream sinks.
const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
)

// SendFailurePayload captures the canonical data we emit when an email
// job reaches the failed state.
type SendFailurePayload struct {
	JobID      string
	Provider   string
	Recipient  string
	Subject    string
	Error      string
	ErrorClass string
	Severity   string
	OccurredAt time.Time
}

// Sink describes a destination capable of consuming send failure notifications.
type Sink interface {
	SendFailure(ctx context.Context, payload SendFailurePayload) error
}

// SinkFunc adapts a function to the Sink interface (useful for tests).
type SinkFunc func(ctx context.Context, payload SendFailurePayload) error

// SendFailure implements the Sink interface.
func (f SinkFunc) SendFailure(ctx context.Context, payload SendFailurePayload) error {
	if f == nil {
		return nil
	}
	return f(ctx, payload)
}

// Multi fans a notification out to every sink. Sink errors are joined so
// one failing destination does not hide the others.
func Multi(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, payload SendFailurePayload) error {
		var errs []error
		for _, sink := range sinks {
			if sink == nil {
				continue
			}
			if err := sink.SendFailure(ctx, payload); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}
