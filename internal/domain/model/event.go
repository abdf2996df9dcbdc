package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeliveryEvent is a normalized record of a provider-reported delivery
// outcome (delivered, bounce, open, click, ...). Events are append-only
// and created exclusively by webhook ingestion. JobID is a weak
// back-reference: lookup only, never ownership, and nil when no
// originating job could be correlated.
type DeliveryEvent struct {
	ID                string  `json:"id"                           db:"id"`
	JobID             *string `json:"job_id,omitempty"             db:"job_id"`
	Provider          string  `json:"provider"                     db:"provider"`
	ProviderMessageID *string `json:"provider_message_id,omitempty" db:"provider_message_id"`
	// EventType is the provider's raw event name, lowercased. Kept
	// free-form so new provider event types flow through without code
	// changes.
	EventType string `json:"event_type" db:"event_type"`
	// EventTimestamp comes from the payload, not arrival time. Consumers
	// must sort by it; batches carry no cross-batch ordering guarantee.
	EventTimestamp time.Time `json:"event_timestamp" db:"event_timestamp"`
	Recipient      *string   `json:"recipient,omitempty"  db:"recipient"`
	URL            *string   `json:"url,omitempty"        db:"url"`
	IPAddress      *string   `json:"ip_address,omitempty" db:"ip_address"`
	UserAgent      *string   `json:"user_agent,omitempty" db:"user_agent"`
	Reason         *string   `json:"reason,omitempty"     db:"reason"`
	// Details is the full raw event snapshot.
	Details   json.RawMessage `json:"details,omitempty" db:"details"`
	CreatedAt time.Time       `json:"created_at"        db:"created_at"`
}

// NewDeliveryEvent builds a DeliveryEvent shell for the given provider,
// stamping creation time explicitly.
func NewDeliveryEvent(provider string, now time.Time) *DeliveryEvent {
	return &DeliveryEvent{
		ID:        uuid.NewString(),
		Provider:  provider,
		EventType: "unknown",
		CreatedAt: now.UTC(),
	}
}
