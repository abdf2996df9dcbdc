// Package model defines the core data types used throughout the emailing system.
package model

import (
	"encoding/json"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/wisestep/emailing/internal/errors"
)

// JobStatus represents the lifecycle state of an email job.
type JobStatus string

const (
	// JobStatusScheduled indicates a job is waiting for its dispatch trigger.
	JobStatusScheduled JobStatus = "scheduled"
	// JobStatusProcessing indicates a job has been claimed by an executor.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusSent indicates the provider accepted the message.
	JobStatusSent JobStatus = "sent"
	// JobStatusFailed indicates delivery failed; ErrorMessage carries the detail.
	JobStatusFailed JobStatus = "failed"
)

// Valid returns true if the JobStatus is valid.
func (s JobStatus) Valid() bool {
	return s == JobStatusScheduled || s == JobStatusProcessing || s == JobStatusSent ||
		s == JobStatusFailed
}

// Terminal returns true once a job can no longer change state.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSent || s == JobStatusFailed
}

// EmailJob is a single outbound email assignment tracked through its
// lifecycle. Status transitions are monotonic:
// scheduled → processing → {sent, failed}.
type EmailJob struct {
	ID          string    `json:"id"                  db:"id"`
	Recipient   string    `json:"recipient"           db:"recipient"`
	FromAddress string    `json:"from_address"        db:"from_address"`
	Subject     string    `json:"subject"             db:"subject"`
	Body        string    `json:"body"                db:"body"`
	Provider    string    `json:"provider"            db:"provider"`
	UserID      *string   `json:"user_id,omitempty"   db:"user_id"`
	Status      JobStatus `json:"status"              db:"status"`
	// Attachments is the serialized attachment list as submitted;
	// deserialization happens at dispatch time and is best-effort.
	Attachments  json.RawMessage `json:"attachments,omitempty"   db:"attachments"`
	MessageID    *string         `json:"message_id,omitempty"    db:"message_id"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time       `json:"created_at"              db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"              db:"updated_at"`
}

// Attachment is a single file attached to an outbound email. Data is
// base64-encoded binary content.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Data        string `json:"data"`
}

// EmailRequest is a request to send one email.
type EmailRequest struct {
	To          string       `json:"to"`
	From        string       `json:"from"`
	Subject     string       `json:"subject"`
	Body        string       `json:"body"`
	Provider    string       `json:"provider,omitempty"`
	UserID      *string      `json:"user_id,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Validate validates the EmailRequest fields.
func (r *EmailRequest) Validate() error {
	if _, err := mail.ParseAddress(r.To); err != nil {
		return apperrors.ValidationField("to", "recipient must be a valid email address")
	}
	if _, err := mail.ParseAddress(r.From); err != nil {
		return apperrors.ValidationField("from", "from must be a valid email address")
	}
	if strings.TrimSpace(r.Subject) == "" {
		return apperrors.ValidationField("subject", "subject is required")
	}
	if r.Body == "" {
		return apperrors.ValidationField("body", "body is required")
	}
	for i := range r.Attachments {
		if r.Attachments[i].Filename == "" {
			return apperrors.ValidationField("attachments", "attachment filename is required")
		}
	}
	return nil
}

// NewEmailJob builds a scheduled EmailJob from a validated request,
// stamping creation time explicitly. Attachment serialization errors are
// surfaced rather than silently dropped; at this point the payload came
// straight from the caller and must round-trip.
func NewEmailJob(req *EmailRequest, defaultProvider string, now time.Time) (*EmailJob, error) {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = defaultProvider
	}

	job := &EmailJob{
		ID:          uuid.NewString(),
		Recipient:   req.To,
		FromAddress: req.From,
		Subject:     req.Subject,
		Body:        req.Body,
		Provider:    provider,
		UserID:      req.UserID,
		Status:      JobStatusScheduled,
		CreatedAt:   now.UTC(),
		UpdatedAt:   now.UTC(),
	}

	if len(req.Attachments) > 0 {
		raw, err := json.Marshal(req.Attachments)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "serialize attachments")
		}
		job.Attachments = raw
	}

	return job, nil
}

// DecodeAttachments deserializes the stored attachment list. Callers treat
// failures as a degraded (empty) list, not a hard precondition.
func (j *EmailJob) DecodeAttachments() ([]Attachment, error) {
	if len(j.Attachments) == 0 {
		return nil, nil
	}
	var atts []Attachment
	if err := json.Unmarshal(j.Attachments, &atts); err != nil {
		return nil, err
	}
	return atts, nil
}

// SendResult reports the outcome of a provider send. MessageID is nil for
// providers that return no identifier on the send path.
type SendResult struct {
	MessageID *string
}

// JobStatusResponse is the status projection returned to submitters.
type JobStatusResponse struct {
	ID           string     `json:"id"`
	Status       JobStatus  `json:"status"`
	MessageID    *string    `json:"message_id,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}
