package testutil

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/wisestep/emailing/internal/domain/model"
)

// EmailRequestBuilder provides a fluent interface for building
// EmailRequest values for tests.
type EmailRequestBuilder struct {
	req *model.EmailRequest
}

// NewEmailRequest creates a builder with sensible defaults.
func NewEmailRequest() *EmailRequestBuilder {
	return &EmailRequestBuilder{
		req: &model.EmailRequest{
			To:      "candidate@example.com",
			From:    "recruiter@example.com",
			Subject: "Interview invitation",
			Body:    "<p>Hello</p>",
			UserID:  StringPtr("user-1"),
		},
	}
}

// WithProvider sets the provider key.
func (b *EmailRequestBuilder) WithProvider(provider string) *EmailRequestBuilder {
	b.req.Provider = provider
	return b
}

// WithTo sets the recipient.
func (b *EmailRequestBuilder) WithTo(to string) *EmailRequestBuilder {
	b.req.To = to
	return b
}

// WithFrom sets the from address.
func (b *EmailRequestBuilder) WithFrom(from string) *EmailRequestBuilder {
	b.req.From = from
	return b
}

// WithUserID sets the submitting user id.
func (b *EmailRequestBuilder) WithUserID(userID string) *EmailRequestBuilder {
	b.req.UserID = &userID
	return b
}

// WithAttachments sets the attachment list.
func (b *EmailRequestBuilder) WithAttachments(atts ...model.Attachment) *EmailRequestBuilder {
	b.req.Attachments = atts
	return b
}

// Build returns the constructed request.
func (b *EmailRequestBuilder) Build() *model.EmailRequest {
	return b.req
}

// EmailJobBuilder provides a fluent interface for building EmailJob rows
// for tests.
type EmailJobBuilder struct {
	job *model.EmailJob
}

// NewEmailJob creates a builder with sensible defaults.
func NewEmailJob() *EmailJobBuilder {
	now := TestTime()
	return &EmailJobBuilder{
		job: &model.EmailJob{
			ID:          uuid.NewString(),
			Recipient:   "candidate@example.com",
			FromAddress: "recruiter@example.com",
			Subject:     "Interview invitation",
			Body:        "<p>Hello</p>",
			Provider:    "sendgrid",
			UserID:      StringPtr("user-1"),
			Status:      model.JobStatusScheduled,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
}

// WithID sets the job id.
func (b *EmailJobBuilder) WithID(id string) *EmailJobBuilder {
	b.job.ID = id
	return b
}

// WithStatus sets the job status.
func (b *EmailJobBuilder) WithStatus(status model.JobStatus) *EmailJobBuilder {
	b.job.Status = status
	return b
}

// WithProvider sets the provider key.
func (b *EmailJobBuilder) WithProvider(provider string) *EmailJobBuilder {
	b.job.Provider = provider
	return b
}

// WithMessageID sets the stored provider message id.
func (b *EmailJobBuilder) WithMessageID(messageID string) *EmailJobBuilder {
	b.job.MessageID = &messageID
	return b
}

// WithAttachments serializes and sets the attachment list.
func (b *EmailJobBuilder) WithAttachments(atts ...model.Attachment) *EmailJobBuilder {
	raw, err := json.Marshal(atts)
	if err != nil {
		panic(err)
	}
	b.job.Attachments = raw
	return b
}

// WithRawAttachments sets the serialized attachment payload verbatim, for
// malformed-data tests.
func (b *EmailJobBuilder) WithRawAttachments(raw string) *EmailJobBuilder {
	b.job.Attachments = json.RawMessage(raw)
	return b
}

// WithCreatedAt sets the creation timestamp.
func (b *EmailJobBuilder) WithCreatedAt(ts time.Time) *EmailJobBuilder {
	b.job.CreatedAt = ts
	return b
}

// Build returns the constructed job.
func (b *EmailJobBuilder) Build() *model.EmailJob {
	return b.job
}

// CredentialBuilder provides a fluent interface for building Credential
// rows for tests.
type CredentialBuilder struct {
	cred *model.Credential
}

// NewCredential creates a builder with sensible defaults.
func NewCredential() *CredentialBuilder {
	now := TestTime()
	return &CredentialBuilder{
		cred: &model.Credential{
			ID:                    uuid.NewString(),
			UserID:                "user-1",
			Provider:              "gmail",
			AccountEmail:          "recruiter@example.com",
			EncryptedRefreshToken: "encrypted-refresh",
			CreatedAt:             now,
			UpdatedAt:             now,
		},
	}
}

// WithProvider sets the provider key.
func (b *CredentialBuilder) WithProvider(provider string) *CredentialBuilder {
	b.cred.Provider = provider
	return b
}

// WithAccessToken sets the encrypted access token and its expiry.
func (b *CredentialBuilder) WithAccessToken(encrypted string, expiresAt time.Time) *CredentialBuilder {
	b.cred.EncryptedAccessToken = &encrypted
	b.cred.AccessTokenExpiresAt = &expiresAt
	return b
}

// WithRefreshToken sets the encrypted refresh token.
func (b *CredentialBuilder) WithRefreshToken(encrypted string) *CredentialBuilder {
	b.cred.EncryptedRefreshToken = encrypted
	return b
}

// Build returns the constructed credential.
func (b *CredentialBuilder) Build() *model.Credential {
	return b.cred
}

// DeliveryEventBuilder provides a fluent interface for building
// DeliveryEvent rows for tests.
type DeliveryEventBuilder struct {
	event *model.DeliveryEvent
}

// NewDeliveryEvent creates a builder with sensible defaults.
func NewDeliveryEvent() *DeliveryEventBuilder {
	now := TestTime()
	return &DeliveryEventBuilder{
		event: &model.DeliveryEvent{
			ID:             uuid.NewString(),
			Provider:       "sendgrid",
			EventType:      "delivered",
			EventTimestamp: now,
			CreatedAt:      now,
		},
	}
}

// WithJobID links the event to a job.
func (b *DeliveryEventBuilder) WithJobID(jobID string) *DeliveryEventBuilder {
	b.event.JobID = &jobID
	return b
}

// WithEventType sets the normalized event type.
func (b *DeliveryEventBuilder) WithEventType(eventType string) *DeliveryEventBuilder {
	b.event.EventType = eventType
	return b
}

// WithProviderMessageID sets the raw provider message id.
func (b *DeliveryEventBuilder) WithProviderMessageID(id string) *DeliveryEventBuilder {
	b.event.ProviderMessageID = &id
	return b
}

// Build returns the constructed event.
func (b *DeliveryEventBuilder) Build() *model.DeliveryEvent {
	return b.event
}
