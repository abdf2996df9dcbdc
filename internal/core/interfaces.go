package core

import (
	"context"
	"strings"
	"time"

	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
)

// This file contains the port interfaces between the service layer and the
// data and provider layers. Services depend on these contracts, not on
// concrete implementations.

// JobRepository defines the interface for email job data operations.
type JobRepository interface {
	Create(ctx context.Context, job *model.EmailJob) error
	GetByID(ctx context.Context, id string) (*model.EmailJob, error)
	FindByMessageID(ctx context.Context, messageID string) ([]*model.EmailJob, error)
	ClaimProcessing(ctx context.Context, id string) (bool, error)
	MarkSent(ctx context.Context, id string, messageID *string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
	ListScheduledIDs(ctx context.Context, limit int) ([]string, error)
	WaitForNotification(ctx context.Context) (string, error)
}

// AccountKey identifies one linked mailbox account.
type AccountKey struct {
	UserID       string
	Provider     string
	AccountEmail string
}

// Validate checks that all three key parts are present.
func (k AccountKey) Validate() error {
	if strings.TrimSpace(k.UserID) == "" {
		return apperrors.ValidationField("user_id", "user id is required")
	}
	if strings.TrimSpace(k.Provider) == "" {
		return apperrors.ValidationField("provider", "provider is required")
	}
	if strings.TrimSpace(k.AccountEmail) == "" {
		return apperrors.ValidationField("account_email", "account email is required")
	}
	return nil
}

// UpdateTokensParams groups parameters for CredentialRepository.UpdateTokens.
type UpdateTokensParams struct {
	ID                    string
	EncryptedAccessToken  string
	AccessTokenExpiresAt  time.Time
	EncryptedRefreshToken string // empty keeps the stored refresh token
}

// CredentialRepository defines the interface for linked email account
// credential operations.
type CredentialRepository interface {
	GetByAccount(ctx context.Context, key AccountKey) (*model.Credential, error)
	Upsert(ctx context.Context, cred *model.Credential) error
	UpdateTokens(ctx context.Context, p UpdateTokensParams) error
	Delete(ctx context.Context, key AccountKey) (bool, error)
}

// DeliveryEventRepository defines the interface for delivery event persistence.
type DeliveryEventRepository interface {
	Insert(ctx context.Context, event *model.DeliveryEvent) error
	ListByJob(ctx context.Context, jobID string) ([]*model.DeliveryEvent, error)
}

// Sender delivers one email through a concrete provider. Attachments are
// decoded by the caller so a malformed attachment list can degrade before
// the provider is involved. Implementations return a provider message id
// when the provider exposes one on the send path.
type Sender interface {
	// Name returns the provider key the sender registers under.
	Name() string
	Send(ctx context.Context, job *model.EmailJob, atts []model.Attachment) (*model.SendResult, error)
}

// TokenRefresher exchanges a refresh token for a fresh access token grant.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*model.TokenGrant, error)
}

// AccessTokenSource resolves a usable access token for a linked account,
// refreshing and persisting as needed.
type AccessTokenSource interface {
	GetValidAccessToken(ctx context.Context, key AccountKey) (string, error)
}

// StateStore holds short-lived CSRF state for OAuth authorization flows.
type StateStore interface {
	Put(ctx context.Context, state, userID string) error
	Consume(ctx context.Context, state string) (string, error)
}
