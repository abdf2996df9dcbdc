package sender

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/wisestep/emailing/internal/core"
	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
)

const gmailDefaultBaseURL = "https://gmail.googleapis.com"

// GmailSender delivers mail through the Gmail API under a linked account
// identity. The access token comes from the credential vault and is
// refreshed there when stale.
type GmailSender struct {
	tokens     core.AccessTokenSource
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// GmailOptions groups dependencies for GmailSender.
type GmailOptions struct {
	Tokens     core.AccessTokenSource
	BaseURL    string
	HTTPClient *http.Client
}

// NewGmailSender creates a Gmail-backed sender.
func NewGmailSender(opts GmailOptions, logger *slog.Logger) *GmailSender {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = gmailDefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GmailSender{
		tokens:     opts.Tokens,
		baseURL:    baseURL,
		httpClient: defaultHTTPClient(opts.HTTPClient),
		logger:     logger.With("component", "gmail_sender"),
	}
}

// Name returns the provider key.
func (s *GmailSender) Name() string {
	return "gmail"
}

// Send builds the RFC 822 message, base64url-encodes it, and posts it to
// users/me/messages/send as the linked account. The response id is the
// provider message id.
func (s *GmailSender) Send(ctx context.Context, job *model.EmailJob, atts []model.Attachment) (*model.SendResult, error) {
	if job.UserID == nil || *job.UserID == "" {
		return nil, apperrors.Validation("a user id is required to send through a linked gmail account")
	}
	token, err := s.tokens.GetValidAccessToken(ctx, core.AccountKey{
		UserID:       *job.UserID,
		Provider:     "gmail",
		AccountEmail: job.FromAddress,
	})
	if err != nil {
		return nil, err
	}

	raw, err := buildMIMEMessage(job, atts)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "build mime message")
	}

	payload, err := json.Marshal(map[string]string{
		"raw": base64.URLEncoding.EncodeToString(raw),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "marshal gmail payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/gmail/v1/users/me/messages/send", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build gmail request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeProvider, "gmail request failed")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, apperrors.ReauthRequired("gmail rejected the access token, account must be re-linked")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.ErrorContext(ctx, "gmail send rejected", "status", resp.StatusCode, "job_id", job.ID)
		return nil, apperrors.Providerf("gmail send failed: status %d: %s", resp.StatusCode, truncate(string(body), 512))
	}

	messageID := extractJSONField(body, "id")
	s.logger.InfoContext(ctx, "gmail send accepted", "job_id", job.ID, "account", job.FromAddress)
	return &model.SendResult{MessageID: messageID}, nil
}
