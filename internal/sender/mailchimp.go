package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/wisestep/emailing/config"
	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
)

const (
	mailchimpDefaultBaseURL = "https://mandrillapp.com"
	mailchimpPlaceholderKey = "YOUR_MAILCHIMP_API_KEY"
)

// MailchimpSender delivers mail through the Mailchimp Transactional
// (Mandrill) messages API.
type MailchimpSender struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// MailchimpOptions groups dependencies for MailchimpSender. BaseURL is
// overridable for tests and defaults to the public API.
type MailchimpOptions struct {
	Config     config.MailchimpConfig
	BaseURL    string
	HTTPClient *http.Client
}

// NewMailchimpSender creates a Mailchimp-backed sender.
func NewMailchimpSender(opts MailchimpOptions, logger *slog.Logger) *MailchimpSender {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = mailchimpDefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MailchimpSender{
		apiKey:     opts.Config.APIKey,
		baseURL:    baseURL,
		httpClient: defaultHTTPClient(opts.HTTPClient),
		logger:     logger.With("component", "mailchimp_sender"),
	}
}

// Name returns the provider key.
func (s *MailchimpSender) Name() string {
	return "mailchimp"
}

type mailchimpRecipient struct {
	Email string `json:"email"`
	Type  string `json:"type"`
}

type mailchimpAttachment struct {
	Type    string `json:"type,omitempty"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

type mailchimpMessage struct {
	HTML        string                `json:"html"`
	Subject     string                `json:"subject"`
	FromEmail   string                `json:"from_email"`
	To          []mailchimpRecipient  `json:"to"`
	Attachments []mailchimpAttachment `json:"attachments,omitempty"`
}

type mailchimpSendRequest struct {
	Key     string           `json:"key"`
	Message mailchimpMessage `json:"message"`
}

type mailchimpSendResult struct {
	Email        string `json:"email"`
	Status       string `json:"status"`
	ID           string `json:"_id"`
	RejectReason string `json:"reject_reason"`
}

// Send posts the job to messages/send. Mandrill reports per-recipient
// outcomes inside a 200 response; sent, queued and scheduled all count as
// accepted, anything else is a provider failure with the reject reason.
func (s *MailchimpSender) Send(ctx context.Context, job *model.EmailJob, atts []model.Attachment) (*model.SendResult, error) {
	if s.apiKey == "" || s.apiKey == mailchimpPlaceholderKey {
		return nil, apperrors.Config("mailchimp api key is not configured")
	}

	message := mailchimpMessage{
		HTML:      job.Body,
		Subject:   job.Subject,
		FromEmail: job.FromAddress,
		To:        []mailchimpRecipient{{Email: job.Recipient, Type: "to"}},
	}
	for _, att := range atts {
		message.Attachments = append(message.Attachments, mailchimpAttachment{
			Type:    att.ContentType,
			Name:    att.Filename,
			Content: att.Data,
		})
	}

	payload, err := json.Marshal(mailchimpSendRequest{Key: s.apiKey, Message: message})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "marshal mailchimp payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/1.0/messages/send", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build mailchimp request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeProvider, "mailchimp request failed")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.ErrorContext(ctx, "mailchimp send rejected", "status", resp.StatusCode, "job_id", job.ID)
		return nil, apperrors.Providerf("mailchimp send failed: status %d: %s", resp.StatusCode, truncate(string(body), 512))
	}

	var results []mailchimpSendResult
	if err = json.Unmarshal(body, &results); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeProvider, "parse mailchimp response")
	}
	if len(results) == 0 {
		return nil, apperrors.Provider("mailchimp send failed: empty response")
	}

	result := results[0]
	switch strings.ToLower(result.Status) {
	case "sent", "queued", "scheduled":
	default:
		msg := "mailchimp send failed: status " + result.Status
		if result.RejectReason != "" {
			msg += ", reason " + result.RejectReason
		}
		s.logger.ErrorContext(ctx, "mailchimp send error", "job_id", job.ID, "detail", msg)
		return nil, apperrors.Provider(msg)
	}

	var messageID *string
	if result.ID != "" {
		messageID = &result.ID
	}
	s.logger.InfoContext(ctx, "mailchimp send accepted", "job_id", job.ID, "status", result.Status)
	return &model.SendResult{MessageID: messageID}, nil
}
