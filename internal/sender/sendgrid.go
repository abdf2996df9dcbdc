package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/wisestep/emailing/config"
	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
)

const (
	sendGridDefaultBaseURL = "https://api.sendgrid.com"
	sendGridPlaceholderKey = "YOUR_SENDGRID_API_KEY"
)

// SendGridSender delivers mail through the SendGrid v3 API.
type SendGridSender struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// SendGridOptions groups dependencies for SendGridSender. BaseURL is
// overridable for tests and defaults to the public API.
type SendGridOptions struct {
	Config     config.SendGridConfig
	BaseURL    string
	HTTPClient *http.Client
}

// NewSendGridSender creates a SendGrid-backed sender.
func NewSendGridSender(opts SendGridOptions, logger *slog.Logger) *SendGridSender {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = sendGridDefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SendGridSender{
		apiKey:     opts.Config.APIKey,
		baseURL:    baseURL,
		httpClient: defaultHTTPClient(opts.HTTPClient),
		logger:     logger.With("component", "sendgrid_sender"),
	}
}

// Name returns the provider key.
func (s *SendGridSender) Name() string {
	return "sendgrid"
}

type sendGridEmail struct {
	Email string `json:"email"`
}

type sendGridPersonalization struct {
	To []sendGridEmail `json:"to"`
}

type sendGridContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendGridAttachment struct {
	Content     string `json:"content"`
	Type        string `json:"type,omitempty"`
	Filename    string `json:"filename"`
	Disposition string `json:"disposition"`
}

type sendGridMail struct {
	Personalizations []sendGridPersonalization `json:"personalizations"`
	From             sendGridEmail             `json:"from"`
	Subject          string                    `json:"subject"`
	Content          []sendGridContent         `json:"content"`
	Attachments      []sendGridAttachment      `json:"attachments,omitempty"`
}

// Send posts the job to v3/mail/send. Any 2xx is success; the provider
// message id comes from the X-Message-Id response header, with a body
// lookup as fallback.
func (s *SendGridSender) Send(ctx context.Context, job *model.EmailJob, atts []model.Attachment) (*model.SendResult, error) {
	if s.apiKey == "" || s.apiKey == sendGridPlaceholderKey {
		return nil, apperrors.Config("sendgrid api key is not configured")
	}

	mail := sendGridMail{
		Personalizations: []sendGridPersonalization{{To: []sendGridEmail{{Email: job.Recipient}}}},
		From:             sendGridEmail{Email: job.FromAddress},
		Subject:          job.Subject,
		Content:          []sendGridContent{{Type: "text/plain", Value: job.Body}},
	}
	for _, att := range atts {
		mail.Attachments = append(mail.Attachments, sendGridAttachment{
			Content:     att.Data,
			Type:        att.ContentType,
			Filename:    att.Filename,
			Disposition: "attachment",
		})
	}

	payload, err := json.Marshal(mail)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "marshal sendgrid payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v3/mail/send", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build sendgrid request")
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeProvider, "sendgrid request failed")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.ErrorContext(ctx, "sendgrid send rejected", "status", resp.StatusCode, "job_id", job.ID)
		return nil, apperrors.Providerf("sendgrid send failed: status %d: %s", resp.StatusCode, truncate(string(body), 512))
	}

	var messageID *string
	if header := resp.Header.Get("X-Message-Id"); header != "" {
		messageID = &header
	} else {
		messageID = extractJSONField(body, "message_id")
	}
	s.logger.InfoContext(ctx, "sendgrid send accepted", "job_id", job.ID, "status", resp.StatusCode)
	return &model.SendResult{MessageID: messageID}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
