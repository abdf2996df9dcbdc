package sender

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/wisestep/emailing/config"
	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
)

const (
	elasticEmailDefaultBaseURL = "https://api.elasticemail.com"
	elasticEmailPlaceholderKey = "YOUR_ELASTICEMAIL_API_KEY"
)

// ElasticEmailSender delivers mail through the Elastic Email v2 API.
type ElasticEmailSender struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ElasticEmailOptions groups dependencies for ElasticEmailSender.
type ElasticEmailOptions struct {
	Config     config.ElasticEmailConfig
	BaseURL    string
	HTTPClient *http.Client
}

// NewElasticEmailSender creates an Elastic Email backed sender.
func NewElasticEmailSender(opts ElasticEmailOptions, logger *slog.Logger) *ElasticEmailSender {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = elasticEmailDefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ElasticEmailSender{
		apiKey:     opts.Config.APIKey,
		baseURL:    baseURL,
		httpClient: defaultHTTPClient(opts.HTTPClient),
		logger:     logger.With("component", "elasticemail_sender"),
	}
}

// Name returns the provider key.
func (s *ElasticEmailSender) Name() string {
	return "elasticemail"
}

// Send posts a multipart form to v2/email/send. The transaction id in the
// JSON response body becomes the provider message id.
func (s *ElasticEmailSender) Send(ctx context.Context, job *model.EmailJob, atts []model.Attachment) (*model.SendResult, error) {
	if s.apiKey == "" || s.apiKey == elasticEmailPlaceholderKey {
		return nil, apperrors.Config("elastic email api key is not configured")
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	fields := map[string]string{
		"apikey":          s.apiKey,
		"subject":         job.Subject,
		"from":            job.FromAddress,
		"fromName":        job.FromAddress,
		"to":              job.Recipient,
		"bodyHtml":        job.Body,
		"bodyText":        job.Body,
		"isTransactional": "false",
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "write elastic email field")
		}
	}
	for _, att := range atts {
		data, decodeErr := base64.StdEncoding.DecodeString(att.Data)
		if decodeErr != nil {
			return nil, apperrors.Wrapf(decodeErr, apperrors.ErrCodeValidation, "decode attachment %s", att.Filename)
		}
		part, partErr := form.CreateFormFile("file", att.Filename)
		if partErr != nil {
			return nil, apperrors.Wrap(partErr, apperrors.ErrCodeInternal, "create attachment part")
		}
		if _, writeErr := part.Write(data); writeErr != nil {
			return nil, apperrors.Wrap(writeErr, apperrors.ErrCodeInternal, "write attachment part")
		}
	}
	if err := form.Close(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "close elastic email form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v2/email/send", &buf)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build elastic email request")
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeProvider, "elastic email request failed")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.ErrorContext(ctx, "elastic email send rejected", "status", resp.StatusCode, "job_id", job.ID)
		return nil, apperrors.Providerf("elastic email send failed: status %d: %s", resp.StatusCode, truncate(string(body), 512))
	}

	// The v2 API reports failures inside a 200 response.
	if success := extractJSONField(body, "to_string(success)"); success != nil && *success == "false" {
		detail := extractJSONField(body, "error")
		msg := "elastic email send failed"
		if detail != nil {
			msg = fmt.Sprintf("elastic email send failed: %s", *detail)
		}
		s.logger.ErrorContext(ctx, "elastic email send error", "job_id", job.ID, "detail", msg)
		return nil, apperrors.Provider(msg)
	}

	messageID := extractJSONField(body, "data.transactionid")
	if messageID == nil {
		messageID = extractJSONField(body, "data.messageid")
	}
	s.logger.InfoContext(ctx, "elastic email send accepted", "job_id", job.ID)
	return &model.SendResult{MessageID: messageID}, nil
}
