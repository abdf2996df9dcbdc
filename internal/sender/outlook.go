package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/wisestep/emailing/internal/core"
	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
)

const outlookDefaultBaseURL = "https://graph.microsoft.com/v1.0"

// OutlookSender delivers mail through the Microsoft Graph sendMail
// endpoint under a linked account identity. Graph answers 202 with no
// body, so there is never a provider message id.
type OutlookSender struct {
	tokens     core.AccessTokenSource
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// OutlookOptions groups dependencies for OutlookSender.
type OutlookOptions struct {
	Tokens     core.AccessTokenSource
	BaseURL    string
	HTTPClient *http.Client
}

// NewOutlookSender creates a Graph-backed sender.
func NewOutlookSender(opts OutlookOptions, logger *slog.Logger) *OutlookSender {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = outlookDefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OutlookSender{
		tokens:     opts.Tokens,
		baseURL:    baseURL,
		httpClient: defaultHTTPClient(opts.HTTPClient),
		logger:     logger.With("component", "outlook_sender"),
	}
}

// Name returns the provider key.
func (s *OutlookSender) Name() string {
	return "outlook"
}

type graphEmailAddress struct {
	Address string `json:"address"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphFileAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType,omitempty"`
	ContentBytes string `json:"contentBytes"`
}

type graphMessage struct {
	Subject      string                `json:"subject"`
	Body         graphItemBody         `json:"body"`
	ToRecipients []graphRecipient      `json:"toRecipients"`
	Attachments  []graphFileAttachment `json:"attachments,omitempty"`
}

type graphSendMailRequest struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems bool         `json:"saveToSentItems"`
}

// Send posts the job to me/sendMail. A 202 means Graph accepted it.
func (s *OutlookSender) Send(ctx context.Context, job *model.EmailJob, atts []model.Attachment) (*model.SendResult, error) {
	if job.UserID == nil || *job.UserID == "" {
		return nil, apperrors.Validation("a user id is required to send through a linked outlook account")
	}
	token, err := s.tokens.GetValidAccessToken(ctx, core.AccountKey{
		UserID:       *job.UserID,
		Provider:     "outlook",
		AccountEmail: job.FromAddress,
	})
	if err != nil {
		return nil, err
	}

	msg := graphSendMailRequest{
		Message: graphMessage{
			Subject:      job.Subject,
			Body:         graphItemBody{ContentType: "HTML", Content: job.Body},
			ToRecipients: []graphRecipient{{EmailAddress: graphEmailAddress{Address: job.Recipient}}},
		},
		SaveToSentItems: true,
	}
	for _, att := range atts {
		msg.Message.Attachments = append(msg.Message.Attachments, graphFileAttachment{
			ODataType:    "#microsoft.graph.fileAttachment",
			Name:         att.Filename,
			ContentType:  att.ContentType,
			ContentBytes: att.Data,
		})
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "marshal graph payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/me/sendMail", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build graph request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrCodeProvider, "graph request failed")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, apperrors.ReauthRequired("graph rejected the access token, account must be re-linked")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.ErrorContext(ctx, "graph send rejected", "status", resp.StatusCode, "job_id", job.ID)
		return nil, apperrors.Providerf("outlook send failed: status %d: %s", resp.StatusCode, truncate(string(body), 512))
	}

	s.logger.InfoContext(ctx, "graph send accepted", "job_id", job.ID, "account", job.FromAddress)
	return &model.SendResult{}, nil
}
