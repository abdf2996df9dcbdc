package httpx

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/wisestep/emailing/internal/service"
)

// SendGrid event-webhook signature headers.
const (
	sendGridSignatureHeader = "X-Twilio-Email-Event-Webhook-Signature"
	sendGridTimestampHeader = "X-Twilio-Email-Event-Webhook-Timestamp"
)

// Webhook bodies are provider-controlled input; cap them well above any
// realistic batch size.
const maxWebhookBodyBytes = 1 << 20

// WebhookHandlers provides HTTP handlers for inbound provider webhooks.
type WebhookHandlers struct {
	Svc    *service.WebhookService
	Logger *slog.Logger
}

// SendGridEvents handles POST /webhooks/sendgrid. The raw body is passed
// through untouched because the signature covers the exact bytes SendGrid
// sent.
func (h *WebhookHandlers) SendGridEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_body", Err: err})
		return
	}

	result, err := h.Svc.Ingest(r.Context(), service.IngestRequest{
		Provider:  "sendgrid",
		Body:      body,
		Signature: r.Header.Get(sendGridSignatureHeader),
		Timestamp: r.Header.Get(sendGridTimestampHeader),
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]int{
		"processed": result.Persisted,
		"dropped":   result.Dropped,
	})
}
