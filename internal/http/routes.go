package httpx

import (
	"log/slog"
	"net/http"

	"github.com/wisestep/emailing/internal/core"
	"github.com/wisestep/emailing/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Scheduling *service.SchedulingService
	Webhooks   *service.WebhookService
	Events     core.DeliveryEventRepository

	// OAuth linking surface; empty Clients disables the oauth routes.
	OAuthClients map[string]OAuthClient
	States       core.StateStore
	Vault        *service.CredentialVault

	Logger *slog.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	emailHandlers := &EmailHandlers{Scheduling: services.Scheduling, Events: services.Events}
	mux.HandleFunc("POST /emails/send", emailHandlers.SendEmail)
	mux.HandleFunc("GET /emails/{id}/status", emailHandlers.JobStatus)
	mux.HandleFunc("GET /emails/{id}/events", emailHandlers.JobEvents)

	if services.Webhooks != nil {
		webhookHandlers := &WebhookHandlers{Svc: services.Webhooks, Logger: logger}
		mux.HandleFunc("POST /webhooks/sendgrid", webhookHandlers.SendGridEvents)
	}

	if len(services.OAuthClients) > 0 {
		oauthHandlers := &OAuthHandlers{
			Clients: services.OAuthClients,
			States:  services.States,
			Vault:   services.Vault,
			Logger:  logger,
		}
		mux.HandleFunc("GET /oauth/{provider}/authorize", oauthHandlers.Authorize)
		mux.HandleFunc("GET /oauth/{provider}/callback", oauthHandlers.Callback)
		mux.HandleFunc("DELETE /oauth/{provider}/accounts", oauthHandlers.Unlink)
	}

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	var handler http.Handler = mux
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}
