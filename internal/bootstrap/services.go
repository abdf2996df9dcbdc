package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/wisestep/emailing/config"
	"github.com/wisestep/emailing/internal/adapters/redisstate"
	"github.com/wisestep/emailing/internal/core"
	"github.com/wisestep/emailing/internal/data"
	"github.com/wisestep/emailing/internal/data/cryptoutil"
	httpx "github.com/wisestep/emailing/internal/http"
	"github.com/wisestep/emailing/internal/oauth"
	"github.com/wisestep/emailing/internal/observability/notify"
	"github.com/wisestep/emailing/internal/observability/notify/pagerduty"
	"github.com/wisestep/emailing/internal/observability/notify/slack"
	"github.com/wisestep/emailing/internal/observability/statsd"
	"github.com/wisestep/emailing/internal/sender"
	"github.com/wisestep/emailing/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Jobs        *data.JobRepo
	Events      *data.EventRepo
	Credentials *data.CredentialRepo

	Registry   *service.ProviderRegistry
	Scheduling *service.SchedulingService
	Dispatch   *service.DispatchService
	Webhooks   *service.WebhookService
	Vault      *service.CredentialVault

	OAuthClients map[string]httpx.OAuthClient
	States       *redisstate.StateStore

	// Metrics is nil-safe; Close releases its UDP connection at shutdown.
	Metrics *statsd.Client
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// InitServices wires repositories, OAuth clients, senders, and services
// from configuration. Senders and OAuth routes are registered only for
// providers with credentials configured; the job pipeline itself is
// always built.
func InitServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	jobs := data.NewJobRepo(deps.DB, data.JobRepoOptions{Logger: logger})
	events := data.NewEventRepo(deps.DB, data.EventRepoOptions{Logger: logger})
	credentials := data.NewCredentialRepo(deps.DB, data.CredentialRepoOptions{Logger: logger})

	encryptor, err := NewTokenEncryptor(cfg.TokenEncryptionKey, cfg.IsDev, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	oauthClients, refreshers, err := buildOAuthClients(ctx, cfg, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	vault := service.NewCredentialVault(service.CredentialVaultOptions{
		Credentials: credentials,
		Cipher:      encryptor,
		Refreshers:  refreshers,
	}, logger)

	metricsClient, err := buildMetrics(cfg.Observability.Metrics, logger)
	if err != nil {
		return ServiceContainer{}, err
	}
	notifier, err := buildFailureNotifier(cfg.Observability.Notifications, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	registry := service.NewProviderRegistry(cfg.DefaultProvider, buildSenders(cfg, vault, logger)...)
	logger.Info("email providers registered",
		"providers", registry.Providers(),
		"default", cfg.DefaultProvider,
	)

	scheduling := service.NewSchedulingService(service.SchedulingServiceOptions{
		Jobs:            jobs,
		Registry:        registry,
		DefaultProvider: cfg.DefaultProvider,
	}, logger)

	dispatch := service.NewDispatchService(service.DispatchServiceOptions{
		Jobs:     jobs,
		Registry: registry,
		Metrics:  metricsClient,
		Notifier: notifier,
	}, logger)

	webhooks, err := buildWebhookService(cfg, events, jobs, metricsClient, logger)
	if err != nil {
		return ServiceContainer{}, err
	}

	return ServiceContainer{
		Jobs:         jobs,
		Events:       events,
		Credentials:  credentials,
		Registry:     registry,
		Scheduling:   scheduling,
		Dispatch:     dispatch,
		Webhooks:     webhooks,
		Vault:        vault,
		OAuthClients: oauthClients,
		States:       redisstate.NewStateStore(deps.RedisClient),
		Metrics:      metricsClient,
	}, nil
}

// buildMetrics dials the StatsD sink. An unset address yields a disabled
// client that drops all metrics.
func buildMetrics(cfg config.MetricsConfig, logger *slog.Logger) (*statsd.Client, error) {
	client, err := statsd.NewClient(statsd.Config{
		Address: cfg.StatsdAddress,
		Prefix:  "emailing",
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create statsd client: %w", err)
	}
	if client.Enabled() {
		logger.Info("statsd metrics enabled", "address", cfg.StatsdAddress)
	}
	return client, nil
}

// buildFailureNotifier assembles the configured send-failure sinks, or
// returns nil when none are configured.
//
//nolint:ireturn // notify.Sink is the fan-out contract.
func buildFailureNotifier(cfg config.NotificationsConfig, logger *slog.Logger) (notify.Sink, error) {
	var sinks []notify.Sink

	if cfg.SlackWebhookURL != "" {
		slackSink, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.SlackWebhookURL,
			Channel:    cfg.SlackChannel,
		})
		if err != nil {
			return nil, fmt.Errorf("create slack notifier: %w", err)
		}
		sinks = append(sinks, slackSink)
		logger.Info("slack failure notifications enabled", "channel", cfg.SlackChannel)
	}

	if cfg.PagerDutyRoutingKey != "" {
		pdSink, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDutyRoutingKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create pagerduty notifier: %w", err)
		}
		sinks = append(sinks, pdSink)
		logger.Info("pagerduty failure notifications enabled")
	}

	if len(sinks) == 0 {
		return nil, nil
	}
	return notify.Multi(sinks...), nil
}

// buildOAuthClients constructs clients for the configured mailbox
// providers. The same client serves the linking flow (authorize,
// exchange) and the vault's token refresh.
func buildOAuthClients(
	ctx context.Context,
	cfg *config.AppConfig,
	logger *slog.Logger,
) (map[string]httpx.OAuthClient, map[string]core.TokenRefresher, error) {
	clients := make(map[string]httpx.OAuthClient)
	refreshers := make(map[string]core.TokenRefresher)

	if cfg.OAuth.Google.Enabled() {
		google, err := oauth.NewGoogleClient(ctx, oauth.GoogleClientOptions{
			Config: cfg.OAuth.Google,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		clients["gmail"] = google
		refreshers["gmail"] = google
	}

	if cfg.OAuth.Microsoft.Enabled() {
		microsoft, err := oauth.NewMicrosoftClient(oauth.MicrosoftClientOptions{
			Config: cfg.OAuth.Microsoft,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		clients["outlook"] = microsoft
		refreshers["outlook"] = microsoft
	}

	return clients, refreshers, nil
}

// buildSenders returns one sender per configured provider. Mailbox
// senders draw access tokens from the vault per send.
func buildSenders(cfg *config.AppConfig, vault *service.CredentialVault, logger *slog.Logger) []core.Sender {
	var senders []core.Sender

	if cfg.Providers.SendGrid.Enabled() {
		senders = append(senders, sender.NewSendGridSender(sender.SendGridOptions{
			Config: cfg.Providers.SendGrid,
		}, logger))
	}
	if cfg.Providers.ElasticEmail.Enabled() {
		senders = append(senders, sender.NewElasticEmailSender(sender.ElasticEmailOptions{
			Config: cfg.Providers.ElasticEmail,
		}, logger))
	}
	if cfg.Providers.Mailchimp.Enabled() {
		senders = append(senders, sender.NewMailchimpSender(sender.MailchimpOptions{
			Config: cfg.Providers.Mailchimp,
		}, logger))
	}
	if cfg.Providers.SMTP.Enabled() {
		senders = append(senders, sender.NewSMTPSender(sender.SMTPOptions{
			Config: cfg.Providers.SMTP,
		}, logger))
	}
	if cfg.OAuth.Google.Enabled() {
		senders = append(senders, sender.NewGmailSender(sender.GmailOptions{Tokens: vault}, logger))
	}
	if cfg.OAuth.Microsoft.Enabled() {
		senders = append(senders, sender.NewOutlookSender(sender.OutlookOptions{Tokens: vault}, logger))
	}

	return senders
}

// buildWebhookService wires delivery-event ingestion when a verification
// key is configured. Without one the webhook route is not registered at
// all; accepting unsigned events would defeat the signature check.
func buildWebhookService(
	cfg *config.AppConfig,
	events core.DeliveryEventRepository,
	jobs core.JobRepository,
	metrics *statsd.Client,
	logger *slog.Logger,
) (*service.WebhookService, error) {
	key := cfg.Providers.SendGrid.WebhookVerificationKey
	if key == "" {
		logger.Warn("webhook verification key not configured; delivery event ingestion disabled")
		return nil, nil
	}

	verifier, err := cryptoutil.NewECDSAVerifier(key)
	if err != nil {
		return nil, err
	}

	return service.NewWebhookService(service.WebhookServiceOptions{
		Events:   events,
		Jobs:     jobs,
		Verifier: verifier,
		Metrics:  metrics,
	}, logger), nil
}
