package config

// ObservabilityConfig groups the optional metrics and failure
// notification sinks. All of them are disabled until the relevant
// address or key is configured.
type ObservabilityConfig struct {
	Metrics       MetricsConfig       `envPrefix:"METRICS_"`
	Notifications NotificationsConfig `envPrefix:"NOTIFY_"`
}

// MetricsConfig contains StatsD emission configuration.
type MetricsConfig struct {
	// StatsdAddress is the host:port of a StatsD-compatible UDP listener.
	StatsdAddress string `env:"STATSD_ADDRESS"`
}

// Enabled reports whether metrics should be emitted.
func (c MetricsConfig) Enabled() bool {
	return c.StatsdAddress != ""
}

// NotificationsConfig contains send-failure notification sinks.
type NotificationsConfig struct {
	SlackWebhookURL     string `env:"SLACK_WEBHOOK_URL"`
	SlackChannel        string `env:"SLACK_CHANNEL"`
	PagerDutyRoutingKey string `env:"PAGERDUTY_ROUTING_KEY"`
}
