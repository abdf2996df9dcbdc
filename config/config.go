package config

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - database.go: Postgres and Redis configuration
//   - providers.go: email provider configuration
//   - oauth.go: OAuth client configuration for mailbox providers
//   - server.go: HTTP server, dispatch runner, and reaper configuration
//   - observability.go: metrics and failure notification sinks
type AppConfig struct {
	// IsDev controls development mode behavior (looser logging, etc.)
	IsDev bool `env:"DEV" envDefault:"false"`

	// TokenEncryptionKey protects OAuth token material at rest.
	// Required for production; the placeholder value is rejected at startup.
	TokenEncryptionKey string `env:"TOKEN_ENCRYPTION_KEY"`

	// DefaultProvider is the provider key used when a send request
	// does not name one.
	DefaultProvider string `env:"DEFAULT_PROVIDER" envDefault:"sendgrid"`

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	Providers     ProvidersConfig
	OAuth         OAuthConfig
	HTTP          HTTPConfig
	Dispatch      DispatchConfig
	Reaper        ReaperConfig
	Observability ObservabilityConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.HTTP.Sanitize()
	c.Dispatch.Sanitize()
	c.Reaper.Sanitize()
}
