package config

// ProvidersConfig groups configuration for the built-in email providers.
type ProvidersConfig struct {
	SendGrid     SendGridConfig     `envPrefix:"SENDGRID_"`
	ElasticEmail ElasticEmailConfig `envPrefix:"ELASTICEMAIL_"`
	Mailchimp    MailchimpConfig    `envPrefix:"MAILCHIMP_"`
	SMTP         SMTPConfig         `envPrefix:"SMTP_"`
}

// SendGridConfig contains SendGrid API and webhook configuration.
type SendGridConfig struct {
	APIKey string `env:"API_KEY"`
	// WebhookVerificationKey is the base64 ECDSA public key from the
	// SendGrid event-webhook settings page.
	WebhookVerificationKey string `env:"WEBHOOK_VERIFICATION_KEY"`
}

// Enabled reports whether the SendGrid sender should be registered.
func (c SendGridConfig) Enabled() bool {
	return c.APIKey != ""
}

// ElasticEmailConfig contains Elastic Email API configuration.
type ElasticEmailConfig struct {
	APIKey string `env:"API_KEY"`
}

// Enabled reports whether the Elastic Email sender should be registered.
func (c ElasticEmailConfig) Enabled() bool {
	return c.APIKey != ""
}

// MailchimpConfig contains Mailchimp Transactional (Mandrill) API
// configuration.
type MailchimpConfig struct {
	APIKey string `env:"API_KEY"`
}

// Enabled reports whether the Mailchimp sender should be registered.
func (c MailchimpConfig) Enabled() bool {
	return c.APIKey != ""
}

// SMTPConfig contains SMTP relay configuration.
type SMTPConfig struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
}

// Enabled reports whether the SMTP sender should be registered.
func (c SMTPConfig) Enabled() bool {
	return c.Host != ""
}
