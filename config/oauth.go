package config

import "strings"

// OAuthConfig groups OAuth client configuration for the mailbox providers.
type OAuthConfig struct {
	Google    GoogleOAuthConfig    `envPrefix:"GOOGLE_OAUTH_"`
	Microsoft MicrosoftOAuthConfig `envPrefix:"MICROSOFT_OAUTH_"`
}

// GoogleOAuthConfig contains the Google OAuth client used by the Gmail sender.
type GoogleOAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
	Scopes       string `env:"SCOPES" envDefault:"https://www.googleapis.com/auth/gmail.send,openid,email"`
}

// ScopeList returns Scopes split on commas with surrounding whitespace removed.
func (c GoogleOAuthConfig) ScopeList() []string {
	return splitScopes(c.Scopes)
}

// Enabled reports whether the Gmail sender should be registered.
func (c GoogleOAuthConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// MicrosoftOAuthConfig contains the Microsoft OAuth client used by the Outlook sender.
type MicrosoftOAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"`
	Scopes       string `env:"SCOPES" envDefault:"https://graph.microsoft.com/Mail.Send,offline_access"`
}

// ScopeList returns Scopes split on commas with surrounding whitespace removed.
func (c MicrosoftOAuthConfig) ScopeList() []string {
	return splitScopes(c.Scopes)
}

// Enabled reports whether the Outlook sender should be registered.
func (c MicrosoftOAuthConfig) Enabled() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

func splitScopes(s string) []string {
	parts := strings.Split(s, ",")
	scopes := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			scopes = append(scopes, trimmed)
		}
	}
	return scopes
}
