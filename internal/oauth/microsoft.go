package oauth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"

	"github.com/wisestep/emailing/config"
	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
)

const microsoftDefaultGraphBaseURL = "https://graph.microsoft.com/v1.0"

// MicrosoftClient drives the Microsoft OAuth flow for Outlook account
// linking and refreshes access tokens for the credential vault.
type MicrosoftClient struct {
	config       *oauth2.Config
	graphBaseURL string
	httpClient   *http.Client
	logger       *slog.Logger
}

// MicrosoftClientOptions groups dependencies for MicrosoftClient.
// Endpoint and GraphBaseURL are overridable for tests.
type MicrosoftClientOptions struct {
	Config       config.MicrosoftOAuthConfig
	Endpoint     oauth2.Endpoint
	GraphBaseURL string
	HTTPClient   *http.Client
}

// NewMicrosoftClient creates the client against the common tenant.
func NewMicrosoftClient(opts MicrosoftClientOptions, logger *slog.Logger) (*MicrosoftClient, error) {
	if !opts.Config.Enabled() {
		return nil, apperrors.Config("microsoft oauth client id and secret are required")
	}
	if opts.Config.RedirectURL == "" {
		return nil, apperrors.Config("microsoft oauth redirect url is required")
	}

	endpoint := opts.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = microsoft.AzureADEndpoint("common")
	}
	graphBaseURL := opts.GraphBaseURL
	if graphBaseURL == "" {
		graphBaseURL = microsoftDefaultGraphBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &MicrosoftClient{
		config: &oauth2.Config{
			ClientID:     opts.Config.ClientID,
			ClientSecret: opts.Config.ClientSecret,
			RedirectURL:  opts.Config.RedirectURL,
			Scopes:       opts.Config.ScopeList(),
			Endpoint:     endpoint,
		},
		graphBaseURL: graphBaseURL,
		httpClient:   httpClient,
		logger:       logger.With("component", "microsoft_oauth"),
	}, nil
}

// AuthCodeURL builds the consent URL. The offline_access scope in the
// config makes Azure return a refresh token.
func (c *MicrosoftClient) AuthCodeURL(userID, csrfToken string) string {
	return c.config.AuthCodeURL(EncodeState(userID, csrfToken))
}

// Exchange swaps the authorization code for tokens and resolves the
// linked account email from the Graph profile.
func (c *MicrosoftClient) Exchange(ctx context.Context, code string) (*model.TokenGrant, string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "microsoft code exchange failed")
	}

	email, err := c.profileEmail(ctx, tok.AccessToken)
	if err != nil {
		return nil, "", err
	}

	c.logger.InfoContext(ctx, "microsoft account linked", "account", email)
	return grantFromToken(tok), email, nil
}

// Refresh exchanges a refresh token for a fresh access token. Azure
// rotates refresh tokens, so the grant usually carries a replacement.
func (c *MicrosoftClient) Refresh(ctx context.Context, refreshToken string) (*model.TokenGrant, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	src := c.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeReauthRequired, "microsoft token refresh failed")
	}
	grant := grantFromToken(tok)
	if grant.RefreshToken == refreshToken {
		grant.RefreshToken = ""
	}
	return grant, nil
}

// profileEmail reads the signed-in account's address from Graph /me,
// preferring the mailbox address over the UPN.
func (c *MicrosoftClient) profileEmail(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.graphBaseURL+"/me", nil)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "build graph profile request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "graph profile request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", apperrors.Unauthorized("graph profile lookup was rejected")
	}

	var profile struct {
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err = json.Unmarshal(body, &profile); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "decode graph profile")
	}

	email := profile.Mail
	if email == "" {
		email = profile.UserPrincipalName
	}
	if email == "" {
		return "", apperrors.Unauthorized("graph profile has no email address")
	}
	return email, nil
}
