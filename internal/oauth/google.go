package oauth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/wisestep/emailing/config"
	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
)

const googleDefaultIssuer = "https://accounts.google.com"

// GoogleClient drives the Google OAuth flow for Gmail account linking and
// refreshes access tokens for the credential vault.
type GoogleClient struct {
	config     *oauth2.Config
	verifier   *gooidc.IDTokenVerifier
	httpClient *http.Client
	logger     *slog.Logger
}

// GoogleClientOptions groups dependencies for GoogleClient. Issuer is
// overridable for tests and defaults to the public Google issuer.
type GoogleClientOptions struct {
	Config     config.GoogleOAuthConfig
	Issuer     string
	HTTPClient *http.Client
}

// NewGoogleClient creates the client and performs OIDC discovery once.
func NewGoogleClient(ctx context.Context, opts GoogleClientOptions, logger *slog.Logger) (*GoogleClient, error) {
	if !opts.Config.Enabled() {
		return nil, apperrors.Config("google oauth client id and secret are required")
	}
	if opts.Config.RedirectURL == "" {
		return nil, apperrors.Config("google oauth redirect url is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	issuer := opts.Issuer
	if issuer == "" {
		issuer = googleDefaultIssuer
	}
	if logger == nil {
		logger = slog.Default()
	}

	discoveryCtx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	provider, err := gooidc.NewProvider(discoveryCtx, issuer)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfig, "google oidc discovery")
	}

	return &GoogleClient{
		config: &oauth2.Config{
			ClientID:     opts.Config.ClientID,
			ClientSecret: opts.Config.ClientSecret,
			RedirectURL:  opts.Config.RedirectURL,
			Scopes:       opts.Config.ScopeList(),
			Endpoint:     provider.Endpoint(),
		},
		verifier:   provider.Verifier(&gooidc.Config{ClientID: opts.Config.ClientID}),
		httpClient: httpClient,
		logger:     logger.With("component", "google_oauth"),
	}, nil
}

// AuthCodeURL builds the consent URL. Offline access and forced consent
// make Google return a refresh token on every link.
func (c *GoogleClient) AuthCodeURL(userID, csrfToken string) string {
	return c.config.AuthCodeURL(
		EncodeState(userID, csrfToken),
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange swaps the authorization code for tokens and resolves the
// linked account email from the verified id_token.
func (c *GoogleClient) Exchange(ctx context.Context, code string) (*model.TokenGrant, string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.config.Exchange(ctx, code)
	if err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "google code exchange failed")
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, "", apperrors.Unauthorized("google token response is missing id_token")
	}
	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "google id_token verification failed")
	}

	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err = idToken.Claims(&claims); err != nil {
		return nil, "", apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "decode google id_token claims")
	}
	if claims.Email == "" {
		return nil, "", apperrors.Unauthorized("google id_token has no email claim")
	}

	c.logger.InfoContext(ctx, "google account linked", "account", claims.Email)
	return grantFromToken(tok), claims.Email, nil
}

// Refresh exchanges a refresh token for a fresh access token. Google does
// not rotate refresh tokens here, so the grant's refresh token stays empty
// unless a new one arrives.
func (c *GoogleClient) Refresh(ctx context.Context, refreshToken string) (*model.TokenGrant, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	src := c.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeReauthRequired, "google token refresh failed")
	}
	grant := grantFromToken(tok)
	if grant.RefreshToken == refreshToken {
		grant.RefreshToken = ""
	}
	return grant, nil
}
