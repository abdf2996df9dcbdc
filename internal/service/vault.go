package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wisestep/emailing/internal/core"
	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
)

// TokenCipher is the minimal encryption behavior the vault needs for
// token material at rest.
type TokenCipher interface {
	Encrypt(plaintext []byte) (string, error)
	Decrypt(ciphertext string) ([]byte, error)
}

// CredentialVaultOptions groups dependencies for CredentialVault.
type CredentialVaultOptions struct {
	Credentials core.CredentialRepository
	Cipher      TokenCipher
	// Refreshers maps provider keys to their token refresh clients.
	Refreshers map[string]core.TokenRefresher
}

// CredentialVault stores OAuth credential material encrypted and hands
// out valid access tokens, refreshing stale ones on demand. It satisfies
// core.AccessTokenSource.
type CredentialVault struct {
	credentials core.CredentialRepository
	cipher      TokenCipher
	refreshers  map[string]core.TokenRefresher
	logger      *slog.Logger
	now         func() time.Time
}

// NewCredentialVault constructs the vault.
func NewCredentialVault(opts CredentialVaultOptions, logger *slog.Logger) *CredentialVault {
	if opts.Credentials == nil {
		panic("CredentialRepository is required")
	}
	if opts.Cipher == nil {
		panic("TokenCipher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialVault{
		credentials: opts.Credentials,
		cipher:      opts.Cipher,
		refreshers:  opts.Refreshers,
		logger:      logger.With("component", "credential_vault"),
		now:         time.Now,
	}
}

// GetValidAccessToken returns a usable access token for the linked
// account. A cached token is reused while it is comfortably inside its
// expiry window; otherwise the refresh token buys a new one, which is
// re-encrypted and persisted before being returned. Every failure mode
// that needs the user to re-link the account surfaces as reauth_required.
func (v *CredentialVault) GetValidAccessToken(ctx context.Context, key core.AccountKey) (string, error) {
	if err := key.Validate(); err != nil {
		return "", err
	}

	cred, err := v.credentials.GetByAccount(ctx, key)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return "", apperrors.ReauthRequiredf("%s account %s is not linked for user %s",
				key.Provider, key.AccountEmail, key.UserID)
		}
		return "", fmt.Errorf("load credential: %w", err)
	}

	if cred.AccessTokenValidAt(v.now()) {
		plaintext, decErr := v.cipher.Decrypt(*cred.EncryptedAccessToken)
		if decErr != nil {
			return "", apperrors.Wrap(decErr, apperrors.ErrCodeReauthRequired, "decrypt cached access token")
		}
		return string(plaintext), nil
	}

	return v.refresh(ctx, key, cred)
}

func (v *CredentialVault) refresh(ctx context.Context, key core.AccountKey, cred *model.Credential) (string, error) {
	if cred.EncryptedRefreshToken == "" {
		return "", apperrors.ReauthRequiredf("no refresh token stored for %s account %s",
			key.Provider, key.AccountEmail)
	}

	refresher, ok := v.refreshers[key.Provider]
	if !ok {
		return "", apperrors.Config(fmt.Sprintf("no token refresher configured for provider %q", key.Provider))
	}

	refreshToken, err := v.cipher.Decrypt(cred.EncryptedRefreshToken)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeReauthRequired, "decrypt refresh token")
	}

	grant, err := refresher.Refresh(ctx, string(refreshToken))
	if err != nil {
		v.logger.WarnContext(ctx, "token refresh failed",
			"provider", key.Provider, "account", key.AccountEmail, "err", err)
		if apperrors.IsReauthRequired(err) {
			return "", err
		}
		return "", apperrors.Wrap(err, apperrors.ErrCodeReauthRequired, "token refresh failed")
	}

	params := core.UpdateTokensParams{ID: cred.ID, AccessTokenExpiresAt: grant.ExpiresAt}
	if params.EncryptedAccessToken, err = v.cipher.Encrypt([]byte(grant.AccessToken)); err != nil {
		return "", fmt.Errorf("encrypt access token: %w", err)
	}
	if grant.RefreshToken != "" {
		if params.EncryptedRefreshToken, err = v.cipher.Encrypt([]byte(grant.RefreshToken)); err != nil {
			return "", fmt.Errorf("encrypt rotated refresh token: %w", err)
		}
	}
	if err = v.credentials.UpdateTokens(ctx, params); err != nil {
		return "", fmt.Errorf("persist refreshed tokens: %w", err)
	}

	v.logger.InfoContext(ctx, "access token refreshed",
		"provider", key.Provider, "account", key.AccountEmail, "rotated_refresh", grant.RefreshToken != "")
	return grant.AccessToken, nil
}

// Store upserts the credential for a freshly linked account with both
// tokens encrypted. The OAuth callback is the only caller.
func (v *CredentialVault) Store(ctx context.Context, key core.AccountKey, grant *model.TokenGrant) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if grant == nil || grant.RefreshToken == "" {
		return apperrors.Validation("a refresh token is required to link an account")
	}

	cred := model.NewCredential(key.UserID, key.Provider, key.AccountEmail, v.now())
	cred.Scopes = grant.Scopes

	encRefresh, err := v.cipher.Encrypt([]byte(grant.RefreshToken))
	if err != nil {
		return fmt.Errorf("encrypt refresh token: %w", err)
	}
	cred.EncryptedRefreshToken = encRefresh

	if grant.AccessToken != "" {
		encAccess, encErr := v.cipher.Encrypt([]byte(grant.AccessToken))
		if encErr != nil {
			return fmt.Errorf("encrypt access token: %w", encErr)
		}
		cred.EncryptedAccessToken = &encAccess
		if !grant.ExpiresAt.IsZero() {
			expiresAt := grant.ExpiresAt.UTC()
			cred.AccessTokenExpiresAt = &expiresAt
		}
	}

	if err = v.credentials.Upsert(ctx, cred); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}

	v.logger.InfoContext(ctx, "account linked",
		"provider", key.Provider, "account", key.AccountEmail, "user_id", key.UserID)
	return nil
}

// Unlink removes a linked account and its stored tokens.
func (v *CredentialVault) Unlink(ctx context.Context, key core.AccountKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	removed, err := v.credentials.Delete(ctx, key)
	if err != nil {
		return false, fmt.Errorf("unlink account: %w", err)
	}
	if removed {
		v.logger.InfoContext(ctx, "account unlinked",
			"provider", key.Provider, "account", key.AccountEmail, "user_id", key.UserID)
	}
	return removed, nil
}
