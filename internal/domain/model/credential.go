package model

import (
	"time"

	"github.com/google/uuid"
)

// Credential holds the OAuth token material for one linked mailbox
// account, keyed by (user id, provider, account email). Token fields are
// encrypted at rest; the cached access token is advisory and considered
// stale within AccessTokenSkew of its expiry.
type Credential struct {
	ID           string `json:"id"            db:"id"`
	UserID       string `json:"user_id"       db:"user_id"`
	Provider     string `json:"provider"      db:"provider"`
	AccountEmail string `json:"account_email" db:"account_email"`
	// EncryptedRefreshToken persists until the user explicitly re-links
	// the account.
	EncryptedRefreshToken string     `json:"-"                          db:"encrypted_refresh_token"`
	EncryptedAccessToken  *string    `json:"-"                          db:"encrypted_access_token"`
	AccessTokenExpiresAt  *time.Time `json:"access_token_expires_at,omitempty" db:"access_token_expires_at"`
	Scopes                string     `json:"scopes"                     db:"scopes"`
	CreatedAt             time.Time  `json:"created_at"                 db:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"                 db:"updated_at"`
}

// AccessTokenSkew is the window before expiry in which a cached access
// token is treated as already expired.
const AccessTokenSkew = 5 * time.Minute

// AccessTokenValidAt reports whether the cached access token can be used
// at the given instant.
func (c *Credential) AccessTokenValidAt(now time.Time) bool {
	if c.EncryptedAccessToken == nil || *c.EncryptedAccessToken == "" || c.AccessTokenExpiresAt == nil {
		return false
	}
	return now.Before(c.AccessTokenExpiresAt.Add(-AccessTokenSkew))
}

// NewCredential builds a Credential for a freshly linked account,
// stamping creation time explicitly. Token fields are filled in by the
// vault after encryption.
func NewCredential(userID, provider, accountEmail string, now time.Time) *Credential {
	return &Credential{
		ID:           uuid.NewString(),
		UserID:       userID,
		Provider:     provider,
		AccountEmail: accountEmail,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
}

// TokenGrant is the result of an OAuth code exchange or refresh-token
// grant, in plaintext. It never touches storage directly; the vault
// encrypts it first.
type TokenGrant struct {
	AccessToken string
	// RefreshToken is set when the provider rotated it; empty means keep
	// the stored one.
	RefreshToken string
	ExpiresAt    time.Time
	Scopes       string
}
