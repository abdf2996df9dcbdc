package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	apperrors "github.com/wisestep/emailing/internal/errors"

	"github.com/wisestep/emailing/internal/core"
	"github.com/wisestep/emailing/internal/data/pgxutil"
	"github.com/wisestep/emailing/internal/domain/model"
)

const credentialColumns = `
  id,
  user_id,
  provider,
  account_email,
  encrypted_refresh_token,
  encrypted_access_token,
  access_token_expires_at,
  scopes,
  created_at,
  updated_at
`

// CredentialRepo provides database operations for linked mailbox accounts.
type CredentialRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
	logger       *slog.Logger
}

// CredentialRepoOptions groups optional dependencies for CredentialRepo.
type CredentialRepoOptions struct {
	TimeProvider TimeProvider
	Logger       *slog.Logger
}

// NewCredentialRepo creates a new CredentialRepo instance.
func NewCredentialRepo(db *sql.DB, opts CredentialRepoOptions) *CredentialRepo {
	tp := opts.TimeProvider
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &CredentialRepo{DB: db, timeProvider: tp, logger: opts.Logger}
}

// GetByAccount retrieves the credential for one linked account.
func (r *CredentialRepo) GetByAccount(ctx context.Context, key core.AccountKey) (*model.Credential, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	var cred *model.Credential
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, queryErr := conn.Query(ctx, `
			SELECT `+credentialColumns+`
			FROM user_email_accounts
			WHERE user_id = $1 AND provider = $2 AND account_email = $3`,
			key.UserID, key.Provider, key.AccountEmail)
		if queryErr != nil {
			return fmt.Errorf("query credential: %w", queryErr)
		}
		defer rows.Close()

		collected, collectErr := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Credential])
		if collectErr != nil {
			return collectErr
		}
		cred = collected
		return nil
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return cred, nil
}

// Upsert stores a credential, replacing token material and scopes when the
// account is already linked. Re-linking an account intentionally
// overwrites the previous refresh token.
func (r *CredentialRepo) Upsert(ctx context.Context, cred *model.Credential) error {
	if cred == nil {
		return errors.New("credential is required")
	}

	now := r.timeProvider.Now().UTC()
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO user_email_accounts (`+credentialColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, provider, account_email) DO UPDATE
		SET encrypted_refresh_token = EXCLUDED.encrypted_refresh_token,
		    encrypted_access_token = EXCLUDED.encrypted_access_token,
		    access_token_expires_at = EXCLUDED.access_token_expires_at,
		    scopes = EXCLUDED.scopes,
		    updated_at = EXCLUDED.updated_at`,
		cred.ID, cred.UserID, cred.Provider, cred.AccountEmail,
		cred.EncryptedRefreshToken, cred.EncryptedAccessToken,
		cred.AccessTokenExpiresAt, cred.Scopes, cred.CreatedAt, now,
	)
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("upsert credential: %w", err))
	}
	return nil
}

// UpdateTokens persists the result of a refresh: new access token and
// expiry, plus the rotated refresh token when the provider issued one.
func (r *CredentialRepo) UpdateTokens(ctx context.Context, p core.UpdateTokensParams) error {
	now := r.timeProvider.Now().UTC()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE user_email_accounts
		SET encrypted_access_token = $2,
		    access_token_expires_at = $3,
		    encrypted_refresh_token = CASE WHEN $4 = '' THEN encrypted_refresh_token ELSE $4 END,
		    updated_at = $5
		WHERE id = $1`,
		p.ID, p.EncryptedAccessToken, p.AccessTokenExpiresAt.UTC(), p.EncryptedRefreshToken, now,
	)
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("update credential tokens: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFoundf("credential %s not found", p.ID)
	}
	return nil
}

// Delete removes a linked account. Used when a user unlinks a mailbox.
func (r *CredentialRepo) Delete(ctx context.Context, key core.AccountKey) (bool, error) {
	if err := key.Validate(); err != nil {
		return false, err
	}
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM user_email_accounts
		WHERE user_id = $1 AND provider = $2 AND account_email = $3`,
		key.UserID, key.Provider, key.AccountEmail)
	if err != nil {
		return false, apperrors.MapDBError(fmt.Errorf("delete credential: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete credential rows affected: %w", err)
	}
	return affected > 0, nil
}
