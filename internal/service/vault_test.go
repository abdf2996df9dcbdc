package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/wisestep/emailing/internal/core"
	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
	"github.com/wisestep/emailing/internal/mocks"
	"github.com/wisestep/emailing/internal/testutil"
)

// fakeCipher is a reversible stand-in for the AES-GCM encryptor so tests
// can assert on what gets persisted.
type fakeCipher struct {
	encryptErr error
	decryptErr error
}

func (c *fakeCipher) Encrypt(plaintext []byte) (string, error) {
	if c.encryptErr != nil {
		return "", c.encryptErr
	}
	return "enc:" + string(plaintext), nil
}

func (c *fakeCipher) Decrypt(ciphertext string) ([]byte, error) {
	if c.decryptErr != nil {
		return nil, c.decryptErr
	}
	plain, ok := strings.CutPrefix(ciphertext, "enc:")
	if !ok {
		return nil, errors.New("cipher: message authentication failed")
	}
	return []byte(plain), nil
}

type fakeRefresher struct {
	grant     *model.TokenGrant
	err       error
	calls     int
	lastToken string
}

func (r *fakeRefresher) Refresh(_ context.Context, refreshToken string) (*model.TokenGrant, error) {
	r.calls++
	r.lastToken = refreshToken
	if r.err != nil {
		return nil, r.err
	}
	return r.grant, nil
}

func testAccountKey() core.AccountKey {
	return core.AccountKey{UserID: "user-1", Provider: "gmail", AccountEmail: "linked@example.com"}
}

func newTestVault(creds core.CredentialRepository, refresher core.TokenRefresher) *CredentialVault {
	refreshers := map[string]core.TokenRefresher{}
	if refresher != nil {
		refreshers["gmail"] = refresher
	}
	vault := NewCredentialVault(CredentialVaultOptions{
		Credentials: creds,
		Cipher:      &fakeCipher{},
		Refreshers:  refreshers,
	}, testutil.NewTestLogger())
	vault.now = testutil.TestTime
	return vault
}

func TestNewCredentialVault_Panics(t *testing.T) {
	assert.Panics(t, func() {
		NewCredentialVault(CredentialVaultOptions{Cipher: &fakeCipher{}}, nil)
	})
	assert.Panics(t, func() {
		ctrl := gomock.NewController(t)
		NewCredentialVault(CredentialVaultOptions{Credentials: mocks.NewMockCredentialRepository(ctrl)}, nil)
	})
}

func TestCredentialVault_GetValidAccessToken_Cached(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCreds := mocks.NewMockCredentialRepository(ctrl)
	refresher := &fakeRefresher{}
	vault := newTestVault(mockCreds, refresher)

	cred := testutil.NewCredential().
		WithAccessToken("enc:cached-token", testutil.TestTime().Add(time.Hour)).
		Build()
	mockCreds.EXPECT().GetByAccount(gomock.Any(), testAccountKey()).Return(cred, nil)

	token, err := vault.GetValidAccessToken(context.Background(), testAccountKey())

	require.NoError(t, err)
	assert.Equal(t, "cached-token", token)
	assert.Zero(t, refresher.calls)
}

func TestCredentialVault_GetValidAccessToken_SkewBoundary(t *testing.T) {
	// A token expiring inside the skew window counts as expired.
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCreds := mocks.NewMockCredentialRepository(ctrl)
	refresher := &fakeRefresher{grant: &model.TokenGrant{
		AccessToken: "fresh-token",
		ExpiresAt:   testutil.TestTime().Add(time.Hour),
	}}
	vault := newTestVault(mockCreds, refresher)

	cred := testutil.NewCredential().
		WithAccessToken("enc:stale-token", testutil.TestTime().Add(4*time.Minute)).
		WithRefreshToken("enc:refresh-1").
		Build()
	mockCreds.EXPECT().GetByAccount(gomock.Any(), testAccountKey()).Return(cred, nil)
	mockCreds.EXPECT().UpdateTokens(gomock.Any(), gomock.Any()).Return(nil)

	token, err := vault.GetValidAccessToken(context.Background(), testAccountKey())

	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
	assert.Equal(t, 1, refresher.calls)
	assert.Equal(t, "refresh-1", refresher.lastToken)
}

func TestCredentialVault_GetValidAccessToken_RefreshPersistsTokens(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	expiresAt := testutil.TestTime().Add(time.Hour)
	mockCreds := mocks.NewMockCredentialRepository(ctrl)
	refresher := &fakeRefresher{grant: &model.TokenGrant{
		AccessToken:  "fresh-token",
		RefreshToken: "rotated-refresh",
		ExpiresAt:    expiresAt,
	}}
	vault := newTestVault(mockCreds, refresher)

	cred := testutil.NewCredential().WithRefreshToken("enc:refresh-1").Build()
	mockCreds.EXPECT().GetByAccount(gomock.Any(), testAccountKey()).Return(cred, nil)
	mockCreds.EXPECT().
		UpdateTokens(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, p core.UpdateTokensParams) error {
			assert.Equal(t, cred.ID, p.ID)
			assert.Equal(t, "enc:fresh-token", p.EncryptedAccessToken)
			assert.Equal(t, "enc:rotated-refresh", p.EncryptedRefreshToken)
			assert.Equal(t, expiresAt, p.AccessTokenExpiresAt)
			return nil
		})

	token, err := vault.GetValidAccessToken(context.Background(), testAccountKey())

	require.NoError(t, err)
	assert.Equal(t, "fresh-token", token)
}

func TestCredentialVault_GetValidAccessToken_NotLinked(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCreds := mocks.NewMockCredentialRepository(ctrl)
	vault := newTestVault(mockCreds, &fakeRefresher{})

	mockCreds.EXPECT().
		GetByAccount(gomock.Any(), testAccountKey()).
		Return(nil, apperrors.NotFound("credential not found"))

	token, err := vault.GetValidAccessToken(context.Background(), testAccountKey())

	require.Error(t, err)
	assert.Empty(t, token)
	assert.True(t, apperrors.IsReauthRequired(err))
	assert.Contains(t, err.Error(), "not linked")
}

func TestCredentialVault_GetValidAccessToken_NoRefreshToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCreds := mocks.NewMockCredentialRepository(ctrl)
	vault := newTestVault(mockCreds, &fakeRefresher{})

	cred := testutil.NewCredential().WithRefreshToken("").Build()
	mockCreds.EXPECT().GetByAccount(gomock.Any(), testAccountKey()).Return(cred, nil)

	_, err := vault.GetValidAccessToken(context.Background(), testAccountKey())

	require.Error(t, err)
	assert.True(t, apperrors.IsReauthRequired(err))
}

func TestCredentialVault_GetValidAccessToken_NoRefresherConfigured(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCreds := mocks.NewMockCredentialRepository(ctrl)
	vault := newTestVault(mockCreds, nil)

	cred := testutil.NewCredential().WithRefreshToken("enc:refresh-1").Build()
	mockCreds.EXPECT().GetByAccount(gomock.Any(), testAccountKey()).Return(cred, nil)

	_, err := vault.GetValidAccessToken(context.Background(), testAccountKey())

	require.Error(t, err)
	assert.True(t, apperrors.IsConfig(err))
}

func TestCredentialVault_GetValidAccessToken_RefreshFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCreds := mocks.NewMockCredentialRepository(ctrl)
	refresher := &fakeRefresher{err: errors.New("oauth2: \"invalid_grant\"")}
	vault := newTestVault(mockCreds, refresher)

	cred := testutil.NewCredential().WithRefreshToken("enc:refresh-1").Build()
	mockCreds.EXPECT().GetByAccount(gomock.Any(), testAccountKey()).Return(cred, nil)

	_, err := vault.GetValidAccessToken(context.Background(), testAccountKey())

	require.Error(t, err)
	assert.True(t, apperrors.IsReauthRequired(err))
}

func TestCredentialVault_GetValidAccessToken_CorruptCachedToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCreds := mocks.NewMockCredentialRepository(ctrl)
	vault := newTestVault(mockCreds, &fakeRefresher{})

	cred := testutil.NewCredential().
		WithAccessToken("garbled", testutil.TestTime().Add(time.Hour)).
		Build()
	mockCreds.EXPECT().GetByAccount(gomock.Any(), testAccountKey()).Return(cred, nil)

	_, err := vault.GetValidAccessToken(context.Background(), testAccountKey())

	require.Error(t, err)
	assert.True(t, apperrors.IsReauthRequired(err))
}

func TestCredentialVault_GetValidAccessToken_InvalidKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vault := newTestVault(mocks.NewMockCredentialRepository(ctrl), nil)

	_, err := vault.GetValidAccessToken(context.Background(), core.AccountKey{Provider: "gmail"})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCredentialVault_Store(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCreds := mocks.NewMockCredentialRepository(ctrl)
	vault := newTestVault(mockCreds, nil)

	expiresAt := testutil.TestTime().Add(time.Hour)
	mockCreds.EXPECT().
		Upsert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cred *model.Credential) error {
			assert.Equal(t, "user-1", cred.UserID)
			assert.Equal(t, "gmail", cred.Provider)
			assert.Equal(t, "linked@example.com", cred.AccountEmail)
			assert.Equal(t, "enc:refresh-1", cred.EncryptedRefreshToken)
			require.NotNil(t, cred.EncryptedAccessToken)
			assert.Equal(t, "enc:access-1", *cred.EncryptedAccessToken)
			require.NotNil(t, cred.AccessTokenExpiresAt)
			assert.Equal(t, expiresAt, *cred.AccessTokenExpiresAt)
			assert.Equal(t, "mail.send", cred.Scopes)
			return nil
		})

	err := vault.Store(context.Background(), testAccountKey(), &model.TokenGrant{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    expiresAt,
		Scopes:       "mail.send",
	})

	require.NoError(t, err)
}

func TestCredentialVault_Store_RequiresRefreshToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	vault := newTestVault(mocks.NewMockCredentialRepository(ctrl), nil)

	err := vault.Store(context.Background(), testAccountKey(), &model.TokenGrant{AccessToken: "access-1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	err = vault.Store(context.Background(), testAccountKey(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCredentialVault_Unlink(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCreds := mocks.NewMockCredentialRepository(ctrl)
	vault := newTestVault(mockCreds, nil)

	mockCreds.EXPECT().Delete(gomock.Any(), testAccountKey()).Return(true, nil)

	removed, err := vault.Unlink(context.Background(), testAccountKey())
	require.NoError(t, err)
	assert.True(t, removed)
}
