package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/wisestep/emailing/internal/data/cryptoutil"
	apperrors "github.com/wisestep/emailing/internal/errors"
	"github.com/wisestep/emailing/internal/domain/model"
	"github.com/wisestep/emailing/internal/mocks"
	"github.com/wisestep/emailing/internal/oauth"
	"github.com/wisestep/emailing/internal/service"
	"github.com/wisestep/emailing/internal/testutil"
)

type stubOAuthClient struct {
	grant        *model.TokenGrant
	accountEmail string
	exchangeErr  error
	lastCode     string
}

func (c *stubOAuthClient) AuthCodeURL(userID, csrfToken string) string {
	return "https://idp.example.com/auth?state=" + url.QueryEscape(oauth.EncodeState(userID, csrfToken))
}

func (c *stubOAuthClient) Exchange(_ context.Context, code string) (*model.TokenGrant, string, error) {
	c.lastCode = code
	if c.exchangeErr != nil {
		return nil, "", c.exchangeErr
	}
	return c.grant, c.accountEmail, nil
}

type memoryStateStore struct {
	mu     sync.Mutex
	states map[string]string
}

func newMemoryStateStore() *memoryStateStore {
	return &memoryStateStore{states: make(map[string]string)}
}

func (s *memoryStateStore) Put(_ context.Context, state, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = userID
	return nil
}

func (s *memoryStateStore) Consume(_ context.Context, state string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	userID, ok := s.states[state]
	if !ok {
		return "", apperrors.Unauthorized("oauth state is unknown or expired")
	}
	delete(s.states, state)
	return userID, nil
}

func newOAuthTestRouter(t *testing.T, creds *mocks.MockCredentialRepository,
	client *stubOAuthClient, states *memoryStateStore,
) http.Handler {
	t.Helper()
	ctrl := gomock.NewController(t)
	vault := service.NewCredentialVault(service.CredentialVaultOptions{
		Credentials: creds,
		Cipher:      cryptoutil.NoopEncryptor{},
	}, testutil.NewTestLogger())
	scheduling := service.NewSchedulingService(service.SchedulingServiceOptions{
		Jobs:            mocks.NewMockJobRepository(ctrl),
		Registry:        service.NewProviderRegistry("sendgrid", &stubSender{name: "sendgrid"}),
		DefaultProvider: "sendgrid",
	}, testutil.NewTestLogger())
	return NewRouter(RouterServices{
		Scheduling:   scheduling,
		Events:       mocks.NewMockDeliveryEventRepository(ctrl),
		OAuthClients: map[string]OAuthClient{"gmail": client},
		States:       states,
		Vault:        vault,
		Logger:       testutil.NewTestLogger(),
	})
}

func TestOAuthAuthorize_RedirectsWithStoredState(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	states := newMemoryStateStore()
	client := &stubOAuthClient{}
	router := newOAuthTestRouter(t, mocks.NewMockCredentialRepository(ctrl), client, states)

	req := httptest.NewRequest(http.MethodGet, "/oauth/gmail/authorize?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.Contains(t, location, "https://idp.example.com/auth")
	assert.Contains(t, location, "user-1%3A") // url-encoded "user-1:<csrf>"

	states.mu.Lock()
	assert.Len(t, states.states, 1)
	states.mu.Unlock()
}

func TestOAuthAuthorize_RequiresUserID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := newOAuthTestRouter(t, mocks.NewMockCredentialRepository(ctrl), &stubOAuthClient{}, newMemoryStateStore())

	req := httptest.NewRequest(http.MethodGet, "/oauth/gmail/authorize", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuthAuthorize_UnknownProvider(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := newOAuthTestRouter(t, mocks.NewMockCredentialRepository(ctrl), &stubOAuthClient{}, newMemoryStateStore())

	req := httptest.NewRequest(http.MethodGet, "/oauth/yahoo/authorize?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOAuthCallback_LinksAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCreds := mocks.NewMockCredentialRepository(ctrl)
	states := newMemoryStateStore()
	require.NoError(t, states.Put(nil, "csrf-1", "user-1"))

	client := &stubOAuthClient{
		grant: &model.TokenGrant{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresAt:    time.Now().Add(time.Hour),
		},
		accountEmail: "linked@example.com",
	}
	router := newOAuthTestRouter(t, mockCreds, client, states)

	var stored *model.Credential
	mockCreds.EXPECT().
		Upsert(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, cred *model.Credential) error {
			stored = cred
			return nil
		})

	req := httptest.NewRequest(http.MethodGet,
		"/oauth/gmail/callback?code=auth-code-1&state=user-1%3Acsrf-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "linked@example.com")
	assert.Equal(t, "auth-code-1", client.lastCode)
	require.NotNil(t, stored)
	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, "gmail", stored.Provider)
	assert.NotEqual(t, "refresh-1", stored.EncryptedRefreshToken)
}

func TestOAuthCallback_UnknownState(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := newOAuthTestRouter(t, mocks.NewMockCredentialRepository(ctrl), &stubOAuthClient{}, newMemoryStateStore())

	req := httptest.NewRequest(http.MethodGet,
		"/oauth/gmail/callback?code=auth-code-1&state=user-1%3Anever-issued", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOAuthCallback_StateUserMismatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	states := newMemoryStateStore()
	require.NoError(t, states.Put(nil, "csrf-1", "someone-else"))
	router := newOAuthTestRouter(t, mocks.NewMockCredentialRepository(ctrl), &stubOAuthClient{}, states)

	req := httptest.NewRequest(http.MethodGet,
		"/oauth/gmail/callback?code=auth-code-1&state=user-1%3Acsrf-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOAuthCallback_ConsentDenied(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	router := newOAuthTestRouter(t, mocks.NewMockCredentialRepository(ctrl), &stubOAuthClient{}, newMemoryStateStore())

	req := httptest.NewRequest(http.MethodGet, "/oauth/gmail/callback?error=access_denied", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "consent_denied")
}

func TestOAuthUnlink(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockCreds := mocks.NewMockCredentialRepository(ctrl)
	router := newOAuthTestRouter(t, mockCreds, &stubOAuthClient{}, newMemoryStateStore())

	mockCreds.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(true, nil)

	req := httptest.NewRequest(http.MethodDelete,
		"/oauth/gmail/accounts?user_id=user-1&account_email=linked%40example.com", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "unlinked")
}
