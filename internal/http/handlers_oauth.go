package httpx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/wisestep/emailing/internal/core"
	"github.com/wisestep/emailing/internal/domain/model"
	"github.com/wisestep/emailing/internal/oauth"
	"github.com/wisestep/emailing/internal/service"
)

// OAuthClient is the provider-side behavior the linking flow needs.
// Implemented by oauth.GoogleClient and oauth.MicrosoftClient.
type OAuthClient interface {
	AuthCodeURL(userID, csrfToken string) string
	Exchange(ctx context.Context, code string) (*model.TokenGrant, string, error)
}

// OAuthHandlers provides HTTP handlers for the mailbox account-linking flow.
type OAuthHandlers struct {
	// Clients maps provider keys (gmail, outlook) to their OAuth clients.
	Clients map[string]OAuthClient
	States  core.StateStore
	Vault   *service.CredentialVault
	Logger  *slog.Logger
}

func (h *OAuthHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *OAuthHandlers) client(w http.ResponseWriter, r *http.Request) (string, OAuthClient, bool) {
	provider := r.PathValue("provider")
	client, ok := h.Clients[provider]
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "unknown_provider",
			Err:     fmt.Errorf("no oauth client for provider %q", provider),
		})
		return "", nil, false
	}
	return provider, client, true
}

// Authorize handles GET /oauth/{provider}/authorize. It stores a one-shot
// CSRF token and redirects the browser to the provider's consent page.
func (h *OAuthHandlers) Authorize(w http.ResponseWriter, r *http.Request) {
	_, client, ok := h.client(w, r)
	if !ok {
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_request", Err: errors.New("user_id is required")})
		return
	}

	csrfToken, err := newCSRFToken()
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal", Err: err})
		return
	}
	if err = h.States.Put(r.Context(), csrfToken, userID); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "internal", Err: err})
		return
	}

	http.Redirect(w, r, client.AuthCodeURL(userID, csrfToken), http.StatusFound)
}

// Callback handles GET /oauth/{provider}/callback. It validates the CSRF
// state against the store, exchanges the code, and persists the encrypted
// credential keyed by the account email the provider reports.
func (h *OAuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	provider, client, ok := h.client(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	if errCode := query.Get("error"); errCode != "" {
		// User denied consent or the provider rejected the request.
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "consent_denied",
			Err:     fmt.Errorf("provider returned %q", errCode),
		})
		return
	}

	code := query.Get("code")
	if code == "" {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_request", Err: errors.New("code is required")})
		return
	}

	userID, csrfToken, err := oauth.ParseState(query.Get("state"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	storedUserID, err := h.States.Consume(r.Context(), csrfToken)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if storedUserID != userID {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "unauthorized",
			Err:     errors.New("oauth state does not match the initiating user"),
		})
		return
	}

	grant, accountEmail, err := client.Exchange(r.Context(), code)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "oauth code exchange failed", "provider", provider, "err", err)
		WriteAppError(w, err)
		return
	}

	key := core.AccountKey{UserID: userID, Provider: provider, AccountEmail: accountEmail}
	if err = h.Vault.Store(r.Context(), key, grant); err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"provider":      provider,
		"account_email": accountEmail,
		"status":        "linked",
	})
}

// Unlink handles DELETE /oauth/{provider}/accounts. It removes the stored
// credential for the given user and account email.
func (h *OAuthHandlers) Unlink(w http.ResponseWriter, r *http.Request) {
	provider, _, ok := h.client(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	key := core.AccountKey{
		UserID:       query.Get("user_id"),
		Provider:     provider,
		AccountEmail: query.Get("account_email"),
	}

	removed, err := h.Vault.Unlink(r.Context(), key)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	if !removed {
		WriteError(w, ErrorParams{Code: http.StatusNotFound, ErrCode: "not_found", Err: errors.New("account is not linked")})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "unlinked"})
}

func newCSRFToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate csrf token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
