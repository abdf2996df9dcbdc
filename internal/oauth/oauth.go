// Package oauth implements the Google and Microsoft OAuth clients behind
// account linking and token refresh. Both clients satisfy
// core.TokenRefresher; the HTTP layer drives the authorize/callback legs.
package oauth

import (
	"fmt"
	"strings"

	"golang.org/x/oauth2"

	"github.com/wisestep/emailing/internal/domain/model"
	apperrors "github.com/wisestep/emailing/internal/errors"
)

// EncodeState packs the user id and CSRF token into the OAuth state
// parameter as "userID:csrfToken".
func EncodeState(userID, csrfToken string) string {
	return fmt.Sprintf("%s:%s", userID, csrfToken)
}

// ParseState splits a state parameter back into user id and CSRF token.
func ParseState(state string) (userID, csrfToken string, err error) {
	parts := strings.SplitN(state, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", apperrors.Unauthorized("malformed oauth state parameter")
	}
	return parts[0], parts[1], nil
}

// grantFromToken converts an oauth2 token into a TokenGrant. The refresh
// token is empty when the provider did not rotate it.
func grantFromToken(tok *oauth2.Token) *model.TokenGrant {
	grant := &model.TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		grant.Scopes = scope
	}
	return grant
}
