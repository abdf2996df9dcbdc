package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, ErrCodeProvider, "send failed")

	assert.Equal(t, "send failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestAppError_CodePredicates(t *testing.T) {
	tests := []struct {
		err       error
		predicate func(error) bool
	}{
		{NotFound("missing"), IsNotFound},
		{Conflict("dup"), IsConflict},
		{Validation("bad"), IsValidation},
		{Unauthorized("sig"), IsUnauthorized},
		{ReauthRequired("relink"), IsReauthRequired},
		{Provider("5xx"), IsProvider},
		{Config("placeholder"), IsConfig},
		{Internal("boom"), IsInternal},
	}

	for _, tt := range tests {
		assert.True(t, tt.predicate(tt.err), "predicate failed for %v", tt.err)
		assert.False(t, tt.predicate(errors.New("plain")), "predicate matched plain error")
	}
}

func TestAppError_WrappedPredicates(t *testing.T) {
	// Predicates must see through fmt.Errorf wrapping.
	inner := ReauthRequired("refresh token revoked")
	outer := fmt.Errorf("vault: %w", inner)

	assert.True(t, IsReauthRequired(outer))
	assert.Equal(t, ErrCodeReauthRequired, GetCode(outer))
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "ignored"))
	assert.Nil(t, Wrapf(nil, ErrCodeInternal, "ignored %d", 1))
}

func TestMapDBError(t *testing.T) {
	assert.NoError(t, MapDBError(nil))

	notFound := MapDBError(pgx.ErrNoRows)
	assert.True(t, IsNotFound(notFound))

	timeout := MapDBError(fmt.Errorf("query: %w", context.DeadlineExceeded))
	assert.Equal(t, ErrCodeTimeout, GetCode(timeout))

	canceled := MapDBError(context.Canceled)
	assert.Equal(t, ErrCodeCanceled, GetCode(canceled))

	plain := errors.New("not a db error")
	assert.Equal(t, plain, MapDBError(plain))
}

func TestMapDBError_UniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:   pgerrcode.UniqueViolation,
		Detail: "Key (account_email)=(user@example.com) already exists.",
	}

	err := MapDBError(pgErr)
	require.True(t, IsConflict(err))
	assert.Equal(t, "account_email", GetField(err))
}

func TestMapDBError_ForeignKeyViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}
	assert.True(t, IsForeignKey(MapDBError(pgErr)))
}

func TestMapDBError_UnknownPgError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: pgerrcode.SerializationFailure}
	assert.True(t, IsInternal(MapDBError(pgErr)))
}
