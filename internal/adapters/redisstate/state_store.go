// Package redisstate provides the Redis-backed CSRF state store for the
// OAuth account-linking flow.
package redisstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/wisestep/emailing/internal/errors"
)

// DefaultTTL bounds how long an authorization redirect may stay pending.
const DefaultTTL = 10 * time.Minute

// StateStore holds one-shot OAuth state tokens keyed by CSRF value, with
// the initiating user id as payload. Consume is destructive so a state
// can never be replayed.
type StateStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStateStore creates a Redis-backed state store with the default TTL.
func NewStateStore(client redis.UniversalClient) *StateStore {
	return &StateStore{client: client, prefix: "oauth_state:", ttl: DefaultTTL}
}

// NewStateStoreWithTTL creates a state store with a custom TTL.
func NewStateStoreWithTTL(client redis.UniversalClient, ttl time.Duration) *StateStore {
	s := NewStateStore(client)
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// Put records a pending state token for the given user.
func (s *StateStore) Put(ctx context.Context, state, userID string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if userID == "" {
		return errors.New("user id cannot be empty")
	}
	if err := s.client.Set(ctx, s.prefix+state, userID, s.ttl).Err(); err != nil {
		return fmt.Errorf("store oauth state: %w", err)
	}
	return nil
}

// Consume atomically fetches and deletes a state token, returning the
// user id that initiated the flow. Unknown or expired states are an
// unauthorized outcome, not an internal error.
func (s *StateStore) Consume(ctx context.Context, state string) (string, error) {
	if state == "" {
		return "", apperrors.Unauthorized("oauth state is missing")
	}
	userID, err := s.client.GetDel(ctx, s.prefix+state).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperrors.Unauthorized("oauth state is unknown or expired")
		}
		return "", fmt.Errorf("consume oauth state: %w", err)
	}
	return userID, nil
}
