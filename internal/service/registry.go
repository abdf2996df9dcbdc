// Package service implements the business logic for email scheduling,
// dispatch, credential management, and webhook ingestion.
package service

import (
	"sort"
	"strings"

	"github.com/wisestep/emailing/internal/core"
	apperrors "github.com/wisestep/emailing/internal/errors"
)

// ProviderRegistry maps provider keys to senders. The provider set is
// fixed at process start; there is no runtime registration.
type ProviderRegistry struct {
	senders         map[string]core.Sender
	defaultProvider string
}

// NewProviderRegistry builds the registry from the configured senders.
// defaultProvider backs requests that name no provider.
func NewProviderRegistry(defaultProvider string, senders ...core.Sender) *ProviderRegistry {
	byName := make(map[string]core.Sender, len(senders))
	for _, s := range senders {
		byName[strings.ToLower(s.Name())] = s
	}
	return &ProviderRegistry{
		senders:         byName,
		defaultProvider: strings.ToLower(strings.TrimSpace(defaultProvider)),
	}
}

// Resolve returns the sender for a provider key. Keys are matched
// case-insensitively; an empty key falls back to the default provider.
func (r *ProviderRegistry) Resolve(provider string) (core.Sender, error) {
	key := strings.ToLower(strings.TrimSpace(provider))
	if key == "" {
		key = r.defaultProvider
	}
	sender, ok := r.senders[key]
	if !ok {
		return nil, apperrors.NotFoundf("no sender for provider %q", key)
	}
	return sender, nil
}

// Known reports whether a provider key resolves to a registered sender.
func (r *ProviderRegistry) Known(provider string) bool {
	_, err := r.Resolve(provider)
	return err == nil
}

// Providers lists the registered provider keys, sorted.
func (r *ProviderRegistry) Providers() []string {
	keys := make([]string, 0, len(r.senders))
	for key := range r.senders {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
