package bootstrap

import (
	"encoding/hex"
	"log/slog"
	"strings"

	apperrors "github.com/wisestep/emailing/internal/errors"

	"github.com/wisestep/emailing/internal/data/cryptoutil"
)

// Secrets that obviously came from an example env file rather than a real
// deployment. Accepting one of these would store reversible tokens behind
// a key every reader of the repo knows.
var placeholderKeys = map[string]struct{}{
	"changeme":             {},
	"change-me":            {},
	"placeholder":          {},
	"secret":               {},
	"token-encryption-key": {},
}

// NewTokenEncryptor creates the AES-GCM encryptor protecting OAuth token
// material at rest. A 64-char hex key is decoded directly; any other value
// is hashed to a 32-byte key.
//
// An empty or placeholder key is a configuration error. In dev mode it
// degrades to a noop encryptor with a warning instead, so local setups
// work without provisioning a secret.
//
//nolint:ireturn // Returning Encryptor interface is intentional for encryptor abstraction.
func NewTokenEncryptor(key string, isDev bool, logger *slog.Logger) (cryptoutil.Encryptor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	trimmed := strings.TrimSpace(key)
	if _, placeholder := placeholderKeys[strings.ToLower(trimmed)]; trimmed == "" || placeholder {
		if isDev {
			logger.Warn("token encryption key is empty or a placeholder; using noop encryptor (dev mode)")
			return &cryptoutil.NoopEncryptor{}, nil
		}
		return nil, apperrors.Config("token encryption key is empty or a placeholder")
	}

	var keyBytes []byte
	if decoded, err := hex.DecodeString(trimmed); err == nil && len(decoded) == 32 {
		keyBytes = decoded
	} else {
		keyBytes = cryptoutil.DeriveKey(trimmed)
	}

	enc, err := cryptoutil.NewAESGCMEncryptor(keyBytes)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfig, "create token encryptor")
	}
	return enc, nil
}
