package cryptoutil

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"
)

// WebhookVerifier verifies a provider's signature over a raw webhook
// payload and its timestamp header.
type WebhookVerifier interface {
	Verify(payload []byte, signature, timestamp string) error
}

// ECDSAVerifier implements the SendGrid event-webhook signature scheme:
// an ECDSA P-256 signature (ASN.1 DER, base64) over SHA-256 of
// timestamp||payload, against the base64 PKIX public key shown in the
// provider dashboard.
type ECDSAVerifier struct {
	key *ecdsa.PublicKey
}

// NewECDSAVerifier parses a base64-encoded PKIX EC public key.
func NewECDSAVerifier(publicKeyB64 string) (*ECDSAVerifier, error) {
	der, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	ecKey, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is %T, want *ecdsa.PublicKey", parsed)
	}
	return &ECDSAVerifier{key: ecKey}, nil
}

// Verify checks the signature over timestamp||payload. A nil return means
// the payload is authentic.
func (v *ECDSAVerifier) Verify(payload []byte, signature, timestamp string) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(timestamp))
	h.Write(payload)
	digest := h.Sum(nil)

	if !ecdsa.VerifyASN1(v.key, digest, sig) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
