package security

import (
	"crypto/rand"
	"crypto/rsa"
	"time"
)

// NewTestTokenProvider returns a TokenProvider backed by a freshly generated
// RSA key pair. For unit tests only.
func NewTestTokenProvider(accessTTL, refreshTTL time.Duration) (*TokenProvider, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(key, &key.PublicKey, "test-issuer", "test-audience", accessTTL, refreshTTL), nil
}
