package security

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
)

// AssertionChallenge is the fixed payload a device must sign to prove
// possession of the enrolled biometric private key. It is deliberately a
// stable, well-known string rather than user-supplied text so a stolen
// signature over arbitrary data cannot be replayed as an assertion.
const AssertionChallenge = "authcore-device-assertion-v1"

// VerifyAssertion verifies signature over AssertionChallenge using the
// PEM-encoded public key stored on the device record. RSA keys are accepted
// with either PKCS#1 v1.5 or PSS padding (SHA-256); Ed25519 keys are verified
// directly. Returns false for unparseable keys or any verification failure.
func VerifyAssertion(publicKeyPEM string, signature []byte) bool {
	if publicKeyPEM == "" || len(signature) == 0 {
		return false
	}
	pub, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return false
	}
	digest := sha256.Sum256([]byte(AssertionChallenge))
	switch key := pub.(type) {
	case *rsa.PublicKey:
		if rsa.VerifyPKCS1v15(key, crypto.SHA256, digest[:], signature) == nil {
			return true
		}
		return rsa.VerifyPSS(key, crypto.SHA256, digest[:], signature, nil) == nil
	case ed25519.PublicKey:
		return ed25519.Verify(key, []byte(AssertionChallenge), signature)
	default:
		return false
	}
}
