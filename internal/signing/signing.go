package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the lowercase hex HMAC-SHA256 of the canonical form of payload
func Sign(payload any, secret []byte) (string, error) {
	data, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify reports whether signature is the HMAC of payload under secret.
// Malformed hex, a length mismatch or an unencodable payload all yield false.
func Verify(payload any, secret []byte, signature string) bool {
	got, err := hex.DecodeString(signature)
	if err != nil || len(got) != sha256.Size {
		return false
	}

	data, err := Canonicalize(payload)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	return hmac.Equal(mac.Sum(nil), got)
}

// Signer binds a shared job-signing secret
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer for the given secret
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign signs payload with the bound secret
func (s *Signer) Sign(payload any) (string, error) {
	return Sign(payload, s.secret)
}

// Verify checks signature against payload with the bound secret
func (s *Signer) Verify(payload any, signature string) bool {
	return Verify(payload, s.secret, signature)
}
