// Package signing builds the canonical message for private API calls and
// signs it with the account's API secret.
//
// The scheme matches the production backend:
//
//	key       = ASCII bytes of base64(secret)
//	message   = signingDomain + path + body
//	signature = base64(HMAC-SHA256(key, message))
//
// The body is the exact JSON sent on the wire, nonce included.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// ErrEmptySecret is returned when a signer is built without a secret.
var ErrEmptySecret = errors.New("api secret is empty")

// CanonicalMessage returns the bytes covered by the signature.
func CanonicalMessage(signingDomain, path string, body []byte) []byte {
	msg := make([]byte, 0, len(signingDomain)+len(path)+len(body))
	msg = append(msg, signingDomain...)
	msg = append(msg, path...)
	msg = append(msg, body...)
	return msg
}

// Signer signs canonical messages with one API secret. It holds no mutable
// state and is safe for concurrent use.
type Signer struct {
	key []byte
}

// NewSigner derives the HMAC key from secret.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := make([]byte, base64.StdEncoding.EncodedLen(len(secret)))
	base64.StdEncoding.Encode(key, []byte(secret))
	return &Signer{key: key}, nil
}

// Sign returns the base64 signature for a request.
func (s *Signer) Sign(signingDomain, path string, body []byte) string {
	return base64.StdEncoding.EncodeToString(s.mac(signingDomain, path, body))
}

// Verify checks a base64 signature in constant time.
func (s *Signer) Verify(signingDomain, path string, body []byte, signature string) bool {
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(got, s.mac(signingDomain, path, body))
}

func (s *Signer) mac(signingDomain, path string, body []byte) []byte {
	h := hmac.New(sha256.New, s.key)
	h.Write(CanonicalMessage(signingDomain, path, body))
	return h.Sum(nil)
}

// Sign is a convenience wrapper for one-off signatures.
func Sign(secret, signingDomain, path string, body []byte) (string, error) {
	s, err := NewSigner(secret)
	if err != nil {
		return "", err
	}
	return s.Sign(signingDomain, path, body), nil
}
