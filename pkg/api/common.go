package api

import (
	"strings"
)

// Credentials is the API key pair issued by the backend on login.
type Credentials struct {
	APIKey    string `json:"apiKey" yaml:"api_key"`
	APISecret string `json:"apiSecret" yaml:"api_secret"`
}

// Valid reports whether both halves of the pair are present.
func (c Credentials) Valid() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.APISecret) != ""
}

// KeyID returns a shortened API key that is safe to log.
func (c Credentials) KeyID() string {
	return ShortKey(c.APIKey)
}

// ShortKey truncates an API key for logs and journal entries.
func ShortKey(key string) string {
	if len(key) <= 8 {
		return key
	}
	return key[:8] + "..."
}

// Params holds route-specific request parameters.
type Params map[string]any

// Clone returns a shallow copy so callers' maps are never mutated.
func (p Params) Clone() Params {
	out := make(Params, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	return out
}
