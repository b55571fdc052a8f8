package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/solidifx/solidi-go/pkg/errors"
)

// Config describes the backend the client talks to.
type Config struct {
	// Domain is the host requests are sent to.
	Domain string
	// SigningDomain is the host string covered by signatures. It differs
	// from Domain on some environments (t2 signs as www.solidi.co).
	SigningDomain string
	Scheme        string
	APIPrefix     string
	APIVersion    string
	UserAgent     string
	Timeout       time.Duration

	// NonceRetry repeats a call once with a fresh nonce when the backend
	// rejects the nonce.
	NonceRetry bool

	// RateLimit paces outgoing calls in requests per second; zero disables it.
	RateLimit float64
	RateBurst int
}

// DefaultConfig returns the production backend settings.
func DefaultConfig() Config {
	return Config{
		Domain:        "www.solidi.co",
		SigningDomain: "www.solidi.co",
		Scheme:        "https",
		APIPrefix:     "api2",
		APIVersion:    "v1",
		UserAgent:     "solidi-go/1.0",
		Timeout:       30 * time.Second,
		NonceRetry:    true,
		RateBurst:     1,
	}
}

// Validate checks the configuration and fills derived defaults.
func (c *Config) Validate() error {
	c.Domain = strings.TrimSuffix(strings.TrimSpace(c.Domain), "/")
	if c.Domain == "" {
		return fmt.Errorf("%w: domain is required", errors.ErrInvalidConfig)
	}
	if strings.Contains(c.Domain, "://") {
		return fmt.Errorf("%w: domain must be a host name, not a URL: %s", errors.ErrInvalidConfig, c.Domain)
	}
	if c.SigningDomain == "" {
		c.SigningDomain = c.Domain
	}
	if c.Scheme == "" {
		c.Scheme = "https"
	}
	if c.Scheme != "https" && c.Scheme != "http" {
		return fmt.Errorf("%w: unsupported scheme %q", errors.ErrInvalidConfig, c.Scheme)
	}
	c.APIPrefix = strings.Trim(c.APIPrefix, "/")
	c.APIVersion = strings.Trim(c.APIVersion, "/")
	if c.APIVersion == "" {
		c.APIVersion = "v1"
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", errors.ErrInvalidConfig)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit must not be negative", errors.ErrInvalidConfig)
	}
	if c.RateBurst < 1 {
		c.RateBurst = 1
	}
	return nil
}
