// Package config loads the CLI configuration from defaults, an optional
// .solidi.yaml file and SOLIDI_* environment variables.
package config

import (
	"time"

	"github.com/solidifx/solidi-go/internal/client"
	"github.com/solidifx/solidi-go/pkg/logger"
)

// Nonce store backends.
const (
	NonceStoreMemory = "memory"
	NonceStoreSQLite = "sqlite"
)

// Credential backends.
const (
	CredentialsFile  = "file"
	CredentialsVault = "vault"
	CredentialsEnv   = "env"
)

// Config holds the CLI configuration.
type Config struct {
	Domain        string        `mapstructure:"domain"`
	SigningDomain string        `mapstructure:"signing_domain"`
	Scheme        string        `mapstructure:"scheme"`
	APIPrefix     string        `mapstructure:"api_prefix"`
	APIVersion    string        `mapstructure:"api_version"`
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	RateLimit     float64       `mapstructure:"rate_limit"`
	RateBurst     int           `mapstructure:"rate_burst"`
	NonceRetry    bool          `mapstructure:"nonce_retry"`

	NonceStore  string `mapstructure:"nonce_store"`
	NonceDBPath string `mapstructure:"nonce_db_path"`

	CredentialsBackend string `mapstructure:"credentials_backend"`
	CredentialsPath    string `mapstructure:"credentials_path"`
	APIKey             string `mapstructure:"api_key"`
	APISecret          string `mapstructure:"api_secret"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// AppTier is reported to the backend on login (prod, stag or dev).
	AppTier string `mapstructure:"app_tier"`

	SandboxAddr string `mapstructure:"sandbox_addr"`
}

// Client returns the client settings.
func (c *Config) Client() client.Config {
	cfg := client.DefaultConfig()
	cfg.Domain = c.Domain
	cfg.SigningDomain = c.SigningDomain
	cfg.Scheme = c.Scheme
	cfg.APIPrefix = c.APIPrefix
	cfg.APIVersion = c.APIVersion
	cfg.Timeout = c.Timeout
	cfg.UserAgent = c.UserAgent
	cfg.RateLimit = c.RateLimit
	cfg.RateBurst = c.RateBurst
	cfg.NonceRetry = c.NonceRetry
	return cfg
}

// Logger returns the logger settings for component.
func (c *Config) Logger(component, version string) logger.LoggerConfig {
	cfg := logger.DefaultConfig()
	cfg.Level = logger.LogLevel(c.LogLevel)
	cfg.Format = logger.OutputFormat(c.LogFormat)
	cfg.Component = component
	cfg.Version = version
	return cfg
}
