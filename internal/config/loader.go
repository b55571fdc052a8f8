package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// Viper exposes the underlying instance so command flags can be bound to
// configuration keys.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from files and environment variables.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()
	l.setupConfigPaths()
	l.setupEnvVars()

	// The config file is optional.
	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return l.finish()
}

// LoadWithPath loads configuration from a specific file path.
func LoadWithPath(path string) (*Config, error) {
	return NewLoader().LoadWithPath(path)
}

// LoadWithPath loads configuration from path plus the environment.
func (l *Loader) LoadWithPath(path string) (*Config, error) {
	l.setDefaults()
	l.setupEnvVars()

	l.v.SetConfigFile(path)
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return l.finish()
}

func (l *Loader) finish() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	cfg.NonceDBPath = expandPath(cfg.NonceDBPath)
	cfg.CredentialsPath = expandPath(cfg.CredentialsPath)

	return &cfg, nil
}

// setDefaults sets default configuration values. Every key needs a default
// for AutomaticEnv to pick it up during Unmarshal.
func (l *Loader) setDefaults() {
	l.v.SetDefault("domain", "www.solidi.co")
	l.v.SetDefault("signing_domain", "")
	l.v.SetDefault("scheme", "https")
	l.v.SetDefault("api_prefix", "api2")
	l.v.SetDefault("api_version", "v1")
	l.v.SetDefault("timeout", "30s")
	l.v.SetDefault("user_agent", "solidi-go/1.0")
	l.v.SetDefault("rate_limit", 0)
	l.v.SetDefault("rate_burst", 1)
	l.v.SetDefault("nonce_retry", true)
	l.v.SetDefault("nonce_store", NonceStoreSQLite)
	l.v.SetDefault("nonce_db_path", "~/.solidi/state.db")
	l.v.SetDefault("credentials_backend", CredentialsFile)
	l.v.SetDefault("credentials_path", "~/.solidi/credentials.yaml")
	l.v.SetDefault("api_key", "")
	l.v.SetDefault("api_secret", "")
	l.v.SetDefault("log_level", "warn")
	l.v.SetDefault("log_format", "text")
	l.v.SetDefault("app_tier", "prod")
	l.v.SetDefault("sandbox_addr", "127.0.0.1:8089")
}

// setupConfigPaths configures where to search for config files.
func (l *Loader) setupConfigPaths() {
	l.v.SetConfigName(".solidi")
	l.v.SetConfigType("yaml")

	// Search paths in priority order
	l.v.AddConfigPath("/etc/solidi")
	if home, err := os.UserHomeDir(); err == nil {
		l.v.AddConfigPath(home)
	}
	l.v.AddConfigPath(".")
}

// setupEnvVars configures environment variable handling.
func (l *Loader) setupEnvVars() {
	l.v.SetEnvPrefix("SOLIDI")
	l.v.AutomaticEnv()
}

// validate validates the configuration.
func (l *Loader) validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Domain) == "" {
		return fmt.Errorf("domain is required")
	}
	if strings.Contains(cfg.Domain, "://") {
		return fmt.Errorf("domain must be a host name, not a URL: %s", cfg.Domain)
	}
	if cfg.Scheme != "https" && cfg.Scheme != "http" {
		return fmt.Errorf("invalid scheme: %s (must be https or http)", cfg.Scheme)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if cfg.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}

	switch cfg.NonceStore {
	case NonceStoreMemory:
	case NonceStoreSQLite:
		if cfg.NonceDBPath == "" {
			return fmt.Errorf("nonce_db_path is required for the sqlite nonce store")
		}
	default:
		return fmt.Errorf("invalid nonce_store: %s (must be memory or sqlite)", cfg.NonceStore)
	}

	switch cfg.CredentialsBackend {
	case CredentialsFile, CredentialsVault:
		if cfg.CredentialsPath == "" {
			return fmt.Errorf("credentials_path is required for the %s backend", cfg.CredentialsBackend)
		}
	case CredentialsEnv:
		if cfg.APIKey == "" || cfg.APISecret == "" {
			return fmt.Errorf("api_key and api_secret are required for the env backend")
		}
	default:
		return fmt.Errorf("invalid credentials_backend: %s (must be file, vault or env)", cfg.CredentialsBackend)
	}

	validLogLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be trace, debug, info, warn, or error)", cfg.LogLevel)
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid log_format: %s (must be text or json)", cfg.LogFormat)
	}

	return nil
}

// expandPath expands ~ to home directory in file paths.
func expandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if len(path) == 1 {
		return home
	}

	return filepath.Join(home, path[1:])
}
