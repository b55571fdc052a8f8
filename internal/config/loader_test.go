package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(home)
	return home
}

func TestLoader_Load_Defaults(t *testing.T) {
	home := isolateHome(t)

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Domain != "www.solidi.co" {
		t.Errorf("wrong Domain: got %s", cfg.Domain)
	}
	if cfg.APIPrefix != "api2" || cfg.APIVersion != "v1" {
		t.Errorf("wrong prefix/version: got %s/%s", cfg.APIPrefix, cfg.APIVersion)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("wrong Timeout: got %s", cfg.Timeout)
	}
	if !cfg.NonceRetry {
		t.Error("expected nonce retry to default on")
	}
	if cfg.NonceStore != NonceStoreSQLite {
		t.Errorf("wrong NonceStore: got %s", cfg.NonceStore)
	}
	if cfg.AppTier != "prod" {
		t.Errorf("wrong AppTier: got %s", cfg.AppTier)
	}
	if !strings.HasPrefix(cfg.NonceDBPath, home) {
		t.Errorf("expected nonce db path under %s, got %s", home, cfg.NonceDBPath)
	}
	if !strings.HasPrefix(cfg.CredentialsPath, home) {
		t.Errorf("expected credentials path under %s, got %s", home, cfg.CredentialsPath)
	}

	cc := cfg.Client()
	if err := cc.Validate(); err != nil {
		t.Fatalf("default client config is invalid: %v", err)
	}
	if cc.SigningDomain != "www.solidi.co" {
		t.Errorf("signing domain should default to domain, got %s", cc.SigningDomain)
	}
}

func TestLoader_Load_FromEnv(t *testing.T) {
	isolateHome(t)
	t.Setenv("SOLIDI_DOMAIN", "t2.solidi.co")
	t.Setenv("SOLIDI_SIGNING_DOMAIN", "www.solidi.co")
	t.Setenv("SOLIDI_TIMEOUT", "5s")
	t.Setenv("SOLIDI_NONCE_RETRY", "false")
	t.Setenv("SOLIDI_RATE_LIMIT", "2.5")
	t.Setenv("SOLIDI_CREDENTIALS_BACKEND", "env")
	t.Setenv("SOLIDI_API_KEY", "key")
	t.Setenv("SOLIDI_API_SECRET", "secret")
	t.Setenv("SOLIDI_LOG_LEVEL", "debug")

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.Domain != "t2.solidi.co" || cfg.SigningDomain != "www.solidi.co" {
		t.Errorf("wrong domains: %s / %s", cfg.Domain, cfg.SigningDomain)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("wrong Timeout: got %s", cfg.Timeout)
	}
	if cfg.NonceRetry {
		t.Error("expected nonce retry to be off")
	}
	if cfg.RateLimit != 2.5 {
		t.Errorf("wrong RateLimit: got %v", cfg.RateLimit)
	}
	if cfg.APIKey != "key" || cfg.APISecret != "secret" {
		t.Error("expected credentials from the environment")
	}
	if cfg.Logger("cli", "dev").Level != "debug" {
		t.Error("expected debug logger level")
	}
}

func TestLoader_Load_FromFile(t *testing.T) {
	home := isolateHome(t)
	data := []byte("domain: sandbox.local\nscheme: http\nnonce_store: memory\nlog_format: json\n")
	if err := os.WriteFile(filepath.Join(home, ".solidi.yaml"), data, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := NewLoader().Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Domain != "sandbox.local" || cfg.Scheme != "http" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.NonceStore != NonceStoreMemory {
		t.Errorf("wrong NonceStore: got %s", cfg.NonceStore)
	}

	t.Setenv("SOLIDI_DOMAIN", "override.local")
	cfg, err = NewLoader().Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Domain != "override.local" {
		t.Errorf("environment should win over the file, got %s", cfg.Domain)
	}
}

func TestLoadWithPath(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("api_version: v2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWithPath(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.APIVersion != "v2" {
		t.Errorf("wrong APIVersion: got %s", cfg.APIVersion)
	}

	if _, err := LoadWithPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing explicit config file")
	}
}

func TestLoader_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"url as domain", map[string]string{"SOLIDI_DOMAIN": "https://www.solidi.co"}, "host name"},
		{"bad scheme", map[string]string{"SOLIDI_SCHEME": "ftp"}, "scheme"},
		{"bad nonce store", map[string]string{"SOLIDI_NONCE_STORE": "redis"}, "nonce_store"},
		{"bad backend", map[string]string{"SOLIDI_CREDENTIALS_BACKEND": "keychain"}, "credentials_backend"},
		{"env backend without key", map[string]string{"SOLIDI_CREDENTIALS_BACKEND": "env"}, "api_key"},
		{"bad log level", map[string]string{"SOLIDI_LOG_LEVEL": "loud"}, "log_level"},
		{"bad log format", map[string]string{"SOLIDI_LOG_FORMAT": "xml"}, "log_format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateHome(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := NewLoader().Load()
			if err == nil {
				t.Fatal("expected an error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}
