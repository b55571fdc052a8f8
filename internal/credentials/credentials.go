// Package credentials supplies the API key pair to the client and keeps it
// in a local store between runs.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/solidifx/solidi-go/pkg/api"
)

// ErrNoCredentials is returned when no key pair has been stored yet.
var ErrNoCredentials = errors.New("no credentials stored")

// Provider yields the current credentials.
type Provider interface {
	Credentials(ctx context.Context) (api.Credentials, error)
}

// Store is a Provider that can also persist and forget credentials, as
// happens on login and logout.
type Store interface {
	Provider
	Save(ctx context.Context, creds api.Credentials) error
	Clear(ctx context.Context) error
}

// Static always returns the same pair. Empty fields yield ErrNoCredentials.
type Static api.Credentials

// Credentials implements Provider.
func (s Static) Credentials(context.Context) (api.Credentials, error) {
	c := api.Credentials(s)
	if c.APIKey == "" && c.APISecret == "" {
		return c, ErrNoCredentials
	}
	return c, nil
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.RWMutex
	creds *api.Credentials
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Credentials(context.Context) (api.Credentials, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.creds == nil {
		return api.Credentials{}, ErrNoCredentials
	}
	return *m.creds, nil
}

func (m *Memory) Save(_ context.Context, creds api.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = &creds
	return nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
	return nil
}

// expandPath replaces a leading ~ with the user's home directory.
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

// writeFileAtomic writes data with 0600 permissions: temp file in the same
// directory, then rename over the target.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	if err := tmpFile.Chmod(0o600); err != nil {
		return fmt.Errorf("failed to set permissions on temp file: %w", err)
	}
	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move credentials file into place: %w", err)
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credentials file: %w", err)
	}
	return nil
}
