package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/solidifx/solidi-go/pkg/api"
)

// FileStore keeps the key pair in a plain YAML file readable only by the
// owner.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a FileStore at path. A leading ~ is expanded.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: expandPath(path)}
}

// Path returns the resolved file location.
func (f *FileStore) Path() string {
	return f.path
}

func (f *FileStore) Credentials(context.Context) (api.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return api.Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return api.Credentials{}, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds api.Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return api.Credentials{}, fmt.Errorf("failed to parse credentials file %s: %w", f.path, err)
	}
	if !creds.Valid() {
		return api.Credentials{}, ErrNoCredentials
	}
	return creds, nil
}

func (f *FileStore) Save(_ context.Context, creds api.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	return writeFileAtomic(f.path, data)
}

func (f *FileStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return removeIfExists(f.path)
}
