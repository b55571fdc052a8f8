package credentials

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
	"gopkg.in/yaml.v3"

	"github.com/solidifx/solidi-go/pkg/api"
)

// ErrWrongPassphrase is returned when the vault cannot be opened.
var ErrWrongPassphrase = errors.New("vault passphrase is incorrect or the file is corrupt")

// PassphraseFunc returns the passphrase protecting a vault.
type PassphraseFunc func() ([]byte, error)

// KDFParams are the scrypt cost parameters stored with each vault.
type KDFParams struct {
	N int `yaml:"n"`
	R int `yaml:"r"`
	P int `yaml:"p"`
}

// DefaultKDFParams are the interactive-login scrypt costs.
var DefaultKDFParams = KDFParams{N: 1 << 15, R: 8, P: 1}

// Upper bounds on the costs read from a vault file.
const (
	maxKDFN = 1 << 20
	maxKDFR = 32
	maxKDFP = 16
)

func (p KDFParams) validate() error {
	if p.N <= 1 || p.N > maxKDFN || p.R <= 0 || p.R > maxKDFR || p.P <= 0 || p.P > maxKDFP {
		return fmt.Errorf("vault kdf parameters out of range (n=%d r=%d p=%d)", p.N, p.R, p.P)
	}
	return nil
}

type vaultFile struct {
	Version int       `yaml:"version"`
	KDF     string    `yaml:"kdf"`
	Params  KDFParams `yaml:"params"`
	Salt    string    `yaml:"salt"`
	Nonce   string    `yaml:"nonce"`
	Box     string    `yaml:"box"`
}

var b64 = base64.StdEncoding

const (
	vaultVersion = 1
	saltSize     = 16
	keySize      = 32
	nonceSize    = 24
)

// VaultStore keeps the key pair sealed with nacl/secretbox under a key
// derived from a passphrase with scrypt. The derived key is kept for the
// life of the store, so the passphrase is asked for at most once per salt.
type VaultStore struct {
	path       string
	passphrase PassphraseFunc
	params     KDFParams
	mu         sync.Mutex
	cached     *derivedKey
}

type derivedKey struct {
	salt   string
	params KDFParams
	key    *[keySize]byte
}

// VaultOption configures a VaultStore.
type VaultOption func(*VaultStore)

// WithKDFParams overrides the scrypt cost for newly written vaults.
func WithKDFParams(p KDFParams) VaultOption {
	return func(v *VaultStore) { v.params = p }
}

// NewVaultStore creates a VaultStore at path.
func NewVaultStore(path string, passphrase PassphraseFunc, opts ...VaultOption) *VaultStore {
	v := &VaultStore{
		path:       expandPath(path),
		passphrase: passphrase,
		params:     DefaultKDFParams,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Path returns the resolved file location.
func (v *VaultStore) Path() string {
	return v.path
}

func (v *VaultStore) Credentials(context.Context) (api.Credentials, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	data, err := os.ReadFile(v.path)
	if errors.Is(err, os.ErrNotExist) {
		return api.Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return api.Credentials{}, fmt.Errorf("failed to read vault: %w", err)
	}

	var vf vaultFile
	if err := yaml.Unmarshal(data, &vf); err != nil {
		return api.Credentials{}, fmt.Errorf("failed to parse vault %s: %w", v.path, err)
	}
	if vf.Version != vaultVersion || vf.KDF != "scrypt" {
		return api.Credentials{}, fmt.Errorf("unsupported vault format (version %d, kdf %q)", vf.Version, vf.KDF)
	}
	salt, err1 := b64.DecodeString(vf.Salt)
	rawNonce, err2 := b64.DecodeString(vf.Nonce)
	box, err3 := b64.DecodeString(vf.Box)
	if err := errors.Join(err1, err2, err3); err != nil || len(rawNonce) != nonceSize {
		return api.Credentials{}, ErrWrongPassphrase
	}

	key, err := v.keyFor(salt, vf.Params)
	if err != nil {
		return api.Credentials{}, err
	}

	var nonce [nonceSize]byte
	copy(nonce[:], rawNonce)
	plain, ok := secretbox.Open(nil, box, &nonce, key)
	if !ok {
		v.cached = nil
		return api.Credentials{}, ErrWrongPassphrase
	}
	v.cached = &derivedKey{salt: vf.Salt, params: vf.Params, key: key}

	var creds api.Credentials
	if err := json.Unmarshal(plain, &creds); err != nil {
		return api.Credentials{}, fmt.Errorf("failed to decode vault contents: %w", err)
	}
	if !creds.Valid() {
		return api.Credentials{}, ErrNoCredentials
	}
	return creds, nil
}

func (v *VaultStore) Save(_ context.Context, creds api.Credentials) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	plain, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	// A known key is reused with a fresh nonce; otherwise a new salt is drawn.
	dk := v.cached
	if dk == nil || dk.params != v.params {
		salt := make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
		key, err := v.deriveKey(salt, v.params)
		if err != nil {
			return err
		}
		dk = &derivedKey{salt: b64.EncodeToString(salt), params: v.params, key: key}
	}

	vf := vaultFile{
		Version: vaultVersion,
		KDF:     "scrypt",
		Params:  dk.params,
		Salt:    dk.salt,
		Nonce:   b64.EncodeToString(nonce[:]),
		Box:     b64.EncodeToString(secretbox.Seal(nil, plain, &nonce, dk.key)),
	}

	data, err := yaml.Marshal(vf)
	if err != nil {
		return fmt.Errorf("failed to encode vault: %w", err)
	}
	if err := writeFileAtomic(v.path, data); err != nil {
		return err
	}
	v.cached = dk
	return nil
}

func (v *VaultStore) Clear(context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cached = nil
	return removeIfExists(v.path)
}

// keyFor returns the cached key when salt and params match it.
func (v *VaultStore) keyFor(salt []byte, p KDFParams) (*[keySize]byte, error) {
	if dk := v.cached; dk != nil && dk.params == p && dk.salt == b64.EncodeToString(salt) {
		return dk.key, nil
	}
	return v.deriveKey(salt, p)
}

func (v *VaultStore) deriveKey(salt []byte, p KDFParams) (*[keySize]byte, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if v.passphrase == nil {
		return nil, errors.New("vault passphrase source is not configured")
	}
	pass, err := v.passphrase()
	if err != nil {
		return nil, fmt.Errorf("failed to read vault passphrase: %w", err)
	}
	if len(pass) == 0 {
		return nil, errors.New("vault passphrase is empty")
	}

	derived, err := scrypt.Key(pass, salt, p.N, p.R, p.P, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive vault key: %w", err)
	}

	var key [keySize]byte
	copy(key[:], derived)
	return &key, nil
}
