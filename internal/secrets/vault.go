// Package secrets keeps provider API keys in an AES-GCM encrypted file so they
// never appear in the YAML config.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// ErrNotFound is returned when a secret is not stored.
var ErrNotFound = errors.New("secret not found")

const nonceSize = 12

// Hooks for tests.
var (
	vaultWriteFile           = os.WriteFile
	vaultMarshal             = json.Marshal
	vaultRand      io.Reader = rand.Reader
)

// Vault stores secrets by name (usually the environment variable they stand in for).
type Vault struct {
	path string
	key  []byte
}

// Open returns a Vault backed by path using a 32-byte key. The file is created on first Set.
func Open(path string, key []byte) (*Vault, error) {
	if len(key) != 32 {
		return nil, errors.New("secrets: key must be 32 bytes")
	}
	return &Vault{path: path, key: key}, nil
}

// Path returns the vault file location.
func (v *Vault) Path() string { return v.path }

// Get returns the secret stored under name, or ErrNotFound.
func (v *Vault) Get(name string) (string, error) {
	m, err := v.load()
	if err != nil {
		return "", err
	}
	s, ok := m[name]
	if !ok || s == "" {
		return "", ErrNotFound
	}
	return s, nil
}

// Set stores value under name, replacing any previous value.
func (v *Vault) Set(name, value string) error {
	m, err := v.load()
	if err != nil {
		return err
	}
	m[name] = value
	return v.save(m)
}

// Delete removes name. Deleting a missing name is not an error.
func (v *Vault) Delete(name string) error {
	m, err := v.load()
	if err != nil {
		return err
	}
	if _, ok := m[name]; !ok {
		return nil
	}
	delete(m, name)
	return v.save(m)
}

// Names lists stored secret names in sorted order.
func (v *Vault) Names() ([]string, error) {
	m, err := v.load()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

// Getenv returns a lookup that prefers the environment and falls back to the
// vault. Vault errors read as unset.
func (v *Vault) Getenv(env func(string) string) func(string) string {
	return func(name string) string {
		if s := env(name); s != "" {
			return s
		}
		if name == "" {
			return ""
		}
		s, _ := v.Get(name)
		return s
	}
}

func (v *Vault) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// load decrypts the vault. A missing file is an empty vault.
func (v *Vault) load() (map[string]string, error) {
	m := make(map[string]string)
	data, err := os.ReadFile(v.path)
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("secrets read: %w", err)
	}
	if len(data) < nonceSize {
		return nil, errors.New("secrets file truncated")
	}
	gcm, err := v.gcm()
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("secrets decrypt (wrong passphrase?): %w", err)
	}
	if err := json.Unmarshal(plain, &m); err != nil {
		return nil, fmt.Errorf("secrets parse: %w", err)
	}
	return m, nil
}

func (v *Vault) save(m map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(v.path), 0700); err != nil {
		return fmt.Errorf("secrets mkdir: %w", err)
	}
	plain, err := vaultMarshal(m)
	if err != nil {
		return err
	}
	gcm, err := v.gcm()
	if err != nil {
		return err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(vaultRand, nonce); err != nil {
		return err
	}
	return vaultWriteFile(v.path, gcm.Seal(nonce, nonce, plain, nil), 0600)
}
