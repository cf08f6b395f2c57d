package secrets

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PassphraseEnv names the variable whose value derives the vault key.
const PassphraseEnv = "PEEK_SECRETS_PASSPHRASE"

// Hooks for tests.
var (
	readFile      = os.ReadFile
	userConfigDir = os.UserConfigDir
)

const machineIDPath = "/etc/machine-id"

// KeyFromEnv derives the vault key from $PEEK_SECRETS_PASSPHRASE or, failing
// that, the first line of /etc/machine-id.
func KeyFromEnv(getenv func(string) string) ([]byte, error) {
	if s := getenv(PassphraseEnv); s != "" {
		return DeriveKey(s), nil
	}
	b, err := readFile(machineIDPath)
	if err != nil {
		return nil, fmt.Errorf("secrets: set %s or ensure %s exists: %w", PassphraseEnv, machineIDPath, err)
	}
	id, _, _ := strings.Cut(string(b), "\n")
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("secrets: machine-id is empty")
	}
	return DeriveKey(id), nil
}

// DeriveKey hashes input into a 32-byte key.
func DeriveKey(input string) []byte {
	const salt = "peek-secrets-v1"
	h := sha256.Sum256([]byte(salt + input))
	return h[:]
}

// DefaultPath returns <UserConfigDir>/peek/.secrets.
func DefaultPath() (string, error) {
	base, err := userConfigDir()
	if err != nil {
		return "", fmt.Errorf("secrets dir: %w", err)
	}
	return filepath.Join(base, "peek", ".secrets"), nil
}

// OpenDefault opens the vault at DefaultPath with the key from KeyFromEnv.
func OpenDefault(getenv func(string) string) (*Vault, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	key, err := KeyFromEnv(getenv)
	if err != nil {
		return nil, err
	}
	return Open(path, key)
}
