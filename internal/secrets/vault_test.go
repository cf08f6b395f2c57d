package secrets

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testVault(t *testing.T) *Vault {
	t.Helper()
	v, err := Open(filepath.Join(t.TempDir(), "nested", ".secrets"), DeriveKey("test passphrase"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return v
}

// =============================================================================
// Vault tests
// =============================================================================

func TestVault_WhenEmpty_ShouldReturnNotFound(t *testing.T) {
	v := testVault(t)

	if _, err := v.Get("OPENAI_API_KEY"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	names, err := v.Names()
	if err != nil || len(names) != 0 {
		t.Errorf("expected no names, got %v (%v)", names, err)
	}
}

func TestVault_SetGetDelete_ShouldRoundTrip(t *testing.T) {
	v := testVault(t)

	if err := v.Set("OPENAI_API_KEY", "sk-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := v.Set("GEMINI_API_KEY", "g-1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := v.Set("OPENAI_API_KEY", "sk-2"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	if got, err := v.Get("OPENAI_API_KEY"); err != nil || got != "sk-2" {
		t.Errorf("want sk-2, got %q (%v)", got, err)
	}
	names, _ := v.Names()
	if diff := cmp.Diff([]string{"GEMINI_API_KEY", "OPENAI_API_KEY"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	if err := v.Delete("GEMINI_API_KEY"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := v.Delete("never-set"); err != nil {
		t.Errorf("deleting a missing name should succeed, got %v", err)
	}
	if _, err := v.Get("GEMINI_API_KEY"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestVault_ShouldNotStorePlaintext(t *testing.T) {
	v := testVault(t)
	if err := v.Set("OPENAI_API_KEY", "sk-very-secret"); err != nil {
		t.Fatalf("set: %v", err)
	}

	data, err := os.ReadFile(v.Path())
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(data, []byte("sk-very-secret")) || bytes.Contains(data, []byte("OPENAI_API_KEY")) {
		t.Error("vault file contains plaintext")
	}
	info, _ := os.Stat(v.Path())
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600, got %v", info.Mode().Perm())
	}
}

func TestVault_WhenKeyWrong_ShouldFailToDecrypt(t *testing.T) {
	v := testVault(t)
	if err := v.Set("K", "v"); err != nil {
		t.Fatal(err)
	}
	other, _ := Open(v.Path(), DeriveKey("another passphrase"))

	_, err := other.Get("K")

	if err == nil || !strings.Contains(err.Error(), "decrypt") {
		t.Fatalf("expected decrypt error, got %v", err)
	}
	if err := other.Set("K", "x"); err == nil {
		t.Error("Set with the wrong key must not clobber the vault")
	}
}

func TestVault_WhenFileTruncated_ShouldReturnError(t *testing.T) {
	v := testVault(t)
	if err := os.MkdirAll(filepath.Dir(v.Path()), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(v.Path(), []byte("short"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := v.Get("K"); err == nil || !strings.Contains(err.Error(), "truncated") {
		t.Fatalf("expected truncated error, got %v", err)
	}
}

func TestVault_WhenWriteFails_ShouldReturnError(t *testing.T) {
	original := vaultWriteFile
	vaultWriteFile = func(string, []byte, os.FileMode) error { return errors.New("disk full") }
	defer func() { vaultWriteFile = original }()

	if err := testVault(t).Set("K", "v"); err == nil || !strings.Contains(err.Error(), "disk full") {
		t.Fatalf("expected write error, got %v", err)
	}
}

func TestOpen_WhenKeyWrongSize_ShouldReturnError(t *testing.T) {
	if _, err := Open("x", []byte("short")); err == nil {
		t.Fatal("expected key size error")
	}
}

func TestGetenv_ShouldPreferEnvironmentThenVault(t *testing.T) {
	v := testVault(t)
	if err := v.Set("OPENAI_API_KEY", "from-vault"); err != nil {
		t.Fatal(err)
	}
	if err := v.Set("GEMINI_API_KEY", "gem-vault"); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{"OPENAI_API_KEY": "from-env"}

	getenv := v.Getenv(func(k string) string { return env[k] })

	if got := getenv("OPENAI_API_KEY"); got != "from-env" {
		t.Errorf("want from-env, got %q", got)
	}
	if got := getenv("GEMINI_API_KEY"); got != "gem-vault" {
		t.Errorf("want gem-vault, got %q", got)
	}
	if got := getenv("MISSING"); got != "" {
		t.Errorf("want empty, got %q", got)
	}
}

// =============================================================================
// Key source tests
// =============================================================================

func TestKeyFromEnv_WhenPassphraseSet_ShouldDeriveFromIt(t *testing.T) {
	key, err := KeyFromEnv(func(k string) string {
		if k == PassphraseEnv {
			return "hunter2"
		}
		return ""
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(key, DeriveKey("hunter2")) || len(key) != 32 {
		t.Errorf("unexpected key %x", key)
	}
}

func TestKeyFromEnv_WhenNoPassphrase_ShouldUseMachineID(t *testing.T) {
	original := readFile
	defer func() { readFile = original }()
	readFile = func(string) ([]byte, error) { return []byte("abc123\nignored\n"), nil }

	key, err := KeyFromEnv(func(string) string { return "" })

	if err != nil || !bytes.Equal(key, DeriveKey("abc123")) {
		t.Fatalf("expected key from machine-id, got %x (%v)", key, err)
	}
}

func TestKeyFromEnv_WhenMachineIDMissingOrEmpty_ShouldReturnError(t *testing.T) {
	original := readFile
	defer func() { readFile = original }()
	noEnv := func(string) string { return "" }

	readFile = func(string) ([]byte, error) { return nil, os.ErrNotExist }
	if _, err := KeyFromEnv(noEnv); err == nil || !strings.Contains(err.Error(), PassphraseEnv) {
		t.Errorf("expected hint about %s, got %v", PassphraseEnv, err)
	}

	readFile = func(string) ([]byte, error) { return []byte("\n"), nil }
	if _, err := KeyFromEnv(noEnv); err == nil {
		t.Error("expected error for empty machine-id")
	}
}

func TestDefaultPath_ShouldLiveUnderPeekConfigDir(t *testing.T) {
	original := userConfigDir
	defer func() { userConfigDir = original }()
	userConfigDir = func() (string, error) { return "/home/u/.config", nil }

	got, err := DefaultPath()

	if err != nil || got != filepath.Join("/home/u/.config", "peek", ".secrets") {
		t.Errorf("unexpected path %q (%v)", got, err)
	}
}

func TestOpenDefault_WhenConfigDirUnavailable_ShouldReturnError(t *testing.T) {
	original := userConfigDir
	defer func() { userConfigDir = original }()
	userConfigDir = func() (string, error) { return "", errors.New("no home") }

	if _, err := OpenDefault(func(string) string { return "p" }); err == nil {
		t.Fatal("expected error")
	}
}
