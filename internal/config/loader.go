// Package config loads and persists peek's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"peek/internal/domain"
)

// EnvPath names the environment variable that overrides the config location.
const EnvPath = "PEEK_CONFIG"

// marshalYAML, writeFile and userConfigDir are swapped by tests to force errors.
var (
	marshalYAML   = yaml.Marshal
	writeFile     = os.WriteFile
	userConfigDir = os.UserConfigDir
)

// Default returns the configuration used when no file exists: a local Ollama
// model and no connections.
func Default() *domain.Config {
	return &domain.Config{
		Workspaces: []domain.Workspace{},
		AI: domain.AIConfig{
			Provider: "ollama",
			Model:    "qwen3:8b",
			URL:      "http://localhost:11434/v1",
		},
		Log: domain.LogConfig{Level: "info", Format: "text"},
		Retry: domain.RetryConfig{
			MaxRetries:     3,
			InitialBackoff: 500,
			MaxBackoff:     10000,
			Multiplier:     2,
		},
	}
}

// Path resolves the config file location: $PEEK_CONFIG if set, else
// <UserConfigDir>/peek/config.yaml.
func Path(getenv func(string) string) (string, error) {
	if p := getenv(EnvPath); p != "" {
		return filepath.Clean(p), nil
	}
	dir, err := userConfigDir()
	if err != nil {
		return "", fmt.Errorf("config path: %w", err)
	}
	return filepath.Join(dir, "peek", "config.yaml"), nil
}

// WriteDefault writes Default() to path. Parent directories are created.
func WriteDefault(path string) error {
	return Save(path, Default())
}

// Load reads path and unmarshals it over Default(), so omitted sections keep
// their defaults. Path fields are cleaned to mitigate path traversal.
func Load(path string) (*domain.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	CleanPaths(c)
	return c, nil
}

// LoadOrDefault is Load, except that a missing file yields Default().
func LoadOrDefault(path string) (*domain.Config, error) {
	c, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return c, err
}

// CleanPaths applies filepath.Clean to all path fields in cfg to prevent path traversal.
func CleanPaths(cfg *domain.Config) {
	if cfg == nil {
		return
	}
	if cfg.TranscriptDir != "" {
		cfg.TranscriptDir = filepath.Clean(cfg.TranscriptDir)
	}
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *domain.Config) error {
	if cfg == nil {
		return fmt.Errorf("config save: nil config")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("config save mkdir: %w", err)
	}
	data, err := marshalYAML(cfg)
	if err != nil {
		return fmt.Errorf("config save marshal: %w", err)
	}
	if err := writeFile(path, data, 0644); err != nil {
		return fmt.Errorf("config save write: %w", err)
	}
	return nil
}
