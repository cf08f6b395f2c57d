package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"peek/internal/llm"
)

// CheckOptions holds options for the check command.
type CheckOptions struct {
	Path   string     // config file to inspect
	Fix    bool       // if true, write default config when missing
	Getenv llm.Getenv // resolves provider API keys
}

// RunCheck inspects the config file, every connection URL, the AI provider and
// the transcript directory. Returns the process exit code.
func RunCheck(ctx context.Context, opts CheckOptions, stdout, stderr io.Writer) int {
	note := func(section, message string) {
		fmt.Fprintf(stdout, "  [%s] %s\n", section, message)
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	// 1. Config
	cfg, err := configLoad(opts.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			note("Config", err.Error())
			return 1
		}
		note("Config", fmt.Sprintf("No config at %s.", opts.Path))
		if !opts.Fix {
			note("Config", "Run with --fix to write a default config.")
			fmt.Fprintln(stdout, "  Check complete.")
			return 0
		}
		if writeErr := configWriteDefault(opts.Path); writeErr != nil {
			fmt.Fprintf(stderr, "  failed to write default config: %v\n", writeErr)
			return 1
		}
		note("Config", fmt.Sprintf("Wrote default config to %s.", opts.Path))
		if cfg, err = configLoad(opts.Path); err != nil {
			note("Config", err.Error())
			return 1
		}
	} else {
		note("Config", fmt.Sprintf("Loaded %s.", opts.Path))
	}

	failed := false

	// 2. Connections
	choices := cfg.Connections()
	if len(choices) == 0 {
		note("Connections", "No connections configured.")
	}
	for _, c := range choices {
		if err := checkDatabaseURL(c.Connection.URL); err != nil {
			note("Connections", fmt.Sprintf("%s: %v", c.DisplayName(), err))
			failed = true
			continue
		}
		note("Connections", fmt.Sprintf("%s ok.", c.DisplayName()))
	}

	// 3. AI provider
	if _, err := newProvider(ctx, cfg.AI, opts.Getenv); err != nil {
		note("AI", err.Error())
		failed = true
	} else {
		note("AI", fmt.Sprintf("provider=%s model=%s", orDefault(cfg.AI.Provider, "ollama"), cfg.AI.Model))
	}

	// 4. Transcripts
	if dir := cfg.TranscriptDir; dir != "" {
		if err := ensureDir(dir, "transcript_dir"); err != nil {
			note("Paths", err.Error())
			failed = true
		} else {
			note("Paths", fmt.Sprintf("transcript_dir %s ok.", dir))
		}
	}

	fmt.Fprintln(stdout, "  Check complete.")
	if failed {
		return 1
	}
	return 0
}

func ensureDir(dir, label string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if mkErr := osMkdirAll(abs, 0755); mkErr != nil {
				return fmt.Errorf("%s %q: mkdir failed: %w", label, abs, mkErr)
			}
			return nil
		}
		return fmt.Errorf("%s %q: %w", label, abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s %q: not a directory", label, abs)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
