package config

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"peek/internal/domain"
)

// NewLogger builds a zerolog logger from cfg. Format "json" writes JSON lines;
// anything else uses the human-readable console writer.
func NewLogger(cfg domain.LogConfig, out io.Writer) zerolog.Logger {
	var level zerolog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(out).With().Timestamp().Logger().Level(level)
}
