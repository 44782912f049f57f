package app

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the daemon logger. LOG_FORMAT=json selects a JSON
// handler with source locations for log aggregation; the default
// pretty format is a plain text handler for terminals. Development
// runs log at debug level, production at info.
func NewLogger(cfg *Config) *slog.Logger {
	return slog.New(newLogHandler(os.Stdout, cfg))
}

func newLogHandler(w io.Writer, cfg *Config) slog.Handler {
	level := slog.LevelDebug
	if cfg.IsProduction() {
		level = slog.LevelInfo
	}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level, AddSource: true})
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
}
