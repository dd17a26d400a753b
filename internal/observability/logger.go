package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger builds the process logger. format is "json" or "text"; level is
// one of debug, info, warn, error and defaults to info.
func NewLogger(level, format string) *slog.Logger {
	return newLogger(os.Stderr, level, format)
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var h slog.Handler
	if format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DiscardLogger returns a logger that drops everything. Used by tests.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
