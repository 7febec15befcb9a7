package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a structured logger writing to stdout with the given level and format.
// level: "debug", "info", "warn", "error" (default "info").
// format: "json" or "text" (default "json").
func New(level, format string) *slog.Logger {
	return NewWriter(os.Stdout, level, format)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	if strings.ToLower(format) == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	return slog.New(h).With(slog.String("service", "editord"))
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
