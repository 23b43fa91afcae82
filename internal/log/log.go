// Package log builds the process logger.
package log

import (
	"io"
	"log/slog"
	"strings"
)

// Output formats understood by New.
const (
	FormatTerminal = "terminal"
	FormatJSON     = "json"
)

// New returns a slog.Logger writing to w in the given format at the given
// level. Unknown formats fall back to the terminal handler, unknown levels
// to info.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var h slog.Handler
	switch strings.ToLower(format) {
	case FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	default:
		h = newTerminalHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
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
