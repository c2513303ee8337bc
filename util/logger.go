// Package util provides low-level helpers shared by all other packages.
package util

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Log formats accepted by NewLogger.
const (
	LogFormatAuto = "auto"
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// NewLogger builds the process logger. level is one of "debug", "info",
// "warn", "error". format selects the handler: "text", "json", or
// "auto", which picks text when w is an interactive terminal and JSON
// otherwise.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	switch strings.ToLower(format) {
	case LogFormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts))
	case LogFormatText:
		return slog.New(slog.NewTextHandler(w, opts))
	default:
		if IsTerminal(w) {
			return slog.New(slog.NewTextHandler(w, opts))
		}
		return slog.New(slog.NewJSONHandler(w, opts))
	}
}

// ParseLevel maps a level name to its slog.Level. Unknown names fall
// back to info rather than failing, matching how most daemons treat a
// bad LOG_LEVEL.
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

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
