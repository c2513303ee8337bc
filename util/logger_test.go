package util

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger_Formats(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		wantJSON bool
	}{
		{"text", "text", false},
		{"json", "json", true},
		// A bytes.Buffer is not a terminal, so auto must pick JSON.
		{"auto non-tty", "auto", true},
		{"unknown falls back to auto", "yaml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := NewLogger(&buf, "info", tt.format)
			l.Info("hello", "key", "value")

			out := buf.String()
			isJSON := json.Valid([]byte(strings.TrimSpace(out)))
			if isJSON != tt.wantJSON {
				t.Errorf("format %q produced %q, wantJSON=%v", tt.format, out, tt.wantJSON)
			}
			if !strings.Contains(out, "hello") {
				t.Errorf("output missing message: %q", out)
			}
			if !strings.Contains(out, "value") {
				t.Errorf("output missing attribute: %q", out)
			}
		})
	}
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "warn", "text")

	l.Debug("drop me")
	l.Info("drop me too")
	l.Warn("keep me")
	l.Error("keep me too")

	out := buf.String()
	if strings.Contains(out, "drop me") {
		t.Errorf("sub-level records leaked through: %q", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 lines at warn level, got %d:\n%s", len(lines), out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsTerminal_NonFile(t *testing.T) {
	var buf bytes.Buffer
	if IsTerminal(&buf) {
		t.Error("a bytes.Buffer must not look like a terminal")
	}
}
