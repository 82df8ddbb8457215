package logger

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"off", LevelOff},
		{"bogus", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "warn")

	l.Debug("debug %d", 1)
	l.Info("info")
	l.Warn("careful %s", "now")
	l.Error("broken")

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "INFO") {
		t.Errorf("messages below warn were written:\n%s", out)
	}
	if !strings.Contains(out, "WARN careful now") {
		t.Errorf("missing warn line:\n%s", out)
	}
	if !strings.Contains(out, "ERROR broken") {
		t.Errorf("missing error line:\n%s", out)
	}
}

func TestNamedSharesLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, "error")
	child := l.Named("download").Named("progress")

	child.Info("hidden")
	l.SetLevel("debug")
	child.Info("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("child ignored parent level:\n%s", out)
	}
	if !strings.Contains(out, "INFO download.progress: visible") {
		t.Errorf("missing prefixed line:\n%s", out)
	}
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("nothing")
	if l.Level() != LevelOff {
		t.Errorf("Discard level = %v", l.Level())
	}
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "flare.log")
	l, err := NewFileLogger(path, "info")
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	l.Info("written")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
