package logger

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func withObserver(t *testing.T, level zapcore.Level) *observer.ObservedLogs {
	t.Helper()
	original := defaultLogger
	t.Cleanup(func() { defaultLogger = original })

	core, recorded := observer.New(level)
	defaultLogger = zap.New(core)
	return recorded
}

func TestDebugLogging(t *testing.T) {
	recorded := withObserver(t, zapcore.DebugLevel)

	Debug("embed request", "model", "text-embedding-3-small")

	logs := recorded.All()
	if len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logs))
	}
	entry := logs[0]
	if entry.Level != zapcore.DebugLevel {
		t.Errorf("level: got %v, want debug", entry.Level)
	}
	if entry.Message != "embed request" {
		t.Errorf("message: got %q", entry.Message)
	}
	if len(entry.Context) != 1 || entry.Context[0].Key != "model" || entry.Context[0].String != "text-embedding-3-small" {
		t.Errorf("unexpected context: %v", entry.Context)
	}
}

func TestLevelFiltering(t *testing.T) {
	recorded := withObserver(t, zapcore.WarnLevel)

	Debug("dropped")
	Info("dropped")
	Warn("kept")
	Error("kept", "code", 1)

	if n := recorded.Len(); n != 2 {
		t.Errorf("expected 2 entries at warn+, got %d", n)
	}
}

func TestWith(t *testing.T) {
	recorded := withObserver(t, zapcore.InfoLevel)

	With("provider", "OpenAI").Infow("ready")

	logs := recorded.All()
	if len(logs) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(logs))
	}
	if logs[0].ContextMap()["provider"] != "OpenAI" {
		t.Errorf("missing provider field: %v", logs[0].ContextMap())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"bogus", zapcore.WarnLevel},
		{"", zapcore.WarnLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInit_WritesToWriter(t *testing.T) {
	original := defaultLogger
	defer func() { defaultLogger = original }()

	var buf bytes.Buffer
	Init(InfoLevel, &buf)
	Info("hello", "k", "v")
	Sync()

	out := buf.String()
	if !strings.Contains(out, "hello") || !strings.Contains(out, "INFO") {
		t.Errorf("unexpected output: %q", out)
	}
}
