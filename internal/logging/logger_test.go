package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	testCases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" INFO ":  zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"verbose": zapcore.InfoLevel,
	}
	for input, expected := range testCases {
		if got := parseLevel(input); got != expected {
			t.Fatalf("parseLevel(%q): expected %s, got %s", input, expected, got)
		}
	}
}

func TestNewLoggerWritesRotatingFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "habitual.log")
	logger, err := NewLogger("debug", logPath)
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	logger.Info("habit logged")
	_ = logger.Sync()

	contents, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}
	if !strings.Contains(string(contents), "habit logged") {
		t.Fatalf("expected log file to contain entry, got %q", string(contents))
	}
}
