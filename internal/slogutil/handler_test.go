package slogutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestTextHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("Translating codebase", "from", "internal", "steps", 3)

	output := buf.String()
	for _, want := range []string{"[info]", "Translating codebase", " | ", "from=internal", "steps=3"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestTextHandler_Levels(t *testing.T) {
	tests := []struct {
		logFunc  func(*slog.Logger)
		expected string
	}{
		{func(l *slog.Logger) { l.Debug("debug") }, "[debug]"},
		{func(l *slog.Logger) { l.Info("info") }, "[info]"},
		{func(l *slog.Logger) { l.Warn("warn") }, "[warn]"},
		{func(l *slog.Logger) { l.Error("error") }, "[error]"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, slog.LevelDebug)
			tt.logFunc(logger)
			if !strings.Contains(buf.String(), tt.expected) {
				t.Errorf("expected %s in output, got: %s", tt.expected, buf.String())
			}
		})
	}
}

func TestTextHandler_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)
	logger.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected no output, got: %s", buf.String())
	}
}

func TestTextHandler_WithGroupAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo).With("run", "r1").WithGroup("engine")
	logger.Info("memo hit", "key", "repo>public")

	output := buf.String()
	if !strings.Contains(output, "run=r1") {
		t.Errorf("expected run attr, got: %s", output)
	}
	if !strings.Contains(output, "engine.key=repo>public") {
		t.Errorf("expected grouped key, got: %s", output)
	}
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := LevelFromString(in); got != want {
			t.Errorf("LevelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFromVerbosity(t *testing.T) {
	if got := LevelFromVerbosity(0, false); got != slog.LevelWarn {
		t.Errorf("verbosity 0 = %v, want warn", got)
	}
	if got := LevelFromVerbosity(1, false); got != slog.LevelInfo {
		t.Errorf("verbosity 1 = %v, want info", got)
	}
	if got := LevelFromVerbosity(3, false); got != slog.LevelDebug {
		t.Errorf("verbosity 3 = %v, want debug", got)
	}
	if got := LevelFromVerbosity(2, true); got != Quiet {
		t.Errorf("quiet = %v, want Quiet", got)
	}
}

func TestNewLoggerWithFormat_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithFormat(&buf, "json", slog.LevelInfo)
	logger.Info("noted", "repo", "internal")
	if !strings.Contains(buf.String(), `"msg":"noted"`) {
		t.Errorf("expected JSON output, got: %s", buf.String())
	}
}

func TestTextHandler_QuotesValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	logger.Info("failed", "error", "exit status 1", "empty", "", "path", "/tmp/moe")

	output := buf.String()
	for _, want := range []string{`error="exit status 1"`, `empty=""`, "path=/tmp/moe"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestTextHandler_FlattensGroupValues(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)
	logger.Info("equivalence", slog.Group("rev", "repo", "internal", "id", "42"))

	output := buf.String()
	if !strings.Contains(output, "rev.repo=internal rev.id=42") {
		t.Errorf("expected flattened group, got: %s", output)
	}
}
