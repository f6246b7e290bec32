package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"Warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr && err == nil {
				t.Errorf("expected error for input %q", tt.input)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error for input %q: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("expected %v, got %v for input %q", tt.expected, got, tt.input)
			}
		})
	}
}

func TestLogger_Threshold(t *testing.T) {
	var buf bytes.Buffer
	l := New()
	l.SetOutput(&buf)
	l.SetLevel(LevelWarn)

	l.Debug("provider lookup")
	l.Info("flow started")
	l.Warn("step %d invalid", 2)
	l.Error("acknowledge failed")

	output := buf.String()
	if strings.Contains(output, "provider lookup") || strings.Contains(output, "flow started") {
		t.Errorf("messages below WARN should be dropped, got %q", output)
	}
	if !strings.Contains(output, "[WARN] step 2 invalid") {
		t.Errorf("warn line missing or malformed: %q", output)
	}
	if !strings.Contains(output, "[ERROR] acknowledge failed") {
		t.Errorf("error line missing: %q", output)
	}
}

func TestLogger_EnvVars(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carepath.log")
	t.Setenv(EnvLevel, "debug")
	t.Setenv(EnvFile, path)

	l := New()
	if l.Level() != LevelDebug {
		t.Errorf("expected debug level from env var, got %v", l.Level())
	}
	l.Debug("draft updated")
	if err := l.Close(); err != nil {
		t.Fatalf("unexpected error closing logger: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "draft updated") {
		t.Error("log file should contain the message")
	}
}

func TestLogger_Configure(t *testing.T) {
	t.Setenv(EnvLevel, "")
	t.Setenv(EnvFile, "")

	l := New()
	if err := l.Configure("loud", ""); err == nil {
		t.Error("expected error for invalid level")
	}

	path := filepath.Join(t.TempDir(), "out.log")
	if err := l.Configure("error", path); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	l.Warn("dropped")
	l.Error("kept")
	_ = l.Close()

	content, _ := os.ReadFile(path)
	if strings.Contains(string(content), "dropped") || !strings.Contains(string(content), "kept") {
		t.Errorf("unexpected log content %q", content)
	}

	// Closing twice is harmless.
	if err := l.Close(); err != nil {
		t.Errorf("second Close returned %v", err)
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	var buf bytes.Buffer
	Default.SetOutput(&buf)
	Default.SetLevel(LevelDebug)
	defer Default.SetLevel(LevelInfo)

	Debug("debug %s", "test")
	Info("info %s", "test")
	Warn("warn %s", "test")
	Error("error %s", "test")

	output := buf.String()
	for _, want := range []string{"debug test", "info test", "warn test", "error test"} {
		if !strings.Contains(output, want) {
			t.Errorf("output should contain %q", want)
		}
	}
}
