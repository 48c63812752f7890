package app

import (
	"context"
	"log/slog"
	"testing"
)

func TestClose_ZeroValue(t *testing.T) {
	var a App
	if err := a.Close(); err != nil {
		t.Errorf("Close() on zero value = %v", err)
	}
}

func TestSetup_NilConfig(t *testing.T) {
	if _, err := Setup(context.Background(), nil); err == nil {
		t.Error("Setup(nil) should fail")
	}
}

func TestParseLogLevel(t *testing.T) {
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
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLogLevel(tt.in); got != tt.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
