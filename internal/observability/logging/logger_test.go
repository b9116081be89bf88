package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestNewLoggerDefaultLevel(t *testing.T) {
	logger := NewLogger()
	if logger == nil {
		t.Fatal("NewLogger returned nil")
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled without LOG_LEVEL=debug")
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be enabled by default")
	}
}

func TestNewLoggerDebugLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	logger := NewLogger()
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be enabled with LOG_LEVEL=debug")
	}
}

func TestNewTextLogger(t *testing.T) {
	if NewTextLogger() == nil {
		t.Fatal("NewTextLogger returned nil")
	}
}

func TestLoggerContextRoundTrip(t *testing.T) {
	logger := NewTextLogger()
	ctx := WithLogger(context.Background(), logger)
	if got := FromContext(ctx); got != logger {
		t.Error("FromContext did not return the stored logger")
	}
	if got := FromContext(context.Background()); got == nil {
		t.Error("FromContext must fall back to the default logger")
	}
}

func TestWithJob(t *testing.T) {
	logger := WithJob(NewTextLogger(), "regular_fetch", "run-123")
	if logger == nil {
		t.Fatal("WithJob returned nil")
	}
}
