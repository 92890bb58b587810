package logging

import (
	"log/slog"
	"testing"
)

func TestDefaultReturnsProvidedLogger(t *testing.T) {
	logger := slog.Default()
	if got := Default(logger); got != logger {
		t.Fatalf("Default returned a different logger than provided")
	}
}

func TestDefaultReturnsDiscardWhenNil(t *testing.T) {
	logger := Default(nil)
	if logger == nil {
		t.Fatal("Default(nil) returned nil")
	}
	// Discard handler must not panic and must report disabled for all levels.
	if logger.Handler().Enabled(nil, slog.LevelError) {
		t.Fatal("discard handler should report disabled for all levels")
	}
}
