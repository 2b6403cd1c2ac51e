package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewHonoursLevel(t *testing.T) {
	logger, err := New(Options{Level: "warn", Format: "json"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("warn should be enabled")
	}
}

func TestValidateRejectsUnknownValues(t *testing.T) {
	if err := (Options{Level: "loud"}).Validate(); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if err := (Options{Format: "xml"}).Validate(); err == nil {
		t.Fatalf("expected error for unknown format")
	}
	if err := (Options{}).Validate(); err != nil {
		t.Fatalf("empty options should fall back to defaults: %v", err)
	}
}
