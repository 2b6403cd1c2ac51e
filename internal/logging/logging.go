// Package logging builds the zap logger shared by every component.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects level and encoding.
type Options struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string
	// Format is "console" or "json".
	Format string
}

// DefaultOptions logs at info level to a console encoder.
func DefaultOptions() Options {
	return Options{Level: "info", Format: "console"}
}

// Validate reports unknown levels or formats.
func (o Options) Validate() error {
	if _, err := zapcore.ParseLevel(levelOrDefault(o.Level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", o.Level, err)
	}
	switch formatOrDefault(o.Format) {
	case "console", "json":
		return nil
	default:
		return fmt.Errorf("invalid log format %q", o.Format)
	}
}

// New builds a logger writing to stderr.
func New(opts Options) (*zap.Logger, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	level, _ := zapcore.ParseLevel(levelOrDefault(opts.Level))

	var config zap.Config
	if formatOrDefault(opts.Format) == "json" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.DisableStacktrace = true
	}
	config.Level = zap.NewAtomicLevelAt(level)
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func levelOrDefault(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		return "info"
	}
	return level
}

func formatOrDefault(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		return "console"
	}
	return format
}
