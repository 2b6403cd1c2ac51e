package testsupport

import (
	"testing"

	"github.com/rpattn/formrecon/internal/config"
	"github.com/rpattn/formrecon/internal/domain"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig returns the default configuration with small pages so paging
// paths are exercised, plus any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.FormD.URL = "postgres://test@localhost:5432/formd"
	cfg.ADV.URL = "postgres://test@localhost:5432/adv"
	cfg.Fetch.PageSize = 2
	cfg.Materialize.BatchSize = 2
	cfg.Detect.FanOut = 4

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return cfg
}

// WithDetectors restricts the run to the given detectors.
func WithDetectors(types ...domain.DiscrepancyType) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Detect.Enabled = types
	}
}

