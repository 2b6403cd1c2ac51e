// Package config assembles the immutable run configuration from config.yaml,
// .env files and FORMRECON_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rpattn/formrecon/internal/db"
	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/logging"
)

// Store names one of the two backing databases.
type Store string

const (
	StoreFormD Store = "formd"
	StoreADV   Store = "adv"
)

// Config is built once at startup and passed by value.
type Config struct {
	FormD       db.Config
	ADV         db.Config
	IssueStore  Store
	Detect      DetectConfig
	Fetch       FetchConfig
	Materialize MaterializeConfig
	Log         logging.Options
}

// DetectConfig tunes the detector heuristics.
type DetectConfig struct {
	GracePeriodDays   int
	AmendmentDeadline domain.MonthDay
	LookbackMonths    int
	AUMYears          []int
	Enabled           []domain.DiscrepancyType
	FanOut            int
	RegisterCheck     bool
	AdminUmbrellas    []string
}

// FetchConfig bounds the bulk scans.
type FetchConfig struct {
	PageSize       int
	RecordCeiling  int
	MatchCeiling   int
	AdviserCeiling int
}

// MaterializeConfig controls issue writes.
type MaterializeConfig struct {
	BatchSize int
}

// DefaultAdminUmbrellas are series-LLC platforms whose "series of" operand
// names the administrator rather than the manager.
var DefaultAdminUmbrellas = []string{
	"roll up vehicles",
	"angellist funds",
	"multimodal ventures",
	"mv funds",
	"cgf2021 llc",
	"sydecar",
}

// Default returns the built-in configuration.
func Default() Config {
	formd := db.DefaultConfig()
	adv := db.DefaultConfig()
	return Config{
		FormD:      formd,
		ADV:        adv,
		IssueStore: StoreADV,
		Detect: DetectConfig{
			GracePeriodDays:   60,
			AmendmentDeadline: domain.MonthDay{Month: 4, Day: 1},
			LookbackMonths:    6,
			AUMYears:          []int{2025, 2024, 2023},
			Enabled:           append([]domain.DiscrepancyType(nil), domain.DiscrepancyTypes...),
			FanOut:            16,
			RegisterCheck:     true,
			AdminUmbrellas:    append([]string(nil), DefaultAdminUmbrellas...),
		},
		Fetch: FetchConfig{
			PageSize:       1000,
			RecordCeiling:  100000,
			MatchCeiling:   200000,
			AdviserCeiling: 50000,
		},
		Materialize: MaterializeConfig{BatchSize: 500},
		Log:         logging.DefaultOptions(),
	}
}

// IssueDB returns the connection settings of the store holding issues.
func (c Config) IssueDB() db.Config {
	if c.IssueStore == StoreADV {
		return c.ADV
	}
	return c.FormD
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	for name, store := range map[string]db.Config{"formd": c.FormD, "adv": c.ADV} {
		if strings.TrimSpace(store.URL) == "" && strings.TrimSpace(store.Host) == "" {
			errs = append(errs, fmt.Errorf("%s: url or host is required", name))
		}
	}
	if c.IssueStore != StoreFormD && c.IssueStore != StoreADV {
		errs = append(errs, fmt.Errorf("issues.store must be %q or %q, got %q", StoreFormD, StoreADV, c.IssueStore))
	}

	d := c.Detect
	if d.GracePeriodDays < 0 {
		errs = append(errs, errors.New("detect.grace_period_days must not be negative"))
	}
	if d.LookbackMonths <= 0 {
		errs = append(errs, errors.New("detect.lookback_months must be positive"))
	}
	if len(d.AUMYears) == 0 {
		errs = append(errs, errors.New("detect.aum_years must list at least one year"))
	}
	for i := 1; i < len(d.AUMYears); i++ {
		if d.AUMYears[i] >= d.AUMYears[i-1] {
			errs = append(errs, errors.New("detect.aum_years must be strictly newest first"))
			break
		}
	}
	if len(d.Enabled) == 0 {
		errs = append(errs, errors.New("detect.enabled must name at least one detector"))
	}
	seen := map[domain.DiscrepancyType]bool{}
	for _, t := range d.Enabled {
		if seen[t] {
			errs = append(errs, fmt.Errorf("detect.enabled lists %s twice", t))
		}
		seen[t] = true
	}
	if d.FanOut < 1 || d.FanOut > 256 {
		errs = append(errs, fmt.Errorf("detect.fan_out must be between 1 and 256, got %d", d.FanOut))
	}

	f := c.Fetch
	if f.PageSize <= 0 {
		errs = append(errs, errors.New("fetch.page_size must be positive"))
	}
	for name, ceiling := range map[string]int{
		"fetch.record_ceiling":  f.RecordCeiling,
		"fetch.match_ceiling":   f.MatchCeiling,
		"fetch.adviser_ceiling": f.AdviserCeiling,
	} {
		if ceiling <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	if c.Materialize.BatchSize <= 0 || c.Materialize.BatchSize > 5000 {
		errs = append(errs, fmt.Errorf("materialize.batch_size must be between 1 and 5000, got %d", c.Materialize.BatchSize))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
