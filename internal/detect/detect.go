// Package detect holds the six discrepancy detectors. Each detector builds
// its own cross-reference index, reads nothing but the index and targeted
// lookups, and returns its issues in a deterministic order.
package detect

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/identity"
	"github.com/rpattn/formrecon/internal/lookup"
	"github.com/rpattn/formrecon/internal/repository"
	"github.com/rpattn/formrecon/internal/xref"
)

// MaxSamples caps the evidence rows kept in issue metadata.
const MaxSamples = 5

// Report is the outcome of one detector run.
type Report struct {
	Issues []domain.ComplianceIssue
	// Examined counts the entities the detector evaluated.
	Examined int
	// Skipped counts entities whose supplemental lookup failed.
	Skipped int
	// Truncated names the index scans that stopped at their row ceiling.
	Truncated []string
}

// Detector finds one type of discrepancy.
type Detector interface {
	Type() domain.DiscrepancyType
	Detect(ctx context.Context) (Report, error)
}

// Sources are the read paths available to detectors.
type Sources struct {
	Builder  *xref.Builder
	Filings  repository.FilingRepository
	Advisers repository.AdviserRepository
	Funds    repository.FundRepository
}

// Options tune detector heuristics.
type Options struct {
	GracePeriodDays   int
	AmendmentDeadline domain.MonthDay
	AUMYears          []int
	FanOut            int
	RegisterCheck     bool
	AdminUmbrellas    []string
	Now               func() time.Time
	Logger            *zap.Logger
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		GracePeriodDays:   60,
		AmendmentDeadline: domain.MonthDay{Month: time.April, Day: 1},
		AUMYears:          []int{2025, 2024, 2023},
		FanOut:            lookup.DefaultFanOut,
		RegisterCheck:     true,
		Now:               time.Now,
		Logger:            zap.NewNop(),
	}
}

func (o Options) normalized() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.FanOut <= 0 {
		o.FanOut = lookup.DefaultFanOut
	}
	return o
}

// New returns the detector for t.
func New(t domain.DiscrepancyType, src Sources, opts Options) (Detector, error) {
	opts = opts.normalized()
	base := base{src: src, opts: opts, logger: opts.Logger.With(zap.String("detector", string(t)))}
	switch t {
	case domain.DiscrepancyNeedsInitialADV:
		return &unregisteredDetector{base}, nil
	case domain.DiscrepancyOverdueAmendment:
		return &overdueDetector{base}, nil
	case domain.DiscrepancyVCExemption:
		return &exemptionDetector{base}, nil
	case domain.DiscrepancyFundTypeMismatch:
		return &typeMismatchDetector{base}, nil
	case domain.DiscrepancyMissingFundInADV:
		return &missingFundDetector{base}, nil
	case domain.DiscrepancyExemptionMismatch:
		return &exemptionStatusDetector{base}, nil
	default:
		return nil, fmt.Errorf("no detector for %q", t)
	}
}

// NewSet returns the detectors for types, in the given order.
func NewSet(types []domain.DiscrepancyType, src Sources, opts Options) ([]Detector, error) {
	detectors := make([]Detector, 0, len(types))
	for _, t := range types {
		d, err := New(t, src, opts)
		if err != nil {
			return nil, err
		}
		detectors = append(detectors, d)
	}
	return detectors, nil
}

type base struct {
	src    Sources
	opts   Options
	logger *zap.Logger
}

func (b base) now() time.Time { return b.opts.Now().UTC() }

// buildIndex builds the detector's index and warns about scans that stopped
// at their row ceiling.
func (b base) buildIndex(ctx context.Context, views xref.View) (*xref.Index, error) {
	index, err := b.src.Builder.Build(ctx, views)
	if err != nil {
		return nil, err
	}
	if stats := index.Stats(); len(stats.Truncated) > 0 {
		b.logger.Warn("index scan reached its row ceiling",
			zap.Strings("scans", stats.Truncated),
			zap.Int("filings", stats.Filings),
			zap.Int("recent_filings", stats.Recent),
			zap.Int("links", stats.Links),
		)
	}
	return index, nil
}

func (b base) newIssue(t domain.DiscrepancyType, severity domain.Severity, description string) domain.ComplianceIssue {
	return domain.NewComplianceIssue(t, severity, description, b.now())
}

// sortIssues orders issues by the given key, breaking ties on description.
func sortIssues(issues []domain.ComplianceIssue, key func(domain.ComplianceIssue) string) {
	sort.SliceStable(issues, func(i, j int) bool {
		ki, kj := key(issues[i]), key(issues[j])
		if ki != kj {
			return ki < kj
		}
		return issues[i].Description < issues[j].Description
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// umbrellaKeys canonicalises the administrator umbrella names.
func umbrellaKeys(names []string) map[string]bool {
	keys := make(map[string]bool, len(names))
	for _, n := range names {
		if k := identity.Key(n); k != "" {
			keys[k] = true
		}
	}
	return keys
}

func dateString(d domain.FilingDate) any {
	if !d.Valid() {
		return nil
	}
	return d.String()
}

func lowerTrim(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
