// Package engine runs the enabled detectors in order and materializes each
// detector's issues before moving on to the next.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rpattn/formrecon/internal/config"
	"github.com/rpattn/formrecon/internal/detect"
	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/materialize"
	"github.com/rpattn/formrecon/internal/repository"
	"github.com/rpattn/formrecon/internal/xref"
)

// Repositories are the read and write paths the engine needs.
type Repositories struct {
	Filings  repository.FilingRepository
	Links    repository.MatchLinkRepository
	Advisers repository.AdviserRepository
	Funds    repository.FundRepository
	Issues   repository.IssueRepository
}

// DetectorResult records one detector's pass.
type DetectorResult struct {
	Type       domain.DiscrepancyType
	Issues     []domain.ComplianceIssue
	BySeverity map[domain.Severity]int
	Examined   int
	Skipped    int
	Truncated  []string
	Cleared    int64
	Inserted   int
	ClearErr   error
	Err        error
	Duration   time.Duration
}

// Summary is the outcome of a run. Results holds every detector that
// started, including the one that failed.
type Summary struct {
	Started  time.Time
	Finished time.Time
	DryRun   bool
	Results  []DetectorResult
}

// TotalIssues counts issues across all detectors.
func (s Summary) TotalIssues() int {
	total := 0
	for _, r := range s.Results {
		total += len(r.Issues)
	}
	return total
}

// ClearFailures counts detectors whose prior issues could not be deleted.
func (s Summary) ClearFailures() int {
	n := 0
	for _, r := range s.Results {
		if r.ClearErr != nil {
			n++
		}
	}
	return n
}

// Engine is a configured detector pipeline.
type Engine struct {
	detectors    []detect.Detector
	materializer *materialize.Materializer
	dryRun       bool
	now          func() time.Time
	logger       *zap.Logger
}

// Option customises an Engine.
type Option func(*settings)

type settings struct {
	dryRun bool
	now    func() time.Time
	logger *zap.Logger
}

// WithDryRun computes issues without touching the issue store.
func WithDryRun(dryRun bool) Option {
	return func(s *settings) { s.dryRun = dryRun }
}

// WithClock overrides time.Now for detectors and the index builder.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New validates cfg and wires the detectors it enables.
func New(cfg config.Config, repos Repositories, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	s := settings{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&s)
	}

	builder := xref.NewBuilder(repos.Filings, repos.Links, repos.Advisers,
		xref.WithLimits(xref.Limits{
			PageSize:       cfg.Fetch.PageSize,
			RecordCeiling:  cfg.Fetch.RecordCeiling,
			MatchCeiling:   cfg.Fetch.MatchCeiling,
			AdviserCeiling: cfg.Fetch.AdviserCeiling,
		}),
		xref.WithLookbackMonths(cfg.Detect.LookbackMonths),
		xref.WithClock(s.now),
		xref.WithLogger(s.logger.Named("xref")),
	)

	detectors, err := detect.NewSet(cfg.Detect.Enabled, detect.Sources{
		Builder:  builder,
		Filings:  repos.Filings,
		Advisers: repos.Advisers,
		Funds:    repos.Funds,
	}, detect.Options{
		GracePeriodDays:   cfg.Detect.GracePeriodDays,
		AmendmentDeadline: cfg.Detect.AmendmentDeadline,
		AUMYears:          cfg.Detect.AUMYears,
		FanOut:            cfg.Detect.FanOut,
		RegisterCheck:     cfg.Detect.RegisterCheck,
		AdminUmbrellas:    cfg.Detect.AdminUmbrellas,
		Now:               s.now,
		Logger:            s.logger.Named("detect"),
	})
	if err != nil {
		return nil, err
	}

	return &Engine{
		detectors: detectors,
		materializer: materialize.New(repos.Issues,
			materialize.WithBatchSize(cfg.Materialize.BatchSize),
			materialize.WithLogger(s.logger.Named("materialize")),
		),
		dryRun: s.dryRun,
		now:    s.now,
		logger: s.logger,
	}, nil
}

// Run executes every detector in order. The first detection or insert
// failure stops the run; detectors that already finished keep their stored
// results and appear in the summary.
func (e *Engine) Run(ctx context.Context) (Summary, error) {
	summary := Summary{Started: e.now().UTC(), DryRun: e.dryRun}
	e.logger.Info("compliance run started",
		zap.Int("detectors", len(e.detectors)),
		zap.Bool("dry_run", e.dryRun),
	)

	for i, d := range e.detectors {
		result, err := e.runOne(ctx, d)
		summary.Results = append(summary.Results, result)
		if err != nil {
			summary.Finished = e.now().UTC()
			e.logger.Error("compliance run aborted",
				zap.String("detector", string(d.Type())),
				zap.Int("completed", i),
				zap.Error(err),
			)
			return summary, err
		}
	}

	summary.Finished = e.now().UTC()
	e.logger.Info("compliance run finished",
		zap.Int("issues", summary.TotalIssues()),
		zap.Int("clear_failures", summary.ClearFailures()),
		zap.Duration("elapsed", summary.Finished.Sub(summary.Started)),
	)
	return summary, nil
}

func (e *Engine) runOne(ctx context.Context, d detect.Detector) (DetectorResult, error) {
	start := time.Now()
	result := DetectorResult{Type: d.Type(), BySeverity: map[domain.Severity]int{}}
	logger := e.logger.With(zap.String("detector", string(d.Type())))
	logger.Info("detector started")

	report, err := d.Detect(ctx)
	if err != nil {
		result.Err = err
		result.Duration = time.Since(start)
		return result, fmt.Errorf("%s detection failed: %w", d.Type(), err)
	}
	result.Issues = report.Issues
	result.Examined = report.Examined
	result.Skipped = report.Skipped
	result.Truncated = report.Truncated
	for _, issue := range report.Issues {
		result.BySeverity[issue.Severity]++
	}

	if !e.dryRun {
		written, err := e.materializer.Replace(ctx, d.Type(), report.Issues)
		result.Cleared = written.Cleared
		result.Inserted = written.Inserted
		result.ClearErr = written.ClearErr
		if err != nil {
			result.Err = err
			result.Duration = time.Since(start)
			return result, fmt.Errorf("%s materialization failed: %w", d.Type(), err)
		}
	}

	result.Duration = time.Since(start)
	logger.Info("detector finished",
		zap.Int("issues", len(result.Issues)),
		zap.Int("examined", result.Examined),
		zap.Int("skipped", result.Skipped),
		zap.Strings("truncated", result.Truncated),
		zap.Int("inserted", result.Inserted),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}
