// Package materialize replaces the stored issues of a discrepancy type with
// a freshly computed set.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/repository"
)

// DefaultBatchSize is the number of issues written per insert batch.
const DefaultBatchSize = 500

// ErrInsert wraps every failed insert batch.
var ErrInsert = errors.New("failed to insert issues")

// Result summarises one Replace call.
type Result struct {
	Type     domain.DiscrepancyType
	Cleared  int64
	Inserted int
	Batches  int
	// ClearErr is set when the prior issues could not be deleted. The new
	// issues are still written.
	ClearErr error
	Duration time.Duration
}

// Materializer writes issue sets through an IssueRepository.
type Materializer struct {
	repo      repository.IssueRepository
	batchSize int
	logger    *zap.Logger
}

// Option customises a Materializer.
type Option func(*Materializer)

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(size int) Option {
	return func(m *Materializer) {
		if size > 0 {
			m.batchSize = size
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Materializer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New wires a Materializer.
func New(repo repository.IssueRepository, opts ...Option) *Materializer {
	m := &Materializer{repo: repo, batchSize: DefaultBatchSize, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Replace deletes every stored issue of type t and inserts issues in
// batches. A failed delete is logged and reported in the result; a failed
// insert stops the call and is returned wrapped in ErrInsert. Batches
// written before the failure stay stored.
func (m *Materializer) Replace(ctx context.Context, t domain.DiscrepancyType, issues []domain.ComplianceIssue) (Result, error) {
	start := time.Now()
	result := Result{Type: t}
	logger := m.logger.With(zap.String("discrepancy_type", string(t)))

	for i, issue := range issues {
		if issue.Type != t {
			return result, fmt.Errorf("%w: issue %d has type %s", ErrInsert, i, issue.Type)
		}
	}

	cleared, err := m.repo.DeleteByType(ctx, t)
	if err != nil {
		result.ClearErr = err
		logger.Warn("failed to clear previous issues", zap.Error(err))
	} else {
		result.Cleared = cleared
		logger.Debug("cleared previous issues", zap.Int64("count", cleared))
	}

	for offset := 0; offset < len(issues); offset += m.batchSize {
		if err := ctx.Err(); err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("%w: %w", ErrInsert, err)
		}
		end := min(offset+m.batchSize, len(issues))
		n, err := m.repo.InsertBatch(ctx, t, issues[offset:end])
		if err != nil {
			result.Duration = time.Since(start)
			logger.Error("failed to insert issue batch",
				zap.Int("offset", offset),
				zap.Int("size", end-offset),
				zap.Error(err),
			)
			return result, fmt.Errorf("%w: batch at offset %d: %w", ErrInsert, offset, err)
		}
		result.Inserted += n
		result.Batches++
	}

	result.Duration = time.Since(start)
	logger.Info("issues materialized",
		zap.Int64("cleared", result.Cleared),
		zap.Int("inserted", result.Inserted),
		zap.Int("batches", result.Batches),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}
