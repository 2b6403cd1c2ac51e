// Package export writes stored compliance issues to spreadsheets for review.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/repository"
)

// SummarySheet is the name of the workbook's first sheet.
const SummarySheet = "summary"

var issueHeaders = []string{
	"id",
	"severity",
	"description",
	"adviser_crd",
	"form_d_cik",
	"formd_accession",
	"fund_reference_id",
	"detected_at",
	"metadata",
}

var summaryHeaders = []string{"discrepancy_type", "issues", "critical", "high", "medium", "low"}

// Stats describes a finished export.
type Stats struct {
	Issues       map[domain.DiscrepancyType]int
	BytesWritten int64
}

// Total counts exported issues across types.
func (s Stats) Total() int {
	total := 0
	for _, n := range s.Issues {
		total += n
	}
	return total
}

// Service reads stored issues and renders them.
type Service struct {
	issues repository.IssueRepository
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(issues repository.IssueRepository, opts ...Option) *Service {
	service := &Service{issues: issues, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// WriteWorkbook writes an XLSX workbook with a summary sheet followed by one
// sheet per discrepancy type, in the order given. Empty types defaults to
// every type.
func (s *Service) WriteWorkbook(ctx context.Context, w io.Writer, types []domain.DiscrepancyType) (Stats, error) {
	if len(types) == 0 {
		types = domain.DiscrepancyTypes
	}
	stats := Stats{Issues: map[domain.DiscrepancyType]int{}}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("failed to close workbook", zap.Error(err))
		}
	}()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return stats, fmt.Errorf("rename summary sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return stats, fmt.Errorf("create header style: %w", err)
	}
	if err := writeRow(f, SummarySheet, 1, toCells(summaryHeaders)); err != nil {
		return stats, err
	}
	if err := f.SetRowStyle(SummarySheet, 1, 1, bold); err != nil {
		return stats, fmt.Errorf("style summary header: %w", err)
	}

	for i, t := range types {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		issues, err := s.issues.ListByType(ctx, t)
		if err != nil {
			return stats, fmt.Errorf("list %s issues: %w", t, err)
		}
		sortForExport(issues)
		stats.Issues[t] = len(issues)

		sheet := string(t)
		if _, err := f.NewSheet(sheet); err != nil {
			return stats, fmt.Errorf("create sheet %s: %w", sheet, err)
		}
		if err := writeRow(f, sheet, 1, toCells(issueHeaders)); err != nil {
			return stats, err
		}
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return stats, fmt.Errorf("style %s header: %w", sheet, err)
		}
		for r, issue := range issues {
			row, err := issueRow(issue)
			if err != nil {
				return stats, err
			}
			if err := writeRow(f, sheet, r+2, toCells(row)); err != nil {
				return stats, err
			}
		}
		if err := f.SetColWidth(sheet, "C", "C", 80); err != nil {
			return stats, fmt.Errorf("size %s columns: %w", sheet, err)
		}

		counts := severityCounts(issues)
		summary := []any{string(t), len(issues),
			counts[domain.SeverityCritical], counts[domain.SeverityHigh],
			counts[domain.SeverityMedium], counts[domain.SeverityLow],
		}
		if err := writeRow(f, SummarySheet, i+2, summary); err != nil {
			return stats, err
		}
	}
	generated := []any{"generated_at", s.now().UTC().Format(time.RFC3339)}
	if err := writeRow(f, SummarySheet, len(types)+2, generated); err != nil {
		return stats, err
	}
	if err := f.SetColWidth(SummarySheet, "A", "A", 30); err != nil {
		return stats, fmt.Errorf("size summary columns: %w", err)
	}
	f.SetActiveSheet(0)

	counter := &countingWriter{writer: bufio.NewWriterSize(w, 1<<16)}
	if err := f.Write(counter); err != nil {
		return stats, fmt.Errorf("write workbook: %w", err)
	}
	if err := counter.writer.Flush(); err != nil {
		return stats, fmt.Errorf("flush workbook: %w", err)
	}
	stats.BytesWritten = counter.count
	s.logger.Info("workbook exported",
		zap.Int("types", len(types)),
		zap.Int("issues", stats.Total()),
		zap.Int64("bytes", stats.BytesWritten),
	)
	return stats, nil
}

// WriteCSV writes the stored issues of one type as CSV.
func (s *Service) WriteCSV(ctx context.Context, w io.Writer, t domain.DiscrepancyType) (Stats, error) {
	stats := Stats{Issues: map[domain.DiscrepancyType]int{}}
	issues, err := s.issues.ListByType(ctx, t)
	if err != nil {
		return stats, fmt.Errorf("list %s issues: %w", t, err)
	}
	sortForExport(issues)

	buffered := bufio.NewWriter(w)
	counter := &countingWriter{writer: buffered}
	csvWriter := csv.NewWriter(counter)
	if err := csvWriter.Write(issueHeaders); err != nil {
		return stats, fmt.Errorf("write header: %w", err)
	}
	for _, issue := range issues {
		row, err := issueRow(issue)
		if err != nil {
			return stats, err
		}
		if err := csvWriter.Write(row); err != nil {
			return stats, fmt.Errorf("write issue row: %w", err)
		}
	}
	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return stats, fmt.Errorf("flush rows: %w", err)
	}
	if err := buffered.Flush(); err != nil {
		return stats, fmt.Errorf("flush buffered rows: %w", err)
	}

	stats.Issues[t] = len(issues)
	stats.BytesWritten = counter.count
	return stats, nil
}

// WriteFile renders the workbook into a temporary file next to path and
// renames it into place once complete.
func (s *Service) WriteFile(ctx context.Context, path string, types []domain.DiscrepancyType) (Stats, error) {
	if strings.TrimSpace(path) == "" {
		return Stats{}, errors.New("export path is required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Stats{}, fmt.Errorf("ensure export directory: %w", err)
	}
	tempFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return Stats{}, fmt.Errorf("create temp export file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	var stats Stats
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		if len(types) != 1 {
			return Stats{}, fmt.Errorf("csv export needs exactly one discrepancy type, got %d", len(types))
		}
		stats, err = s.WriteCSV(ctx, tempFile, types[0])
	} else {
		stats, err = s.WriteWorkbook(ctx, tempFile, types)
	}
	if err != nil {
		return stats, err
	}
	if err := tempFile.Sync(); err != nil {
		return stats, fmt.Errorf("sync export file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return stats, fmt.Errorf("close export file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return stats, fmt.Errorf("promote export file: %w", err)
	}
	cleanup = false
	return stats, nil
}

func issueRow(issue domain.ComplianceIssue) ([]string, error) {
	metadata, err := issue.MetadataJSON()
	if err != nil {
		return nil, fmt.Errorf("encode metadata for issue %s: %w", issue.ID, err)
	}
	return []string{
		issue.ID.String(),
		string(issue.Severity),
		issue.Description,
		formatValue(issue.AdviserID),
		formatValue(issue.FilerID),
		formatValue(issue.Accession),
		formatValue(issue.FundReferenceID),
		formatValue(issue.DetectedAt),
		string(metadata),
	}, nil
}

// sortForExport orders issues by severity, then description.
func sortForExport(issues []domain.ComplianceIssue) {
	sort.SliceStable(issues, func(i, j int) bool {
		ri, rj := issues[i].Severity.Rank(), issues[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return issues[i].Description < issues[j].Description
	})
}

func severityCounts(issues []domain.ComplianceIssue) map[domain.Severity]int {
	counts := map[domain.Severity]int{}
	for _, issue := range issues {
		counts[issue.Severity]++
	}
	return counts
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("resolve cell for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

type countingWriter struct {
	writer *bufio.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case *string:
		if v == nil {
			return ""
		}
		return *v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float32, float64, int, int32, int64:
		return fmt.Sprintf("%v", v)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
