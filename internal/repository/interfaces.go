package repository

import (
	"context"
	"time"

	"github.com/rpattn/formrecon/internal/domain"
)

// FilingQuery selects one keyset page of offering notices ordered by
// accession number.
type FilingQuery struct {
	// AfterAccession starts the page after this accession; "" starts at the
	// beginning.
	AfterAccession string
	// Since drops ISO-dated filings before this day. Rows whose date is not
	// ISO formatted are returned and must be filtered by the caller. The zero
	// value means no lower bound.
	Since time.Time
	Limit int
}

// FilingRepository reads offering notices from the Form D store.
type FilingRepository interface {
	ListPage(ctx context.Context, query FilingQuery) ([]domain.FilingRecord, error)
	ListByAccessions(ctx context.Context, accessions []string) ([]domain.FilingRecord, error)
}

// MatchLinkRepository reads precomputed filing-to-fund links.
type MatchLinkRepository interface {
	ListPage(ctx context.Context, offset, limit int) ([]domain.MatchLink, error)
}

// AdviserRepository reads registered advisers from the ADV store.
type AdviserRepository interface {
	ListByExemptionFlag(ctx context.Context, flag domain.ExemptionFlag) ([]domain.AdviserRecord, error)
	// AUMByYear returns the AUM figures for each requested adviser. Advisers
	// without a row are absent from the result.
	AUMByYear(ctx context.Context, adviserIDs []string, years []int) (map[string]domain.AUMByYear, error)
	// ListNamesPage returns id, name and legal name only.
	ListNamesPage(ctx context.Context, offset, limit int) ([]domain.AdviserRecord, error)
}

// FundRepository reads private funds disclosed on registrations.
type FundRepository interface {
	ListByAdviser(ctx context.Context, adviserID string) ([]domain.FundRecord, error)
	ListByIDs(ctx context.Context, fundIDs []string) ([]domain.FundRecord, error)
}

// IssueRepository persists detected compliance issues.
type IssueRepository interface {
	DeleteByType(ctx context.Context, discrepancyType domain.DiscrepancyType) (int64, error)
	// InsertBatch stores one batch atomically and returns the rows written.
	InsertBatch(ctx context.Context, discrepancyType domain.DiscrepancyType, batch []domain.ComplianceIssue) (int, error)
	ListByType(ctx context.Context, discrepancyType domain.DiscrepancyType) ([]domain.ComplianceIssue, error)
}
