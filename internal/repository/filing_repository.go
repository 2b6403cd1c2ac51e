package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rpattn/formrecon/internal/domain"
)

const filingColumns = `accessionnumber, cik, entityname, filing_date::text,
	totalofferingamount::text, federalexemptions_items_list, investmentfundtype,
	related_names, related_roles`

type filingRepository struct {
	pool *pgxpool.Pool
}

// NewFilingRepository wires a repository over form_d_filings.
func NewFilingRepository(pool *pgxpool.Pool) FilingRepository {
	return &filingRepository{pool: pool}
}

func (r *filingRepository) ListPage(ctx context.Context, query FilingQuery) ([]domain.FilingRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("filing repository not initialized")
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 1000
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+filingColumns+`
		 FROM form_d_filings
		 WHERE accessionnumber > $1
		   AND ($3::text IS NULL
		        OR filing_date::text !~ '^[0-9]{4}-[0-9]{2}-[0-9]{2}'
		        OR left(filing_date::text, 10) >= $3::text)
		 ORDER BY accessionnumber
		 LIMIT $2`,
		query.AfterAccession,
		limit,
		sinceParam(query.Since),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list filings: %w", err)
	}
	return collectFilings(rows)
}

func (r *filingRepository) ListByAccessions(ctx context.Context, accessions []string) ([]domain.FilingRecord, error) {
	if len(accessions) == 0 {
		return []domain.FilingRecord{}, nil
	}
	if r.pool == nil {
		return nil, fmt.Errorf("filing repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+filingColumns+`
		 FROM form_d_filings
		 WHERE accessionnumber = ANY($1)
		 ORDER BY accessionnumber`,
		accessions,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get filings by accession: %w", err)
	}
	return collectFilings(rows)
}

func collectFilings(rows pgx.Rows) ([]domain.FilingRecord, error) {
	defer rows.Close()

	filings := []domain.FilingRecord{}
	for rows.Next() {
		var (
			accession  string
			cik        pgtype.Text
			entityName pgtype.Text
			filingDate pgtype.Text
			amount     pgtype.Text
			exemptions pgtype.Text
			fundType   pgtype.Text
			names      pgtype.Text
			roles      pgtype.Text
		)
		if err := rows.Scan(&accession, &cik, &entityName, &filingDate, &amount, &exemptions, &fundType, &names, &roles); err != nil {
			return nil, fmt.Errorf("failed to scan filing: %w", err)
		}

		filing := domain.FilingRecord{
			Accession:      accession,
			EntityName:     entityName.String,
			FilerID:        cik.String,
			FilingDate:     domain.ParseFilingDate(filingDate.String),
			ExemptionCodes: exemptions.String,
			FundType:       fundType.String,
			RelatedParties: domain.ParseRelatedParties(names.String, roles.String),
		}
		filing.OfferingAmount = parseAmount(amount)
		filings = append(filings, filing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate filings: %w", err)
	}
	return filings, nil
}

// sinceParam renders the lower date bound as an ISO day, or NULL when unset.
func sinceParam(since time.Time) pgtype.Text {
	if since.IsZero() {
		return pgtype.Text{}
	}
	return pgtype.Text{String: since.UTC().Format("2006-01-02"), Valid: true}
}

// parseAmount reads a numeric column selected as text. Values that do not
// parse are treated as absent.
func parseAmount(value pgtype.Text) *decimal.Decimal {
	if !value.Valid || value.String == "" {
		return nil
	}
	d, err := decimal.NewFromString(value.String)
	if err != nil {
		return nil
	}
	return &d
}
