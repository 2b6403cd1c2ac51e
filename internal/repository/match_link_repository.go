package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/formrecon/internal/domain"
)

type matchLinkRepository struct {
	pool *pgxpool.Pool
}

// NewMatchLinkRepository wires a repository over cross_reference_matches.
func NewMatchLinkRepository(pool *pgxpool.Pool) MatchLinkRepository {
	return &matchLinkRepository{pool: pool}
}

func (r *matchLinkRepository) ListPage(ctx context.Context, offset, limit int) ([]domain.MatchLink, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("match link repository not initialized")
	}
	if limit <= 0 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, formd_accession, adv_fund_id, adviser_entity_crd,
		        adviser_entity_legal_name, adv_fund_name, formd_entity_name,
		        formd_filing_date::text, match_score::float8
		 FROM cross_reference_matches
		 ORDER BY id
		 LIMIT $1 OFFSET $2`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list match links: %w", err)
	}
	defer rows.Close()

	links := []domain.MatchLink{}
	for rows.Next() {
		var (
			link       domain.MatchLink
			fundID     pgtype.Text
			adviserID  pgtype.Text
			legalName  pgtype.Text
			fundName   pgtype.Text
			entityName pgtype.Text
			filingDate pgtype.Text
			score      pgtype.Float8
		)
		if err := rows.Scan(
			&link.ID,
			&link.Accession,
			&fundID,
			&adviserID,
			&legalName,
			&fundName,
			&entityName,
			&filingDate,
			&score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan match link: %w", err)
		}

		link.FundID = fundID.String
		link.AdviserID = adviserID.String
		link.AdviserLegalName = legalName.String
		link.FundName = fundName.String
		link.EntityName = entityName.String
		link.FilingDate = domain.ParseFilingDate(filingDate.String)
		if score.Valid {
			link.Score = score.Float64
		}
		links = append(links, link)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate match links: %w", err)
	}
	return links, nil
}
