package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/formrecon/internal/domain"
)

const fundColumns = `fund_id::text, reference_id::text, adviser_entity_crd::text, fund_name,
	fund_type, exclusion_3c1::text, exclusion_3c7::text, form_d_file_number`

type fundRepository struct {
	pool *pgxpool.Pool
}

// NewFundRepository wires a repository over funds_enriched.
func NewFundRepository(pool *pgxpool.Pool) FundRepository {
	return &fundRepository{pool: pool}
}

func (r *fundRepository) ListByAdviser(ctx context.Context, adviserID string) ([]domain.FundRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("fund repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+fundColumns+`
		 FROM funds_enriched
		 WHERE adviser_entity_crd::text = $1
		 ORDER BY fund_id`,
		adviserID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list funds for adviser %s: %w", adviserID, err)
	}
	return collectFunds(rows)
}

func (r *fundRepository) ListByIDs(ctx context.Context, fundIDs []string) ([]domain.FundRecord, error) {
	if len(fundIDs) == 0 {
		return []domain.FundRecord{}, nil
	}
	if r.pool == nil {
		return nil, fmt.Errorf("fund repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT `+fundColumns+`
		 FROM funds_enriched
		 WHERE fund_id::text = ANY($1)
		 ORDER BY fund_id`,
		fundIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get funds by id: %w", err)
	}
	return collectFunds(rows)
}

func collectFunds(rows pgx.Rows) ([]domain.FundRecord, error) {
	defer rows.Close()

	funds := []domain.FundRecord{}
	for rows.Next() {
		var (
			id          string
			referenceID pgtype.Text
			adviserID   pgtype.Text
			name        pgtype.Text
			fundType    pgtype.Text
			c1          pgtype.Text
			c7          pgtype.Text
			fileNumber  pgtype.Text
		)
		if err := rows.Scan(&id, &referenceID, &adviserID, &name, &fundType, &c1, &c7, &fileNumber); err != nil {
			return nil, fmt.Errorf("failed to scan fund: %w", err)
		}

		fund := domain.FundRecord{
			ID:           id,
			ReferenceID:  referenceID.String,
			AdviserID:    adviserID.String,
			Name:         name.String,
			FundType:     fundType.String,
			Exclusion3C1: domain.ParseFlag(c1.String),
			Exclusion3C7: domain.ParseFlag(c7.String),
		}
		if fileNumber.Valid {
			fund.FormDFileNumber = domain.OptionalString(fileNumber.String)
		}
		funds = append(funds, fund)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate funds: %w", err)
	}
	return funds, nil
}
