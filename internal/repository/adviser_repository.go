package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/formrecon/internal/domain"
)

// truthyText mirrors domain.ParseFlag for flags stored as either boolean or text.
const truthyText = `('true', 't', 'y', 'yes', '1', 'x')`

type adviserRepository struct {
	pool *pgxpool.Pool
}

// NewAdviserRepository wires a repository over advisers_enriched.
func NewAdviserRepository(pool *pgxpool.Pool) AdviserRepository {
	return &adviserRepository{pool: pool}
}

func (r *adviserRepository) ListByExemptionFlag(ctx context.Context, flag domain.ExemptionFlag) ([]domain.AdviserRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("adviser repository not initialized")
	}
	if !flag.Valid() {
		return nil, fmt.Errorf("unknown exemption flag %q", flag)
	}

	rows, err := r.pool.Query(
		ctx,
		fmt.Sprintf(
			`SELECT crd::text, adviser_name, adviser_entity_legal_name,
			        exemption_2b1::text, exemption_2b2::text
			 FROM advisers_enriched
			 WHERE lower(trim(%s::text)) IN %s
			 ORDER BY crd`,
			string(flag), truthyText,
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list advisers by %s: %w", flag, err)
	}
	defer rows.Close()

	advisers := []domain.AdviserRecord{}
	for rows.Next() {
		var (
			id        string
			name      pgtype.Text
			legalName pgtype.Text
			vc        pgtype.Text
			pf        pgtype.Text
		)
		if err := rows.Scan(&id, &name, &legalName, &vc, &pf); err != nil {
			return nil, fmt.Errorf("failed to scan adviser: %w", err)
		}
		advisers = append(advisers, domain.AdviserRecord{
			ID:           id,
			Name:         name.String,
			LegalName:    legalName.String,
			Exemption2B1: domain.ParseFlag(vc.String),
			Exemption2B2: domain.ParseFlag(pf.String),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate advisers: %w", err)
	}
	return advisers, nil
}

func (r *adviserRepository) AUMByYear(ctx context.Context, adviserIDs []string, years []int) (map[string]domain.AUMByYear, error) {
	result := make(map[string]domain.AUMByYear, len(adviserIDs))
	if len(adviserIDs) == 0 || len(years) == 0 {
		return result, nil
	}
	if r.pool == nil {
		return nil, fmt.Errorf("adviser repository not initialized")
	}

	columns, err := aumColumns(years)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT crd::text, `+strings.Join(columns, ", ")+`
		 FROM advisers_enriched
		 WHERE crd::text = ANY($1)`,
		adviserIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get adviser aum: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		values := make([]pgtype.Text, len(years))
		dest := make([]any, 0, len(years)+1)
		dest = append(dest, &id)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan adviser aum: %w", err)
		}

		aum := make(domain.AUMByYear, len(years))
		for i, year := range years {
			aum[year] = parseAmount(values[i])
		}
		result[id] = aum
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate adviser aum: %w", err)
	}
	return result, nil
}

// aumColumns maps filing years onto the aum_<year> columns.
func aumColumns(years []int) ([]string, error) {
	columns := make([]string, len(years))
	for i, year := range years {
		if year < 1990 || year > 2100 {
			return nil, fmt.Errorf("aum year %d out of range", year)
		}
		columns[i] = fmt.Sprintf("aum_%d::text", year)
	}
	return columns, nil
}

func (r *adviserRepository) ListNamesPage(ctx context.Context, offset, limit int) ([]domain.AdviserRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("adviser repository not initialized")
	}
	if limit <= 0 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT crd::text, adviser_name, adviser_entity_legal_name
		 FROM advisers_enriched
		 ORDER BY crd
		 LIMIT $1 OFFSET $2`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list adviser names: %w", err)
	}
	defer rows.Close()

	advisers := []domain.AdviserRecord{}
	for rows.Next() {
		var (
			id        string
			name      pgtype.Text
			legalName pgtype.Text
		)
		if err := rows.Scan(&id, &name, &legalName); err != nil {
			return nil, fmt.Errorf("failed to scan adviser name: %w", err)
		}
		advisers = append(advisers, domain.AdviserRecord{ID: id, Name: name.String, LegalName: legalName.String})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate adviser names: %w", err)
	}
	return advisers, nil
}
