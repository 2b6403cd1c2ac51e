package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/rpattn/formrecon/internal/db"
	"github.com/rpattn/formrecon/internal/domain"
)

type issueRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewIssueRepository wires a repository over compliance_issues in whichever
// store holds it.
func NewIssueRepository(pool *pgxpool.Pool, logger *zap.Logger) IssueRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &issueRepository{pool: pool, logger: logger}
}

func (r *issueRepository) DeleteByType(ctx context.Context, discrepancyType domain.DiscrepancyType) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("issue repository not initialized")
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM compliance_issues WHERE discrepancy_type = $1`, string(discrepancyType))
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s issues: %w", discrepancyType, err)
	}
	return tag.RowsAffected(), nil
}

func (r *issueRepository) InsertBatch(ctx context.Context, discrepancyType domain.DiscrepancyType, batch []domain.ComplianceIssue) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	if r.pool == nil {
		return 0, fmt.Errorf("issue repository not initialized")
	}

	queued := &pgx.Batch{}
	for _, issue := range batch {
		if issue.Type != discrepancyType {
			return 0, fmt.Errorf("issue %s has type %s, expected %s", issue.ID, issue.Type, discrepancyType)
		}
		metadata, err := issue.MetadataJSON()
		if err != nil {
			return 0, fmt.Errorf("failed to marshal metadata for issue %s: %w", issue.ID, err)
		}
		queued.Queue(
			`INSERT INTO compliance_issues
			   (id, discrepancy_type, severity, description, adviser_crd, form_d_cik,
			    formd_accession, fund_reference_id, metadata, detected_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10)`,
			issue.ID,
			string(issue.Type),
			string(issue.Severity),
			issue.Description,
			issue.AdviserID,
			issue.FilerID,
			issue.Accession,
			issue.FundReferenceID,
			string(metadata),
			issue.DetectedAt,
		)
	}

	err := db.WithTx(ctx, r.pool, r.logger, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, queued)
		for i := 0; i < queued.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to insert issue %d of batch: %w", i, err)
			}
		}
		return results.Close()
	})
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s issues: %w", discrepancyType, err)
	}
	return len(batch), nil
}

func (r *issueRepository) ListByType(ctx context.Context, discrepancyType domain.DiscrepancyType) ([]domain.ComplianceIssue, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("issue repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT id, discrepancy_type, severity, description, adviser_crd, form_d_cik,
		        formd_accession, fund_reference_id, metadata, detected_at
		 FROM compliance_issues
		 WHERE discrepancy_type = $1
		 ORDER BY detected_at, id`,
		string(discrepancyType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s issues: %w", discrepancyType, err)
	}
	defer rows.Close()

	issues := []domain.ComplianceIssue{}
	for rows.Next() {
		var (
			id              uuid.UUID
			issueType       string
			severity        string
			description     pgtype.Text
			adviserID       pgtype.Text
			filerID         pgtype.Text
			accession       pgtype.Text
			fundReferenceID pgtype.Text
			metadata        []byte
			detectedAt      pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &issueType, &severity, &description, &adviserID, &filerID,
			&accession, &fundReferenceID, &metadata, &detectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan issue: %w", err)
		}

		issue := domain.ComplianceIssue{
			ID:              id,
			Type:            domain.DiscrepancyType(issueType),
			Severity:        domain.Severity(severity),
			Description:     description.String,
			AdviserID:       textPtr(adviserID),
			FilerID:         textPtr(filerID),
			Accession:       textPtr(accession),
			FundReferenceID: textPtr(fundReferenceID),
			Metadata:        domain.Metadata{},
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &issue.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode metadata for issue %s: %w", id, err)
			}
		}
		if detectedAt.Valid {
			issue.DetectedAt = detectedAt.Time
		}
		issues = append(issues, issue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate issues: %w", err)
	}
	return issues, nil
}

func textPtr(value pgtype.Text) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}
