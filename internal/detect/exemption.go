package detect

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/lookup"
)

type fundSample struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	ReferenceID string `json:"reference_id,omitempty"`
}

// exemptionDetector flags advisers relying on the venture capital exemption
// that manage funds of another declared type.
type exemptionDetector struct{ base }

func (d *exemptionDetector) Type() domain.DiscrepancyType {
	return domain.DiscrepancyVCExemption
}

type adviserFunds struct {
	funds []domain.FundRecord
	err   error
}

func (d *exemptionDetector) Detect(ctx context.Context) (Report, error) {
	advisers, err := d.src.Advisers.ListByExemptionFlag(ctx, domain.ExemptionVentureCapital)
	if err != nil {
		return Report{}, fmt.Errorf("failed to list exempt advisers: %w", err)
	}

	results := make([]adviserFunds, len(advisers))
	err = lookup.ForEach(ctx, advisers, d.opts.FanOut, func(ctx context.Context, i int, a domain.AdviserRecord) error {
		funds, err := d.src.Funds.ListByAdviser(ctx, a.ID)
		results[i] = adviserFunds{funds: funds, err: err}
		return nil
	})
	if err != nil {
		return Report{}, err
	}

	var report Report
	for i, adviser := range advisers {
		report.Examined++
		if results[i].err != nil {
			report.Skipped++
			d.logger.Warn("fund lookup failed", zap.String("adviser_crd", adviser.ID), zap.Error(results[i].err))
			continue
		}

		funds := results[i].funds
		var violating []domain.FundRecord
		for _, f := range funds {
			if !permittedUnderVCExemption(f.FundType) {
				violating = append(violating, f)
			}
		}
		if len(violating) == 0 {
			continue
		}
		report.Issues = append(report.Issues, d.issue(adviser, len(funds), violating))
	}

	sortIssues(report.Issues, func(i domain.ComplianceIssue) string { return deref(i.AdviserID) })
	d.logger.Info("venture capital exemptions evaluated",
		zap.Int("advisers", report.Examined),
		zap.Int("skipped", report.Skipped),
		zap.Int("issues", len(report.Issues)),
	)
	return report, nil
}

func (d *exemptionDetector) issue(adviser domain.AdviserRecord, total int, violating []domain.FundRecord) domain.ComplianceIssue {
	description := fmt.Sprintf(
		"Adviser %q claims the venture capital exemption but manages %d non-venture fund(s)",
		adviser.DisplayName(), len(violating),
	)
	issue := d.newIssue(domain.DiscrepancyVCExemption, domain.SeverityCritical, description)
	issue.AdviserID = domain.OptionalString(adviser.ID)

	samples := make([]fundSample, 0, min(len(violating), MaxSamples))
	for _, f := range violating {
		if len(samples) == MaxSamples {
			break
		}
		samples = append(samples, fundSample{Name: f.Name, Type: f.FundType, ReferenceID: f.ReferenceID})
	}

	issue.Metadata = domain.Metadata{
		"adviser_name":        adviser.DisplayName(),
		"exemption":           string(domain.ExemptionVentureCapital),
		"total_funds":         total,
		"non_vc_fund_count":   len(violating),
		"sample_non_vc_funds": samples,
	}
	return issue
}
