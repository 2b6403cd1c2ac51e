package detect

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/xref"
)

// exemptionStatusDetector flags links where the fund's 3(c)(1)/3(c)(7)
// flags disagree with the exemptions claimed on the offering notice.
type exemptionStatusDetector struct{ base }

func (d *exemptionStatusDetector) Type() domain.DiscrepancyType {
	return domain.DiscrepancyExemptionMismatch
}

func (d *exemptionStatusDetector) Detect(ctx context.Context) (Report, error) {
	index, err := d.buildIndex(ctx, xref.ViewLinks)
	if err != nil {
		return Report{}, err
	}
	links := index.Links()
	records, err := d.resolve(ctx, links)
	if err != nil {
		return Report{}, err
	}

	report := Report{Truncated: index.Stats().Truncated}
	for _, link := range links {
		report.Examined++
		filing, fund, ok, lookupErr := records.pair(link)
		if lookupErr != nil {
			report.Skipped++
			d.logger.Warn("link lookup failed", zap.String("accession", link.Accession), zap.Error(lookupErr))
			continue
		}
		if !ok {
			continue
		}

		registered := Exclusions{C1: fund.Exclusion3C1.IsTrue(), C7: fund.Exclusion3C7.IsTrue()}
		claimed := ParseExclusions(filing.ExemptionCodes)
		if registered == claimed {
			continue
		}
		report.Issues = append(report.Issues, d.issue(link, filing, fund, registered, claimed))
	}

	sortIssues(report.Issues, func(i domain.ComplianceIssue) string {
		return deref(i.Accession) + "|" + deref(i.FundReferenceID)
	})
	d.logger.Info("exemption claims evaluated",
		zap.Int("links", report.Examined),
		zap.Int("skipped", report.Skipped),
		zap.Int("issues", len(report.Issues)),
	)
	return report, nil
}

func (d *exemptionStatusDetector) issue(link domain.MatchLink, filing domain.FilingRecord, fund domain.FundRecord, registered, claimed Exclusions) domain.ComplianceIssue {
	name := fund.Name
	if name == "" {
		name = link.FundName
	}
	description := fmt.Sprintf(
		"Exemption mismatch for %q: ADV 3(c)(1)=%t 3(c)(7)=%t, Form D 3(c)(1)=%t 3(c)(7)=%t",
		name, registered.C1, registered.C7, claimed.C1, claimed.C7,
	)
	issue := d.newIssue(domain.DiscrepancyExemptionMismatch, domain.SeverityHigh, description)
	issue.AdviserID = domain.OptionalString(link.AdviserID)
	issue.FilerID = domain.OptionalString(filing.FilerID)
	issue.Accession = domain.OptionalString(link.Accession)
	issue.FundReferenceID = domain.OptionalString(fund.ReferenceID)
	issue.Metadata = domain.Metadata{
		"fund_name":             name,
		"adv_3c1":               registered.C1,
		"adv_3c7":               registered.C7,
		"formd_3c1":             claimed.C1,
		"formd_3c7":             claimed.C7,
		"formd_exemption_codes": filing.ExemptionCodes,
	}
	return issue
}
