package detect

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/identity"
	"github.com/rpattn/formrecon/internal/xref"
)

const (
	// maxAdviserTokens is how many distinctive legal-name tokens are searched for.
	maxAdviserTokens = 3
	// minTokenHits is how many of them a filing must mention.
	minTokenHits = 2
)

// missingFundDetector flags unmatched offering notices that mention a
// reconciled adviser and predate its most recent registration update.
type missingFundDetector struct{ base }

func (d *missingFundDetector) Type() domain.DiscrepancyType {
	return domain.DiscrepancyMissingFundInADV
}

func (d *missingFundDetector) Detect(ctx context.Context) (Report, error) {
	index, err := d.buildIndex(ctx, xref.ViewLinks|xref.ViewFilings)
	if err != nil {
		return Report{}, err
	}

	unmatched := index.Unmatched()
	postings := make(map[string][]int)
	for i, f := range unmatched {
		seen := map[string]bool{}
		for _, tok := range identity.Tokens(f.SearchText()) {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			postings[tok] = append(postings[tok], i)
		}
	}

	now := d.now()
	deadlinePassed := d.opts.AmendmentDeadline.PassedAt(now)
	flagged := map[string]bool{}

	report := Report{Truncated: index.Stats().Truncated}
	for _, adviser := range index.Advisers() {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		report.Examined++
		tokens := identity.DistinctiveTokens(adviser.LegalName, maxAdviserTokens)
		if len(tokens) < minTokenHits {
			continue
		}

		hits := make(map[int]int)
		for _, tok := range tokens {
			for _, i := range postings[tok] {
				hits[i]++
			}
		}

		latestYear := adviser.LatestYear()
		for i, f := range unmatched {
			if hits[i] < minTokenHits || flagged[f.Accession] || !f.FilingDate.Valid() {
				continue
			}
			year := f.FilingDate.Year()
			beforeLatest := adviser.Latest.Valid() && year < latestYear
			beforeDeadline := deadlinePassed && year < now.Year()
			if !beforeLatest && !beforeDeadline {
				continue
			}
			flagged[f.Accession] = true
			report.Issues = append(report.Issues, d.issue(adviser, f, tokens, hits[i]))
		}
	}

	sortIssues(report.Issues, func(i domain.ComplianceIssue) string {
		return deref(i.AdviserID) + "|" + deref(i.Accession)
	})
	d.logger.Info("unlisted funds evaluated",
		zap.Int("advisers", report.Examined),
		zap.Int("unmatched_filings", len(unmatched)),
		zap.Int("issues", len(report.Issues)),
	)
	return report, nil
}

func (d *missingFundDetector) issue(adviser xref.AdviserLinks, filing domain.FilingRecord, tokens []string, hits int) domain.ComplianceIssue {
	description := fmt.Sprintf(
		"Offering %q (%s) appears related to adviser %q but is not listed among its private funds",
		filing.EntityName, filing.FilingDate, adviser.LegalName,
	)
	issue := d.newIssue(domain.DiscrepancyMissingFundInADV, domain.SeverityMedium, description)
	issue.AdviserID = domain.OptionalString(adviser.ID)
	issue.FilerID = domain.OptionalString(filing.FilerID)
	issue.Accession = domain.OptionalString(filing.Accession)

	var amount any
	if filing.OfferingAmount != nil {
		amount = filing.OfferingAmount.String()
	}
	issue.Metadata = domain.Metadata{
		"adviser_name":               adviser.LegalName,
		"entity_name":                filing.EntityName,
		"filing_date":                filing.FilingDate.String(),
		"offering_amount":            amount,
		"matched_tokens":             tokens,
		"token_hits":                 hits,
		"latest_matched_filing_date": dateString(adviser.Latest),
		"amendment_deadline":         d.opts.AmendmentDeadline.String(),
	}
	return issue
}
