package detect

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/lookup"
	"github.com/rpattn/formrecon/internal/xref"
)

// linkRecords are the filing and fund behind one match link.
type linkRecords struct {
	filings map[string]lookup.Outcome[domain.FilingRecord]
	funds   map[string]lookup.Outcome[domain.FundRecord]
}

// resolve loads both sides of every link through batched loaders.
func (b base) resolve(ctx context.Context, links []domain.MatchLink) (linkRecords, error) {
	accessions := make([]string, 0, len(links))
	fundIDs := make([]string, 0, len(links))
	for _, l := range links {
		accessions = append(accessions, l.Accession)
		if l.FundID != "" {
			fundIDs = append(fundIDs, l.FundID)
		}
	}

	filingLoader := lookup.NewFilingLoader(b.src.Filings)
	filings, err := filingLoader.LoadAll(ctx, accessions, b.opts.FanOut)
	if err != nil {
		return linkRecords{}, fmt.Errorf("failed to resolve linked filings: %w", err)
	}
	fundLoader := lookup.NewFundLoader(b.src.Funds)
	funds, err := fundLoader.LoadAll(ctx, fundIDs, b.opts.FanOut)
	if err != nil {
		return linkRecords{}, fmt.Errorf("failed to resolve linked funds: %w", err)
	}
	return linkRecords{filings: filings, funds: funds}, nil
}

// pair returns the records behind a link. ok is false when either side is
// missing; failed is true when a lookup errored.
func (r linkRecords) pair(link domain.MatchLink) (filing domain.FilingRecord, fund domain.FundRecord, ok bool, failed error) {
	fo := r.filings[link.Accession]
	if fo.Err != nil {
		return filing, fund, false, fo.Err
	}
	uo, present := r.funds[link.FundID]
	if present && uo.Err != nil {
		return filing, fund, false, uo.Err
	}
	if !fo.Found || !uo.Found {
		return filing, fund, false, nil
	}
	return fo.Value, uo.Value, true, nil
}

// typeMismatchDetector flags links whose two sides declare different kinds
// of fund.
type typeMismatchDetector struct{ base }

func (d *typeMismatchDetector) Type() domain.DiscrepancyType {
	return domain.DiscrepancyFundTypeMismatch
}

func (d *typeMismatchDetector) Detect(ctx context.Context) (Report, error) {
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
		filingType := strings.TrimSpace(filing.FundType)
		fundType := strings.TrimSpace(fund.FundType)
		if filingType == "" || fundType == "" || TypesEquivalent(filingType, fundType) {
			continue
		}
		report.Issues = append(report.Issues, d.issue(link, filing, fund))
	}

	sortIssues(report.Issues, func(i domain.ComplianceIssue) string {
		return deref(i.Accession) + "|" + deref(i.FundReferenceID)
	})
	d.logger.Info("fund types evaluated",
		zap.Int("links", report.Examined),
		zap.Int("skipped", report.Skipped),
		zap.Int("issues", len(report.Issues)),
	)
	return report, nil
}

func (d *typeMismatchDetector) issue(link domain.MatchLink, filing domain.FilingRecord, fund domain.FundRecord) domain.ComplianceIssue {
	name := fund.Name
	if name == "" {
		name = link.FundName
	}
	description := fmt.Sprintf(
		"Fund type mismatch for %q: ADV reports %q, Form D reports %q",
		name, fund.FundType, filing.FundType,
	)
	issue := d.newIssue(domain.DiscrepancyFundTypeMismatch, domain.SeverityMedium, description)
	issue.AdviserID = domain.OptionalString(link.AdviserID)
	issue.FilerID = domain.OptionalString(filing.FilerID)
	issue.Accession = domain.OptionalString(link.Accession)
	issue.FundReferenceID = domain.OptionalString(fund.ReferenceID)
	issue.Metadata = domain.Metadata{
		"fund_name":       name,
		"adv_fund_type":   fund.FundType,
		"formd_fund_type": filing.FundType,
		"adv_category":    TypeCategory(fund.FundType),
		"formd_category":  TypeCategory(filing.FundType),
		"match_score":     link.Score,
	}
	return issue
}
