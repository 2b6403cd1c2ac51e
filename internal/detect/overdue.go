package detect

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/lookup"
	"github.com/rpattn/formrecon/internal/xref"
)

type recentFiling struct {
	Accession  string `json:"accession"`
	EntityName string `json:"entity_name"`
	FilingDate string `json:"filing_date"`
}

// overdueDetector flags reconciled advisers whose latest AUM figure is more
// than one year behind the current year.
type overdueDetector struct{ base }

func (d *overdueDetector) Type() domain.DiscrepancyType {
	return domain.DiscrepancyOverdueAmendment
}

func (d *overdueDetector) Detect(ctx context.Context) (Report, error) {
	index, err := d.buildIndex(ctx, xref.ViewLinks)
	if err != nil {
		return Report{}, err
	}
	advisers := index.Advisers()
	ids := make([]string, len(advisers))
	for i, a := range advisers {
		ids[i] = a.ID
	}

	years := append([]int(nil), d.opts.AUMYears...)
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	loader := lookup.NewAUMLoader(d.src.Advisers, years)
	outcomes, err := loader.LoadAll(ctx, ids, d.opts.FanOut)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load adviser aum: %w", err)
	}

	currentYear := d.now().Year()
	report := Report{Truncated: index.Stats().Truncated}
	for _, adviser := range advisers {
		report.Examined++
		outcome := outcomes[adviser.ID]
		if outcome.Err != nil {
			report.Skipped++
			d.logger.Warn("aum lookup failed", zap.String("adviser_crd", adviser.ID), zap.Error(outcome.Err))
			continue
		}

		latest, ok := outcome.Value.LatestYear(years)
		if ok && currentYear-latest <= 1 {
			continue
		}
		report.Issues = append(report.Issues, d.issue(adviser, latest, ok, currentYear, years))
	}

	sortIssues(report.Issues, func(i domain.ComplianceIssue) string { return deref(i.AdviserID) })
	d.logger.Info("annual amendments evaluated",
		zap.Int("advisers", report.Examined),
		zap.Int("skipped", report.Skipped),
		zap.Int("issues", len(report.Issues)),
	)
	return report, nil
}

func (d *overdueDetector) issue(adviser xref.AdviserLinks, latest int, hasFigure bool, currentYear int, years []int) domain.ComplianceIssue {
	var description string
	var latestYear any
	if hasFigure {
		latestYear = latest
		description = fmt.Sprintf(
			"Adviser %q last reported assets under management for %d; the %d annual amendment is overdue",
			adviser.LegalName, latest, currentYear-1,
		)
	} else {
		description = fmt.Sprintf(
			"Adviser %q reports no assets under management for any of %v; the annual amendment is overdue",
			adviser.LegalName, years,
		)
	}

	issue := d.newIssue(domain.DiscrepancyOverdueAmendment, domain.SeverityHigh, description)
	issue.AdviserID = domain.OptionalString(adviser.ID)

	links := append([]domain.MatchLink(nil), adviser.Links...)
	sort.SliceStable(links, func(i, j int) bool { return links[j].FilingDate.Before(links[i].FilingDate) })
	recent := make([]recentFiling, 0, min(len(links), MaxSamples))
	for _, l := range links {
		if len(recent) == MaxSamples {
			break
		}
		recent = append(recent, recentFiling{Accession: l.Accession, EntityName: l.EntityName, FilingDate: l.FilingDate.String()})
	}

	issue.Metadata = domain.Metadata{
		"adviser_name":               adviser.LegalName,
		"latest_aum_year":            latestYear,
		"expected_year":              currentYear - 1,
		"years_checked":              years,
		"matched_filing_count":       len(adviser.Links),
		"latest_matched_filing_date": dateString(adviser.Latest),
		"recent_form_d_filings":      recent,
	}
	return issue
}
