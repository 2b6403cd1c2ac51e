package detect

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/xref"
)

const maxFirmCandidates = 10

// sampleFund is one filing shown as evidence on a manager issue.
type sampleFund struct {
	Accession  string `json:"accession"`
	EntityName string `json:"entity_name"`
	FilingDate string `json:"filing_date"`
}

// unregisteredDetector flags managers whose recent offerings are all
// unreconciled and older than the grace period.
type unregisteredDetector struct{ base }

func (d *unregisteredDetector) Type() domain.DiscrepancyType {
	return domain.DiscrepancyNeedsInitialADV
}

func (d *unregisteredDetector) Detect(ctx context.Context) (Report, error) {
	views := xref.ViewManagers
	if d.opts.RegisterCheck {
		views |= xref.ViewRegistered
	}
	index, err := d.buildIndex(ctx, views)
	if err != nil {
		return Report{}, err
	}

	now := d.now()
	umbrellas := umbrellaKeys(d.opts.AdminUmbrellas)
	registered := index.RegisteredNames()

	report := Report{Truncated: index.Stats().Truncated}
	suppressed := 0
	for _, group := range index.Managers() {
		report.Examined++
		if umbrellas[group.Key] || !allUnmatched(index, group) || !group.Earliest.Valid() {
			continue
		}
		days := group.Earliest.DaysUntil(now)
		if days <= d.opts.GracePeriodDays {
			continue
		}
		if registered != nil {
			if match, candidate, ok := registered.FirstMatch(group.Candidates); ok {
				suppressed++
				d.logger.Debug("manager already registered",
					zap.String("manager", group.Display),
					zap.String("candidate", candidate.Name),
					zap.String("adviser_crd", match.ID),
					zap.Float64("score", match.Score),
				)
				continue
			}
		}
		report.Issues = append(report.Issues, d.issue(group, days))
	}

	sortIssues(report.Issues, func(i domain.ComplianceIssue) string {
		return fmt.Sprint(i.Metadata["manager_key"])
	})
	d.logger.Info("unregistered managers evaluated",
		zap.Int("managers", report.Examined),
		zap.Int("suppressed_registered", suppressed),
		zap.Int("issues", len(report.Issues)),
	)
	return report, nil
}

func allUnmatched(index *xref.Index, group xref.ManagerGroup) bool {
	for _, f := range group.Filings {
		if index.Matched(f.Accession) {
			return false
		}
	}
	return true
}

// managerSeverity escalates with the time since the first offering.
func managerSeverity(days int) domain.Severity {
	switch {
	case days > 180:
		return domain.SeverityCritical
	case days > 120:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}

func (d *unregisteredDetector) issue(group xref.ManagerGroup, days int) domain.ComplianceIssue {
	first := group.Filings[0]
	description := fmt.Sprintf(
		"Manager %q filed %d Form D offering(s) since %s but has no Form ADV registration (%d days elapsed)",
		group.Display, len(group.Filings), group.Earliest, days,
	)
	issue := d.newIssue(domain.DiscrepancyNeedsInitialADV, managerSeverity(days), description)
	issue.FilerID = domain.OptionalString(first.FilerID)
	issue.Accession = domain.OptionalString(first.Accession)

	samples := make([]sampleFund, 0, min(len(group.Filings), MaxSamples))
	for _, f := range group.Filings {
		if len(samples) == MaxSamples {
			break
		}
		samples = append(samples, sampleFund{Accession: f.Accession, EntityName: f.EntityName, FilingDate: f.FilingDate.String()})
	}
	candidates := make([]string, 0, min(len(group.Candidates), maxFirmCandidates))
	for _, c := range group.Candidates {
		if len(candidates) == maxFirmCandidates {
			break
		}
		candidates = append(candidates, c.Name)
	}

	issue.Metadata = domain.Metadata{
		"manager_key":             group.Key,
		"manager_name":            group.Display,
		"name_source":             group.Source,
		"fund_count":              len(group.Filings),
		"earliest_filing_date":    dateString(group.Earliest),
		"latest_filing_date":      dateString(group.Latest),
		"total_offering_amount":   group.TotalOffering.String(),
		"days_since_first_filing": days,
		"grace_period_days":       d.opts.GracePeriodDays,
		"sample_funds":            samples,
		"firm_candidates":         candidates,
	}
	return issue
}
