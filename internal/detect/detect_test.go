package detect

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpattn/formrecon/internal/domain"
	ts "github.com/rpattn/formrecon/internal/testsupport"
	"github.com/rpattn/formrecon/internal/xref"
)

func sources(store *ts.Store) Sources {
	builder := xref.NewBuilder(store.Filings(), store.Links(), store.Advisers(),
		xref.WithLimits(xref.Limits{PageSize: 2}),
		xref.WithClock(ts.Clock(ts.Now)),
	)
	return Sources{
		Builder:  builder,
		Filings:  store.Filings(),
		Advisers: store.Advisers(),
		Funds:    store.Funds(),
	}
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Now = ts.Clock(ts.Now)
	opts.FanOut = 4
	return opts
}

func run(t *testing.T, typ domain.DiscrepancyType, store *ts.Store, opts Options) Report {
	t.Helper()
	d, err := New(typ, sources(store), opts)
	require.NoError(t, err)
	require.Equal(t, typ, d.Type())
	report, err := d.Detect(context.Background())
	require.NoError(t, err)
	for _, issue := range report.Issues {
		require.Equal(t, typ, issue.Type)
		require.Equal(t, ts.Now, issue.DetectedAt)
	}
	return report
}

func TestUnregisteredFlagsSeriesManager(t *testing.T) {
	store := ts.NewStore().AddFilings(
		ts.Filing("0001", "111", "Acme Fund I, a series of Acme Capital LLC", ts.DaysBefore(90)),
		ts.Filing("0002", "112", "Acme Fund II, a series of Acme Capital LLC", ts.DaysBefore(80)),
	)

	report := run(t, domain.DiscrepancyNeedsInitialADV, store, testOptions())
	require.Len(t, report.Issues, 1)

	issue := report.Issues[0]
	require.Equal(t, domain.SeverityMedium, issue.Severity)
	require.Equal(t, "Acme Capital LLC", issue.Metadata["manager_name"])
	require.Equal(t, 2, issue.Metadata["fund_count"])
	require.Equal(t, 90, issue.Metadata["days_since_first_filing"])
	require.Equal(t, "0001", *issue.Accession)
	require.Equal(t, "111", *issue.FilerID)
	require.Nil(t, issue.AdviserID)
	require.Len(t, issue.Metadata["sample_funds"], 2)
}

func TestUnregisteredFindsRecentManagerPastOldFilings(t *testing.T) {
	store := ts.NewStore()
	for i := 0; i < 5; i++ {
		store.AddFilings(ts.Filing(fmt.Sprintf("000%d", i), "1", fmt.Sprintf("Dormant Fund %d LP", i), ts.DaysBefore(900)))
	}
	store.AddFilings(ts.Filing("0009", "9", "Acme Fund I, a series of Acme Capital LLC", ts.DaysBefore(90)))

	src := sources(store)
	src.Builder = xref.NewBuilder(store.Filings(), store.Links(), store.Advisers(),
		xref.WithLimits(xref.Limits{PageSize: 2, RecordCeiling: 4}),
		xref.WithClock(ts.Clock(ts.Now)),
	)
	d, err := New(domain.DiscrepancyNeedsInitialADV, src, testOptions())
	require.NoError(t, err)

	report, err := d.Detect(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Examined)
	require.Empty(t, report.Truncated)
	require.Len(t, report.Issues, 1)
	require.Equal(t, "Acme Capital LLC", report.Issues[0].Metadata["manager_name"])
}

func TestUnregisteredSkipsMatchedRecentAndUmbrellaManagers(t *testing.T) {
	store := ts.NewStore().
		AddFilings(
			ts.Filing("0011", "211", "Beta Fund I, a series of Beta Partners LLC", ts.DaysBefore(100)),
			ts.Filing("0012", "212", "Beta Fund II, a series of Beta Partners LLC", ts.DaysBefore(50)),
			ts.Filing("0013", "213", "Gamma Growth Fund LP", ts.DaysBefore(30)),
			ts.Filing("0014", "214", "Fund Z, a series of Umbrella Platform LLC", ts.DaysBefore(100)),
		).
		AddLinks(ts.Link("0012", "F12", "500", "Beta Partners LLC", ts.DaysBefore(50)))

	opts := testOptions()
	opts.AdminUmbrellas = []string{"Umbrella Platform LLC"}
	report := run(t, domain.DiscrepancyNeedsInitialADV, store, opts)
	require.Empty(t, report.Issues)
	require.Positive(t, report.Examined)
}

func TestUnregisteredSuppressesRegisteredManager(t *testing.T) {
	newStore := func() *ts.Store {
		return ts.NewStore().
			AddFilings(ts.Filing("0001", "111", "Acme Fund I, a series of Acme Capital LLC", ts.DaysBefore(170))).
			AddAdvisers(domain.AdviserRecord{ID: "300", LegalName: "Acme Capital, LLC"})
	}

	report := run(t, domain.DiscrepancyNeedsInitialADV, newStore(), testOptions())
	require.Empty(t, report.Issues)

	opts := testOptions()
	opts.RegisterCheck = false
	report = run(t, domain.DiscrepancyNeedsInitialADV, newStore(), opts)
	require.Len(t, report.Issues, 1)
	require.Equal(t, domain.SeverityHigh, report.Issues[0].Severity)
}

func TestManagerSeverity(t *testing.T) {
	cases := map[int]domain.Severity{
		61:  domain.SeverityMedium,
		120: domain.SeverityMedium,
		121: domain.SeverityHigh,
		180: domain.SeverityHigh,
		181: domain.SeverityCritical,
	}
	for days, want := range cases {
		require.Equal(t, want, managerSeverity(days), "days=%d", days)
	}
}

func TestOverdueFlagsStaleAndMissingFigures(t *testing.T) {
	store := ts.NewStore().
		AddLinks(
			ts.Link("0001", "F1", "100", "Current Advisors LLC", "2025-01-10"),
			ts.Link("0002", "F2", "200", "Stale Advisors LLC", "2024-02-01"),
			ts.Link("0003", "F3", "200", "Stale Advisors LLC", "2024-08-01"),
			ts.Link("0004", "F4", "300", "Unknown Advisors LLC", "2023-08-01"),
		).
		AddAdvisers(
			domain.AdviserRecord{ID: "100", LegalName: "Current Advisors LLC", AUM: domain.AUMByYear{2024: ts.Amount("5000000")}},
			domain.AdviserRecord{ID: "200", LegalName: "Stale Advisors LLC", AUM: domain.AUMByYear{2023: ts.Amount("750000")}},
		)

	report := run(t, domain.DiscrepancyOverdueAmendment, store, testOptions())
	require.Equal(t, 3, report.Examined)
	require.Len(t, report.Issues, 2)

	stale := report.Issues[0]
	require.Equal(t, "200", *stale.AdviserID)
	require.Equal(t, domain.SeverityHigh, stale.Severity)
	require.Equal(t, 2023, stale.Metadata["latest_aum_year"])
	require.Equal(t, 2024, stale.Metadata["expected_year"])
	require.Equal(t, 2, stale.Metadata["matched_filing_count"])
	recent := stale.Metadata["recent_form_d_filings"].([]recentFiling)
	require.Equal(t, "0003", recent[0].Accession)

	missing := report.Issues[1]
	require.Equal(t, "300", *missing.AdviserID)
	require.Nil(t, missing.Metadata["latest_aum_year"])
	require.Equal(t, 1, store.AUMLookups)
}

func TestVentureExemptionFlagsNonVentureFunds(t *testing.T) {
	store := ts.NewStore().
		AddAdvisers(
			domain.AdviserRecord{ID: "100", LegalName: "Mixed Ventures LLC", Exemption2B1: domain.FlagTrue},
			domain.AdviserRecord{ID: "200", LegalName: "Pure Ventures LLC", Exemption2B1: domain.FlagTrue},
			domain.AdviserRecord{ID: "300", LegalName: "Broken Ventures LLC", Exemption2B1: domain.FlagTrue},
			domain.AdviserRecord{ID: "400", LegalName: "Buyout Partners LLC", Exemption2B1: domain.FlagFalse},
		).
		AddFunds(
			domain.FundRecord{ID: "F1", ReferenceID: "805-1", AdviserID: "100", Name: "Mixed VC Fund I", FundType: "Venture Capital Fund"},
			domain.FundRecord{ID: "F2", ReferenceID: "805-2", AdviserID: "100", Name: "Mixed Buyout II", FundType: "Private Equity Fund"},
			domain.FundRecord{ID: "F3", ReferenceID: "805-3", AdviserID: "100", Name: "Mixed Sidecar"},
			domain.FundRecord{ID: "F4", ReferenceID: "805-4", AdviserID: "200", Name: "Pure Seed Fund", FundType: "VC"},
			domain.FundRecord{ID: "F5", ReferenceID: "805-5", AdviserID: "400", Name: "Buyout Fund", FundType: "Private Equity Fund"},
		)
	store.FundErrs["300"] = errors.New("connection reset")

	report := run(t, domain.DiscrepancyVCExemption, store, testOptions())
	require.Equal(t, 3, report.Examined)
	require.Equal(t, 1, report.Skipped)
	require.Len(t, report.Issues, 1)

	issue := report.Issues[0]
	require.Equal(t, "100", *issue.AdviserID)
	require.Equal(t, domain.SeverityCritical, issue.Severity)
	require.Equal(t, 3, issue.Metadata["total_funds"])
	require.Equal(t, 1, issue.Metadata["non_vc_fund_count"])
	samples := issue.Metadata["sample_non_vc_funds"].([]fundSample)
	require.Equal(t, []fundSample{{Name: "Mixed Buyout II", Type: "Private Equity Fund", ReferenceID: "805-2"}}, samples)
}

// offering builds a filing for the link-level detectors.
func offering(accession, fundType, codes string) domain.FilingRecord {
	f := ts.Filing(accession, "1"+accession, "Offering "+accession+" LP", "2024-01-01")
	f.FundType = fundType
	f.ExemptionCodes = codes
	return f
}

// addPair stores a filing, a fund of adviser 100 and the link between them.
func addPair(store *ts.Store, filing domain.FilingRecord, fund domain.FundRecord) {
	fund.AdviserID = "100"
	if fund.ReferenceID == "" {
		fund.ReferenceID = "REF-" + fund.ID
	}
	store.AddFilings(filing).AddFunds(fund).AddLinks(
		ts.Link(filing.Accession, fund.ID, "100", "Linked Advisors LLC", filing.FilingDate.String()),
	)
}

func TestTypeMismatchUsesCategories(t *testing.T) {
	store := ts.NewStore()
	addPair(store, offering("0001", "VC Fund", ""), domain.FundRecord{ID: "F1", Name: "Alpha", FundType: "Venture Capital"})
	addPair(store, offering("0002", "Hedge Fund", ""), domain.FundRecord{ID: "F2", Name: "Beta", FundType: "Private Equity Fund"})
	addPair(store, offering("0003", "", ""), domain.FundRecord{ID: "F3", Name: "Gamma", FundType: "Private Equity Fund"})
	store.AddFilings(offering("0004", "Hedge Fund", ""))
	store.AddLinks(ts.Link("0004", "F-missing", "100", "Linked Advisors LLC", "2024-01-01"))

	report := run(t, domain.DiscrepancyFundTypeMismatch, store, testOptions())
	require.Equal(t, 4, report.Examined)
	require.Zero(t, report.Skipped)
	require.Len(t, report.Issues, 1)

	issue := report.Issues[0]
	require.Equal(t, domain.SeverityMedium, issue.Severity)
	require.Equal(t, "0002", *issue.Accession)
	require.Equal(t, "10002", *issue.FilerID)
	require.Equal(t, "REF-F2", *issue.FundReferenceID)
	require.Equal(t, "100", *issue.AdviserID)
	require.Equal(t, "hedge", issue.Metadata["formd_category"])
	require.Equal(t, "pe", issue.Metadata["adv_category"])
	require.Equal(t, 1, store.FilingLookups)
}

func TestExemptionStatusComparesExclusions(t *testing.T) {
	store := ts.NewStore()
	addPair(store, offering("0001", "", "3C, 3C.7"), domain.FundRecord{ID: "F1", Exclusion3C1: domain.FlagFalse, Exclusion3C7: domain.FlagTrue})
	addPair(store, offering("0002", "", "3C"), domain.FundRecord{ID: "F2", Exclusion3C7: domain.FlagTrue})
	addPair(store, offering("0003", "", "06b, 3C.1"), domain.FundRecord{ID: "F3", Exclusion3C1: domain.FlagTrue})
	addPair(store, offering("0004", "", "06b"), domain.FundRecord{ID: "F4"})

	report := run(t, domain.DiscrepancyExemptionMismatch, store, testOptions())
	require.Equal(t, 4, report.Examined)
	require.Len(t, report.Issues, 1)

	issue := report.Issues[0]
	require.Equal(t, "0002", *issue.Accession)
	require.Equal(t, domain.SeverityHigh, issue.Severity)
	require.Equal(t, true, issue.Metadata["formd_3c1"])
	require.Equal(t, false, issue.Metadata["formd_3c7"])
	require.Equal(t, false, issue.Metadata["adv_3c1"])
	require.Equal(t, true, issue.Metadata["adv_3c7"])
}

func missingFundStore() *ts.Store {
	related := ts.Filing("0004", "404", "Harbor Fund LP", "2025-05-01")
	related.RelatedParties = []domain.RelatedParty{{Name: "Redwood Harbor GP LLC", Role: "Promoter"}}

	return ts.NewStore().
		AddFilings(
			ts.Filing("0001", "401", "Redwood Harbor Fund I LP", "2022-03-01"),
			ts.Filing("0002", "402", "Redwood Harbor Opportunities Fund LP", "2023-05-01"),
			ts.Filing("0003", "403", "Redwood Growth Fund LP", "2023-05-01"),
			related,
			ts.Filing("0005", "405", "Redwood Harbor Fund II LP", ""),
			ts.Filing("0008", "408", "Sequoia Lantern Fund LP", "2024-03-01"),
		).
		AddLinks(
			ts.Link("0001", "F1", "100", "Redwood Harbor Capital Management LLC", "2024-09-01"),
			ts.Link("0006", "F6", "200", "Harbor Redwood Partners LP", "2024-02-01"),
			ts.Link("0007", "F7", "300", "Sequoia Lantern Ventures", "2023-01-01"),
			ts.Link("0009", "F9", "400", "Capital Partners LLC", "2024-01-01"),
		)
}

func TestMissingFundFlagsUnlistedOfferings(t *testing.T) {
	store := missingFundStore()
	report := run(t, domain.DiscrepancyMissingFundInADV, store, testOptions())
	require.Len(t, report.Issues, 2)

	first := report.Issues[0]
	require.Equal(t, "100", *first.AdviserID)
	require.Equal(t, "0002", *first.Accession)
	require.Equal(t, domain.SeverityMedium, first.Severity)
	require.Equal(t, []string{"REDWOOD", "HARBOR"}, first.Metadata["matched_tokens"])

	second := report.Issues[1]
	require.Equal(t, "300", *second.AdviserID)
	require.Equal(t, "0008", *second.Accession)

	for _, issue := range report.Issues {
		require.NotEqual(t, "0001", *issue.Accession)
	}
}

func TestMissingFundWaitsForAmendmentDeadline(t *testing.T) {
	opts := testOptions()
	opts.AmendmentDeadline = domain.MonthDay{Month: 12, Day: 31}

	report := run(t, domain.DiscrepancyMissingFundInADV, missingFundStore(), opts)
	require.Len(t, report.Issues, 1)
	require.Equal(t, "0002", *report.Issues[0].Accession)
}

func TestMissingFundNeverFlagsMatchedAccessions(t *testing.T) {
	store := ts.NewStore().
		AddFilings(
			ts.Filing("0001", "501", "Orchid Meadow Fund I LP", "2021-01-01"),
			ts.Filing("0002", "502", "Orchid Meadow Fund II LP", "2021-06-01"),
		).
		AddLinks(
			ts.Link("0001", "F1", "100", "Orchid Meadow Capital LLC", "2024-01-01"),
			ts.Link("0002", "F2", "100", "Orchid Meadow Capital LLC", "2024-06-01"),
		)

	report := run(t, domain.DiscrepancyMissingFundInADV, store, testOptions())
	require.Empty(t, report.Issues)
}

func TestDetectFailsWhenScanFails(t *testing.T) {
	store := ts.NewStore()
	store.LinkPageErr = errors.New("timeout")

	d, err := New(domain.DiscrepancyOverdueAmendment, sources(store), testOptions())
	require.NoError(t, err)
	_, err = d.Detect(context.Background())
	require.ErrorIs(t, err, store.LinkPageErr)
}

func TestReportNamesTruncatedScans(t *testing.T) {
	store := ts.NewStore().AddFilings(
		ts.Filing("0001", "1", "One Fund LP", "2024-01-01"),
		ts.Filing("0002", "2", "Two Fund LP", "2024-01-01"),
		ts.Filing("0003", "3", "Three Fund LP", "2024-01-01"),
	)
	src := sources(store)
	src.Builder = xref.NewBuilder(store.Filings(), store.Links(), store.Advisers(),
		xref.WithLimits(xref.Limits{PageSize: 2, RecordCeiling: 2}),
		xref.WithClock(ts.Clock(ts.Now)),
	)
	d, err := New(domain.DiscrepancyMissingFundInADV, src, testOptions())
	require.NoError(t, err)

	report, err := d.Detect(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"filings"}, report.Truncated)
}

func TestNewSetPreservesOrder(t *testing.T) {
	types := []domain.DiscrepancyType{domain.DiscrepancyExemptionMismatch, domain.DiscrepancyNeedsInitialADV}
	set, err := NewSet(types, sources(ts.NewStore()), testOptions())
	require.NoError(t, err)
	require.Len(t, set, 2)
	require.Equal(t, domain.DiscrepancyExemptionMismatch, set[0].Type())
	require.Equal(t, domain.DiscrepancyNeedsInitialADV, set[1].Type())

	_, err = New(domain.DiscrepancyType("bogus"), sources(ts.NewStore()), testOptions())
	require.Error(t, err)
}
