package xref

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/fetch"
	ts "github.com/rpattn/formrecon/internal/testsupport"
)

func newBuilder(store *ts.Store, opts ...Option) *Builder {
	opts = append([]Option{WithLimits(Limits{PageSize: 2}), WithClock(ts.Clock(ts.Now))}, opts...)
	return NewBuilder(store.Filings(), store.Links(), store.Advisers(), opts...)
}

func TestBuildGroupsSeriesFilingsByManager(t *testing.T) {
	first := ts.Filing("0001", "111", "Acme Fund I, a series of Acme Capital LLC", ts.DaysBefore(90))
	first.OfferingAmount = ts.Amount("1000000")
	second := ts.Filing("0002", "112", "Acme Fund II, a series of Acme Capital LLC", ts.DaysBefore(30))
	second.OfferingAmount = ts.Amount("2500000")
	old := ts.Filing("0003", "113", "Acme Fund III, a series of Acme Capital LLC", ts.DaysBefore(400))
	undated := ts.Filing("0004", "114", "Acme Fund IV, a series of Acme Capital LLC", "")
	other := ts.Filing("0005", "115", "Zeta Opportunities Fund LP", ts.DaysBefore(10))

	store := ts.NewStore().AddFilings(first, second, old, undated, other)
	index, err := newBuilder(store).Build(context.Background(), ViewManagers)
	require.NoError(t, err)

	require.Empty(t, index.Filings())
	require.Equal(t, 4, index.Stats().Recent)
	managers := index.Managers()
	require.Len(t, managers, 2)

	acme := managers[0]
	require.Equal(t, "ACME CAPITAL", acme.Key)
	require.Equal(t, "Acme Capital LLC", acme.Display)
	require.Len(t, acme.Filings, 2)
	require.Equal(t, "0001", acme.Filings[0].Accession)
	require.Equal(t, first.FilingDate, acme.Earliest)
	require.Equal(t, second.FilingDate, acme.Latest)
	require.Equal(t, "3500000", acme.TotalOffering.String())

	require.Equal(t, "ZETA OPPORTUNITIES FUND", managers[1].Key)
}

func TestBuildIndexesAdviserLinks(t *testing.T) {
	store := ts.NewStore().AddLinks(
		ts.Link("0001", "F1", "200", "Beta Advisors LLC", "2023-03-01"),
		ts.Link("0002", "F2", "100", "Alpha Partners LP", "2022-05-01"),
		ts.Link("0003", "F3", "200", "Beta Advisors LLC", "2024-07-09"),
		ts.Link("0004", "F4", "200", "Beta Advisors LLC", "garbage"),
	)

	index, err := newBuilder(store).Build(context.Background(), ViewLinks)
	require.NoError(t, err)

	require.True(t, index.Matched("0004"))
	require.False(t, index.Matched("0099"))

	advisers := index.Advisers()
	require.Len(t, advisers, 2)
	require.Equal(t, "100", advisers[0].ID)

	beta := advisers[1]
	require.Equal(t, "200", beta.ID)
	require.Len(t, beta.Links, 3)
	require.Equal(t, 2024, beta.LatestYear())
	require.Equal(t, 2023, beta.Earliest.Year())
	require.Equal(t, "Beta Advisors LLC", beta.LegalName)
}

func TestBuildUnmatchedExcludesLinkedFilings(t *testing.T) {
	store := ts.NewStore().
		AddFilings(
			ts.Filing("0001", "1", "Linked Fund LP", "2024-01-01"),
			ts.Filing("0002", "2", "Loose Fund LP", "2024-01-01"),
		).
		AddLinks(ts.Link("0001", "F1", "100", "Alpha Partners LP", "2024-01-01"))

	index, err := newBuilder(store).Build(context.Background(), ViewLinks|ViewFilings)
	require.NoError(t, err)

	unmatched := index.Unmatched()
	require.Len(t, unmatched, 1)
	require.Equal(t, "0002", unmatched[0].Accession)
}

func TestBuildLoadsRegisteredNames(t *testing.T) {
	store := ts.NewStore().AddAdvisers(
		domain.AdviserRecord{ID: "100", Name: "Acme Capital", LegalName: "Acme Capital Management LLC"},
	)

	index, err := newBuilder(store).Build(context.Background(), ViewRegistered)
	require.NoError(t, err)
	require.NotNil(t, index.RegisteredNames())
	require.Equal(t, 2, index.RegisteredNames().Len())

	match, ok := index.RegisteredNames().Best("ACME CAPITAL MANAGEMENT, L.L.C.")
	require.True(t, ok)
	require.Equal(t, "100", match.ID)
}

func TestBuildFailsWhenScanFails(t *testing.T) {
	boom := errors.New("connection refused")
	store := ts.NewStore().AddFilings(ts.Filing("0001", "1", "Any Fund", "2024-01-01"))
	store.FilingPageErr = boom

	_, err := newBuilder(store).Build(context.Background(), ViewFilings)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, err, fetch.ErrPage)
}

func TestBuildRecordsTruncatedScans(t *testing.T) {
	store := ts.NewStore().AddFilings(
		ts.Filing("0001", "1", "One Fund", "2024-01-01"),
		ts.Filing("0002", "2", "Two Fund", "2024-01-01"),
		ts.Filing("0003", "3", "Three Fund", "2024-01-01"),
	)

	index, err := newBuilder(store, WithLimits(Limits{RecordCeiling: 2})).Build(context.Background(), ViewFilings)
	require.NoError(t, err)
	require.Len(t, index.Filings(), 2)
	require.Equal(t, []string{"filings"}, index.Stats().Truncated)
}

func TestBuildManagersIgnoreOldFilingsUnderCeiling(t *testing.T) {
	store := ts.NewStore().AddFilings(
		ts.Filing("0000", "1", "Old Fund 0 LP", ts.DaysBefore(900)),
		ts.Filing("0001", "2", "Old Fund 1 LP", ts.DaysBefore(900)),
		ts.Filing("0002", "3", "Old Fund 2 LP", ts.DaysBefore(900)),
		ts.Filing("0003", "4", "Old Fund 3 LP", ts.DaysBefore(900)),
		ts.Filing("0004", "5", "Old Fund 4 LP", ts.DaysBefore(900)),
		ts.Filing("0009", "9", "Acme Fund I, a series of Acme Capital LLC", ts.DaysBefore(90)),
	)

	index, err := newBuilder(store, WithLimits(Limits{PageSize: 2, RecordCeiling: 4})).Build(context.Background(), ViewManagers)
	require.NoError(t, err)
	require.Empty(t, index.Stats().Truncated)
	require.Equal(t, 1, index.Stats().Recent)

	managers := index.Managers()
	require.Len(t, managers, 1)
	require.Equal(t, "ACME CAPITAL", managers[0].Key)
	require.Equal(t, "0009", managers[0].Filings[0].Accession)
}
