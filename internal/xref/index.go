// Package xref loads both datasets once per detector invocation and exposes
// read-only views keyed on reconciled accession numbers, advisers and
// controlling managers.
package xref

import (
	"github.com/shopspring/decimal"

	"github.com/rpattn/formrecon/internal/domain"
	"github.com/rpattn/formrecon/internal/identity"
)

// View selects what Build loads.
type View uint8

const (
	// ViewLinks loads match links: Matched, Links, Adviser and Advisers.
	ViewLinks View = 1 << iota
	// ViewFilings loads the filing scan: Filings and Unmatched.
	ViewFilings
	// ViewManagers scans filings inside the lookback horizon and groups them
	// by controlling manager. It implies ViewLinks.
	ViewManagers
	// ViewRegistered loads every adviser name into a Matcher.
	ViewRegistered
)

// Has reports whether every view in other is selected.
func (v View) Has(other View) bool { return v&other == other }

// AdviserLinks is every match link of one adviser.
type AdviserLinks struct {
	ID        string
	LegalName string
	Links     []domain.MatchLink
	// Earliest and Latest span the valid filing dates of the links.
	Earliest domain.FilingDate
	Latest   domain.FilingDate
}

// LatestYear is the year of the most recent matched filing, or 0.
func (a AdviserLinks) LatestYear() int { return a.Latest.Year() }

// ManagerGroup is every recent filing attributed to one controlling manager.
type ManagerGroup struct {
	Key     string
	Display string
	Source  string
	Filings []domain.FilingRecord
	// Earliest and Latest span the valid filing dates of the members.
	Earliest domain.FilingDate
	Latest   domain.FilingDate
	// TotalOffering sums the offering amounts that were reported.
	TotalOffering decimal.Decimal
	Candidates    []identity.Candidate
}

// Stats describes what Build loaded.
type Stats struct {
	Filings   int
	Recent    int
	Links     int
	Advisers  int
	Managers  int
	Truncated []string
}

// Index is immutable once built. Slices returned by its views are shared and
// must not be modified.
type Index struct {
	matched    map[string]struct{}
	links      []domain.MatchLink
	advisers   []AdviserLinks
	filings    []domain.FilingRecord
	recent     []domain.FilingRecord
	managers   []ManagerGroup
	registered *identity.Matcher
	stats      Stats
}

// Stats reports load counts and truncated scans.
func (x *Index) Stats() Stats { return x.stats }

// Matched reports whether a match link references the accession.
func (x *Index) Matched(accession string) bool {
	_, ok := x.matched[accession]
	return ok
}

// Links returns every match link ordered by link id.
func (x *Index) Links() []domain.MatchLink { return x.links }

// Advisers returns every adviser with at least one link, sorted by id.
func (x *Index) Advisers() []AdviserLinks { return x.advisers }

// Filings returns the scanned filings ordered by accession.
func (x *Index) Filings() []domain.FilingRecord { return x.filings }

// Unmatched returns the scanned filings no link references.
func (x *Index) Unmatched() []domain.FilingRecord {
	out := make([]domain.FilingRecord, 0, len(x.filings))
	for _, f := range x.filings {
		if !x.Matched(f.Accession) {
			out = append(out, f)
		}
	}
	return out
}

// Managers returns the manager groups sorted by key.
func (x *Index) Managers() []ManagerGroup { return x.managers }

// RegisteredNames returns the registered-name matcher, or nil when
// ViewRegistered was not requested.
func (x *Index) RegisteredNames() *identity.Matcher { return x.registered }
