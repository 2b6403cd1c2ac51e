package testsupport

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rpattn/formrecon/internal/domain"
)

// Now is the fixed clock used across package tests.
var Now = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

// Clock returns a func reporting t.
func Clock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// DaysBefore formats the date n days before Now.
func DaysBefore(n int) string {
	return Now.AddDate(0, 0, -n).Format("2006-01-02")
}

// Filing builds an offering notice.
func Filing(accession, cik, entityName, date string) domain.FilingRecord {
	return domain.FilingRecord{
		Accession:  accession,
		FilerID:    cik,
		EntityName: entityName,
		FilingDate: domain.ParseFilingDate(date),
	}
}

// Amount parses a decimal literal.
func Amount(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}

// Link builds a match link between a filing and an adviser's fund.
func Link(accession, fundID, adviserID, legalName, date string) domain.MatchLink {
	return domain.MatchLink{
		Accession:        accession,
		FundID:           fundID,
		AdviserID:        adviserID,
		AdviserLegalName: legalName,
		FilingDate:       domain.ParseFilingDate(date),
		Score:            0.9,
	}
}
