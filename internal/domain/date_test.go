package domain

import (
	"testing"
	"time"
)

func TestParseFilingDateFormats(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"2024-01-31", "2024-01-31"},
		{"31-JAN-2024", "2024-01-31"},
		{"5-mar-2023", "2023-03-05"},
		{"2024-06-01T12:30:00Z", "2024-06-01"},
		{" 2025-02-03 ", "2025-02-03"},
	}
	for _, tc := range cases {
		got := ParseFilingDate(tc.raw)
		if !got.Valid() {
			t.Fatalf("expected %q to parse", tc.raw)
		}
		if got.String() != tc.want {
			t.Fatalf("parse %q: expected %s, got %s", tc.raw, tc.want, got.String())
		}
	}
}

func TestParseFilingDateUnparseable(t *testing.T) {
	for _, raw := range []string{"", "   ", "sometime in 2024", "31-FOO-2024"} {
		got := ParseFilingDate(raw)
		if got.Valid() {
			t.Fatalf("expected %q to be unparseable, got %s", raw, got.String())
		}
		if !got.Time().IsZero() {
			t.Fatalf("unparseable date must not carry a time, got %v", got.Time())
		}
		if got.Year() != 0 {
			t.Fatalf("unparseable date must report year 0, got %d", got.Year())
		}
	}
}

func TestFilingDateOrderingIgnoresInvalid(t *testing.T) {
	a := DateOf(2024, time.January, 1)
	b := DateOf(2024, time.February, 1)
	if !a.Before(b) {
		t.Fatalf("expected %s before %s", a, b)
	}
	if a.Before(FilingDate{}) || (FilingDate{}).Before(a) {
		t.Fatalf("comparisons with an invalid date must be false")
	}
}

func TestFilingDateDaysUntil(t *testing.T) {
	d := DateOf(2024, time.January, 1)
	now := time.Date(2024, time.March, 1, 15, 0, 0, 0, time.UTC)
	if got := d.DaysUntil(now); got != 60 {
		t.Fatalf("expected 60 days, got %d", got)
	}
}

func TestParseRelatedParties(t *testing.T) {
	parties := ParseRelatedParties("-- Jane Doe| Acme Capital LLC ||Beta GP", "Executive Officer|Managing Member|Ignored")
	if len(parties) != 3 {
		t.Fatalf("expected 3 parties, got %d: %+v", len(parties), parties)
	}
	if parties[0].Name != "Jane Doe" || parties[0].Role != "Executive Officer" {
		t.Fatalf("unexpected first party: %+v", parties[0])
	}
	if parties[1].Name != "Acme Capital LLC" || parties[1].Role != "Managing Member" {
		t.Fatalf("unexpected second party: %+v", parties[1])
	}
	if parties[2].Name != "Beta GP" || parties[2].Role != "" {
		t.Fatalf("expected missing role to be blank: %+v", parties[2])
	}
}

func TestParseFlag(t *testing.T) {
	cases := map[string]Flag{
		"":      FlagUnset,
		"Y":     FlagTrue,
		"true":  FlagTrue,
		"TRUE":  FlagTrue,
		"t":     FlagTrue,
		"N":     FlagFalse,
		"false": FlagFalse,
	}
	for raw, want := range cases {
		if got := ParseFlag(raw); got != want {
			t.Fatalf("ParseFlag(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestAUMLatestYear(t *testing.T) {
	figure := mustDecimal(t, "100")
	aum := AUMByYear{2025: nil, 2024: figure, 2023: figure}
	year, ok := aum.LatestYear([]int{2025, 2024, 2023})
	if !ok || year != 2024 {
		t.Fatalf("expected 2024, got %d (ok=%v)", year, ok)
	}
	if _, ok := (AUMByYear{2025: nil}).LatestYear([]int{2025, 2024}); ok {
		t.Fatalf("expected no latest year when every figure is nil")
	}
}

func TestParseDiscrepancyType(t *testing.T) {
	got, err := ParseDiscrepancyType("Fund-Type-Mismatch")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != DiscrepancyFundTypeMismatch {
		t.Fatalf("expected %s, got %s", DiscrepancyFundTypeMismatch, got)
	}
	if _, err := ParseDiscrepancyType("bogus"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}

func TestMonthDay(t *testing.T) {
	deadline, err := ParseMonthDay("04-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deadline.String() != "04-01" {
		t.Fatalf("unexpected round trip %q", deadline.String())
	}
	if deadline.PassedAt(time.Date(2025, time.March, 31, 23, 0, 0, 0, time.UTC)) {
		t.Fatalf("deadline should not have passed on March 31")
	}
	if !deadline.PassedAt(time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("deadline should have passed on April 1")
	}
	if _, err := ParseMonthDay("13-40"); err == nil {
		t.Fatalf("expected error for invalid month-day")
	}
}

func TestExemptionFlagValid(t *testing.T) {
	if !ExemptionVentureCapital.Valid() {
		t.Fatalf("expected venture capital flag to be valid")
	}
	if ExemptionFlag("exemption_2b2; drop table").Valid() {
		t.Fatalf("expected unknown column to be rejected")
	}
	adviser := AdviserRecord{Exemption2B1: FlagTrue, Exemption2B2: FlagTrue}
	if !adviser.Exemption(ExemptionVentureCapital).IsTrue() {
		t.Fatalf("expected 2B(1) flag to be read")
	}
	if got := adviser.Exemption(ExemptionFlag("exemption_2b2")); got != FlagUnset {
		t.Fatalf("expected unset for unqueryable column, got %v", got)
	}
}
