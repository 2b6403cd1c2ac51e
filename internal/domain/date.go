package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// filingDateLayouts lists the representations seen in the Form D store. The
// day-month-year form ("31-JAN-2024") appears on older bulk loads.
var filingDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2-Jan-2006",
}

// FilingDate is the tagged result of parsing a source date. The zero value is
// the Unparseable case; callers must check Valid before using Time.
type FilingDate struct {
	t     time.Time
	raw   string
	valid bool
}

// ParseFilingDate parses any supported representation. Blank or unrecognised
// input yields an invalid FilingDate that still remembers the raw text.
func ParseFilingDate(raw string) FilingDate {
	value := strings.TrimSpace(raw)
	if value == "" {
		return FilingDate{}
	}
	for _, layout := range filingDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			y, m, d := t.Date()
			return FilingDate{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), raw: value, valid: true}
		}
	}
	return FilingDate{raw: value}
}

// DateOf builds a valid FilingDate from a calendar date.
func DateOf(year int, month time.Month, day int) FilingDate {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return FilingDate{t: t, raw: t.Format("2006-01-02"), valid: true}
}

// Valid reports whether the source text held a recognisable date.
func (d FilingDate) Valid() bool { return d.valid }

// Time returns the parsed date at midnight UTC. It is the zero time when the
// date is not valid.
func (d FilingDate) Time() time.Time { return d.t }

// Raw returns the text the date was parsed from.
func (d FilingDate) Raw() string { return d.raw }

// Year returns the calendar year, or 0 when the date is not valid.
func (d FilingDate) Year() int {
	if !d.valid {
		return 0
	}
	return d.t.Year()
}

// Before reports whether both dates are valid and d is strictly earlier than other.
func (d FilingDate) Before(other FilingDate) bool {
	return d.valid && other.valid && d.t.Before(other.t)
}

// DaysUntil returns whole days elapsed between d and now.
func (d FilingDate) DaysUntil(now time.Time) int {
	if !d.valid {
		return 0
	}
	return int(now.UTC().Sub(d.t).Hours() / 24)
}

// String renders valid dates as YYYY-MM-DD and invalid ones as their raw text.
func (d FilingDate) String() string {
	if !d.valid {
		return d.raw
	}
	return d.t.Format("2006-01-02")
}

// MarshalJSON writes valid dates as "YYYY-MM-DD" and invalid ones as null.
func (d FilingDate) MarshalJSON() ([]byte, error) {
	if !d.valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}
