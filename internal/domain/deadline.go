package domain

import (
	"fmt"
	"time"
)

// MonthDay is a yearly recurring calendar date such as the annual amendment
// deadline.
type MonthDay struct {
	Month time.Month
	Day   int
}

// ParseMonthDay reads "MM-DD".
func ParseMonthDay(raw string) (MonthDay, error) {
	t, err := time.Parse("01-02", raw)
	if err != nil {
		return MonthDay{}, fmt.Errorf("invalid month-day %q: %w", raw, err)
	}
	return MonthDay{Month: t.Month(), Day: t.Day()}, nil
}

// In returns the date in the given year at midnight UTC.
func (m MonthDay) In(year int) time.Time {
	return time.Date(year, m.Month, m.Day, 0, 0, 0, 0, time.UTC)
}

// PassedAt reports whether now is on or after this year's occurrence.
func (m MonthDay) PassedAt(now time.Time) bool {
	now = now.UTC()
	return !now.Before(m.In(now.Year()))
}

func (m MonthDay) String() string {
	return fmt.Sprintf("%02d-%02d", int(m.Month), m.Day)
}
