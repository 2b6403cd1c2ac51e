package domain

import "github.com/shopspring/decimal"

// ExemptionFlag names a registration-side exemption column.
type ExemptionFlag string

// ExemptionVentureCapital is the Item 2.B(1) venture capital adviser exemption.
const ExemptionVentureCapital ExemptionFlag = "exemption_2b1"

// Valid reports whether the flag names a queryable exemption column.
func (f ExemptionFlag) Valid() bool {
	return f == ExemptionVentureCapital
}

// AdviserRecord is a registered investment adviser from the ADV store.
type AdviserRecord struct {
	ID           string    `json:"crd"`
	Name         string    `json:"adviser_name"`
	LegalName    string    `json:"legal_name"`
	Exemption2B1 Flag      `json:"exemption_2b1"`
	Exemption2B2 Flag      `json:"exemption_2b2"`
	AUM          AUMByYear `json:"aum_by_year,omitempty"`
}

// DisplayName prefers the adviser name and falls back to the legal name.
func (a AdviserRecord) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.LegalName
}

// AUMByYear maps a filing year to the reported assets under management. A nil
// value means the column exists for that year but holds no figure.
type AUMByYear map[int]*decimal.Decimal

// LatestYear walks years newest to oldest and returns the first one with a
// figure. ok is false when none of the years has one.
func (a AUMByYear) LatestYear(years []int) (year int, ok bool) {
	for _, y := range years {
		if v, present := a[y]; present && v != nil {
			return y, true
		}
	}
	return 0, false
}

// FundRecord is a private fund disclosed on an adviser's registration.
type FundRecord struct {
	ID           string `json:"fund_id"`
	ReferenceID  string `json:"reference_id"`
	AdviserID    string `json:"adviser_crd"`
	Name         string `json:"fund_name"`
	FundType     string `json:"fund_type"`
	Exclusion3C1 Flag   `json:"exclusion_3c1"`
	Exclusion3C7 Flag   `json:"exclusion_3c7"`
	// FormDFileNumber is the optional cross-link back to the offering notice.
	FormDFileNumber *string `json:"form_d_file_number,omitempty"`
}

// Exemption returns the value of the named exemption column.
func (a AdviserRecord) Exemption(flag ExemptionFlag) Flag {
	switch flag {
	case ExemptionVentureCapital:
		return a.Exemption2B1
	default:
		return FlagUnset
	}
}
