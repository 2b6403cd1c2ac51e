package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RelatedParty is one name/role pair from a filing's related-persons section.
type RelatedParty struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// FilingRecord is one Form D offering notice. Records are read-only here.
type FilingRecord struct {
	Accession      string           `json:"accession"`
	EntityName     string           `json:"entity_name"`
	FilerID        string           `json:"cik"`
	FilingDate     FilingDate       `json:"filing_date"`
	OfferingAmount *decimal.Decimal `json:"offering_amount,omitempty"`
	ExemptionCodes string           `json:"exemption_codes"`
	FundType       string           `json:"fund_type"`
	RelatedParties []RelatedParty   `json:"related_parties"`
}

// ParseRelatedParties zips the pipe-delimited name and role lists stored on a
// filing. Leading "--" markers are dropped and blank names skipped; a missing
// role becomes "".
func ParseRelatedParties(names, roles string) []RelatedParty {
	if strings.TrimSpace(names) == "" {
		return nil
	}
	nameParts := strings.Split(names, "|")
	var roleParts []string
	if strings.TrimSpace(roles) != "" {
		roleParts = strings.Split(roles, "|")
	}

	parties := make([]RelatedParty, 0, len(nameParts))
	for i, raw := range nameParts {
		name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "--"))
		if name == "" {
			continue
		}
		role := ""
		if i < len(roleParts) {
			role = strings.TrimSpace(roleParts[i])
		}
		parties = append(parties, RelatedParty{Name: name, Role: role})
	}
	return parties
}

// RelatedNames returns the party names joined with "|" in their original order.
func (f FilingRecord) RelatedNames() string {
	names := make([]string, len(f.RelatedParties))
	for i, p := range f.RelatedParties {
		names[i] = p.Name
	}
	return strings.Join(names, "|")
}

// RelatedRoles returns the party roles joined with "|", aligned with RelatedNames.
func (f FilingRecord) RelatedRoles() string {
	roles := make([]string, len(f.RelatedParties))
	for i, p := range f.RelatedParties {
		roles[i] = p.Role
	}
	return strings.Join(roles, "|")
}

// SearchText is the entity name followed by every related-party name.
func (f FilingRecord) SearchText() string {
	var b strings.Builder
	b.WriteString(f.EntityName)
	for _, p := range f.RelatedParties {
		b.WriteByte(' ')
		b.WriteString(p.Name)
	}
	return b.String()
}
