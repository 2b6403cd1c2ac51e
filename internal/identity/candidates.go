package identity

import (
	"regexp"
	"sort"
	"strings"

	"github.com/rpattn/formrecon/internal/domain"
)

// Candidate sources, in the order they are preferred.
const (
	SourceSeriesPattern = "series_pattern"
	SourceRelatedNames  = "related_names"
	SourceEntityName    = "entity_name"
	SourceEntityNameRaw = "entity_name_raw"
)

// Candidate is a possible controlling-manager name found on a filing.
type Candidate struct {
	Name     string `json:"name"`
	Role     string `json:"role,omitempty"`
	Source   string `json:"source"`
	Priority int    `json:"-"`
}

var (
	companySuffix = regexp.MustCompile(`(?i)\b(LLC|L\.L\.C|LP|L\.P|LTD|LIMITED|INC|INCORPORATED|CORP|CORPORATION|CO|COMPANY|PARTNERS|PARTNERSHIP|HOLDINGS|GROUP|FUND|MANAGEMENT|CAPITAL|ADVISORS|ADVISERS|VENTURES|INVESTMENTS|EQUITY|ASSET|SECURITIES)\b\.?$`)
	personWord    = regexp.MustCompile(`^([A-Z][a-z]+|[A-Z]\.?)$`)

	companyKeywords = []string{"MANAGEMENT", "CAPITAL", "PARTNERS", "ADVISORS", "VENTURES", "INVESTMENTS"}
	fundIndicators  = []string{"FUND", "SERIES", "PORTFOLIO", "FEEDER", "MASTER", "OFFSHORE", "ONSHORE", "PARALLEL", "SPV", "VEHICLE", "TRANCHE", "CLASS"}
	serviceRoles    = []string{"admin", "custod", "legal", "counsel", "account", "audit", "attorney", "compliance"}
	leadRoles       = []string{"managing", "general partner", "director"}
)

// IsCompanyName reports whether a free-text name reads as an organisation
// rather than an individual. Names with a legal suffix or a company keyword
// are organisations; two or three capitalised words ("John Smith",
// "Mary K. Jones") are people; anything else is treated as an organisation.
func IsCompanyName(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false
	}
	if companySuffix.MatchString(trimmed) {
		return true
	}
	upper := strings.ToUpper(trimmed)
	for _, kw := range companyKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	words := strings.Fields(trimmed)
	if len(words) == 2 || len(words) == 3 {
		person := true
		for _, w := range words {
			if !personWord.MatchString(w) {
				person = false
				break
			}
		}
		if person {
			return false
		}
	}
	return true
}

// RelatedCompanies extracts organisation candidates from the pipe-delimited
// related names and roles on a filing. People, service providers and other
// funds are dropped; managing members, general partners and directors rank
// first.
func RelatedCompanies(names, roles string) []Candidate {
	return relatedCompanies(domain.ParseRelatedParties(names, roles))
}

func relatedCompanies(parties []domain.RelatedParty) []Candidate {
	companies := make([]Candidate, 0, len(parties))
	for _, party := range parties {
		if !IsCompanyName(party.Name) {
			continue
		}
		role := strings.ToLower(party.Role)
		if containsAny(role, serviceRoles) {
			continue
		}
		if containsAny(strings.ToUpper(party.Name), fundIndicators) {
			continue
		}
		priority := 2
		if containsAny(role, leadRoles) {
			priority = 1
		}
		companies = append(companies, Candidate{
			Name:     party.Name,
			Role:     party.Role,
			Source:   SourceRelatedNames,
			Priority: priority,
		})
	}
	sort.SliceStable(companies, func(i, j int) bool {
		return companies[i].Priority < companies[j].Priority
	})
	return companies
}

// FirmCandidates lists every manager name a filing points at: the "series of"
// operand, related companies, then the cleaned entity name when it looks like
// a company. Candidates sharing a key are reported once.
func FirmCandidates(entityName string, parties []domain.RelatedParty) []Candidate {
	var candidates []Candidate
	if manager, ok := SeriesManager(entityName); ok {
		candidates = append(candidates, Candidate{Name: manager, Source: SourceSeriesPattern, Priority: 1})
	}
	for _, company := range relatedCompanies(parties) {
		company.Priority++
		candidates = append(candidates, company)
	}
	if cleaned := CleanEntityName(entityName); cleaned != "" && IsCompanyName(cleaned) {
		candidates = append(candidates, Candidate{Name: cleaned, Source: SourceEntityName, Priority: 4})
	}

	seen := make(map[string]bool, len(candidates))
	unique := candidates[:0]
	for _, c := range candidates {
		key := Key(c.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, c)
	}
	return unique
}

// ControllingManager picks the best candidate for the manager behind a
// filing, falling back to the raw entity name.
func ControllingManager(entityName string, parties []domain.RelatedParty) (Candidate, []Candidate) {
	candidates := FirmCandidates(entityName, parties)
	if len(candidates) == 0 {
		fallback := Candidate{Name: strings.TrimSpace(entityName), Source: SourceEntityNameRaw, Priority: 5}
		return fallback, []Candidate{fallback}
	}
	return candidates[0], candidates
}

func containsAny(value string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(value, n) {
			return true
		}
	}
	return false
}
