package domain

// MatchLink is a precomputed association between one filing and one
// registration-side fund. The set of link accessions defines which filings
// are already reconciled.
type MatchLink struct {
	ID               int64      `json:"id"`
	Accession        string     `json:"formd_accession"`
	FundID           string     `json:"adv_fund_id"`
	AdviserID        string     `json:"adviser_crd"`
	AdviserLegalName string     `json:"adviser_legal_name"`
	FundName         string     `json:"adv_fund_name"`
	EntityName       string     `json:"formd_entity_name"`
	FilingDate       FilingDate `json:"formd_filing_date"`
	Score            float64    `json:"match_score"`
}
