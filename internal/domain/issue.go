package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DiscrepancyType enumerates the six issue classes the engine produces.
type DiscrepancyType string

const (
	DiscrepancyNeedsInitialADV   DiscrepancyType = "needs_initial_adv_filing"
	DiscrepancyOverdueAmendment  DiscrepancyType = "overdue_annual_amendment"
	DiscrepancyVCExemption       DiscrepancyType = "vc_exemption_violation"
	DiscrepancyFundTypeMismatch  DiscrepancyType = "fund_type_mismatch"
	DiscrepancyMissingFundInADV  DiscrepancyType = "missing_fund_in_adv"
	DiscrepancyExemptionMismatch DiscrepancyType = "exemption_mismatch"
)

// DiscrepancyTypes lists every type in the fixed run order.
var DiscrepancyTypes = []DiscrepancyType{
	DiscrepancyNeedsInitialADV,
	DiscrepancyOverdueAmendment,
	DiscrepancyVCExemption,
	DiscrepancyFundTypeMismatch,
	DiscrepancyMissingFundInADV,
	DiscrepancyExemptionMismatch,
}

// ParseDiscrepancyType accepts the wire value in any case, with dashes or
// underscores.
func ParseDiscrepancyType(raw string) (DiscrepancyType, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "-", "_")
	for _, t := range DiscrepancyTypes {
		if string(t) == value {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown discrepancy type %q", raw)
}

// Severity ranks how urgently an issue needs attention.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities from most (0) to least urgent.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// Metadata carries the evidence behind an issue. It is stored as a JSON object.
type Metadata map[string]any

// ComplianceIssue is one detected discrepancy. Issues are never updated in
// place; every run replaces the whole set for a type.
type ComplianceIssue struct {
	ID              uuid.UUID       `json:"id"`
	Type            DiscrepancyType `json:"discrepancy_type"`
	Severity        Severity        `json:"severity"`
	Description     string          `json:"description"`
	AdviserID       *string         `json:"adviser_crd,omitempty"`
	FilerID         *string         `json:"form_d_cik,omitempty"`
	Accession       *string         `json:"formd_accession,omitempty"`
	FundReferenceID *string         `json:"fund_reference_id,omitempty"`
	Metadata        Metadata        `json:"metadata"`
	DetectedAt      time.Time       `json:"detected_at"`
}

// NewComplianceIssue assigns an id and detection time to a new issue.
func NewComplianceIssue(t DiscrepancyType, severity Severity, description string, detectedAt time.Time) ComplianceIssue {
	return ComplianceIssue{
		ID:          uuid.New(),
		Type:        t,
		Severity:    severity,
		Description: description,
		Metadata:    Metadata{},
		DetectedAt:  detectedAt.UTC(),
	}
}

// MetadataJSON marshals metadata into the JSONB layout stored in Postgres.
func (i ComplianceIssue) MetadataJSON() (json.RawMessage, error) {
	metadata := i.Metadata
	if metadata == nil {
		metadata = Metadata{}
	}
	return json.Marshal(metadata)
}

// OptionalString returns nil for blank values so optional link-back columns stay NULL.
func OptionalString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	v := value
	return &v
}
