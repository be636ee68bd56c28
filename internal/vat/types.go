// Package vat defines the value objects shared by every layer of the
// gateway: identifiers, validation results, and the error taxonomy.
package vat

import "time"

// ID is a VAT identifier: a canonical country code plus the registration
// number without prefix or formatting characters.
//
// Invariant: CountryCode is upper-cased and supported before any format
// check runs. Construct via Normalize at trust boundaries; direct struct
// literals bypass that guarantee.
type ID struct {
	CountryCode string
	Number      string
}

// String renders the identifier the way it appears on invoices, e.g.
// "SE556012345601".
func (id ID) String() string {
	return id.CountryCode + id.Number
}

// Match is the three-valued trader matching outcome reported by the
// registry, plus Absent for fields the registry did not return at all.
type Match string

const (
	MatchValid        Match = "valid"
	MatchInvalid      Match = "invalid"
	MatchNotProcessed Match = "not_processed"
	MatchAbsent       Match = "absent"
)

// Trader match field names as used in ValidationResult.TraderMatches.
const (
	TraderFieldName        = "name"
	TraderFieldStreet      = "street"
	TraderFieldPostalCode  = "postal_code"
	TraderFieldCity        = "city"
	TraderFieldCompanyType = "company_type"
)

// ValidationResult is the outcome of a single validation call. It is created
// fresh per call and never mutated afterwards; the orchestrator's fallback
// annotation copies the Details map before setting its flag.
type ValidationResult struct {
	Valid            bool             `json:"valid"`
	CountryCode      string           `json:"country_code"`
	VATNumber        string           `json:"vat_number"`
	RequestTimestamp time.Time        `json:"request_timestamp"`
	AdapterID        string           `json:"adapter_id"`
	Name             string           `json:"name,omitempty"`
	Address          string           `json:"address,omitempty"`
	CountryName      string           `json:"country_name,omitempty"`
	RequestID        string           `json:"request_identifier,omitempty"`
	Corrected        bool             `json:"corrected"`
	OriginalNumber   string           `json:"original_vat_number,omitempty"`
	CorrectionNote   string           `json:"correction_message,omitempty"`
	TraderMatches    map[string]Match `json:"trader_matches,omitempty"`
	Details          map[string]any   `json:"details,omitempty"`
}

// WithDetail returns a copy of the result with one extra Details entry.
// The receiver is left untouched so shared results stay immutable.
func (r *ValidationResult) WithDetail(key string, value any) *ValidationResult {
	out := *r
	out.Details = make(map[string]any, len(r.Details)+1)
	for k, v := range r.Details {
		out.Details[k] = v
	}
	out.Details[key] = value
	return &out
}

// Status reports registry availability overall and per member state.
type Status struct {
	Available bool            `json:"available"`
	Countries map[string]bool `json:"countries"`
}
