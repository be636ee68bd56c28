package adapters

import (
	"context"
	"time"

	"vatgate/internal/vat"
	"vatgate/internal/vat/countries"
)

// OfflineID identifies the built-in format-only adapter.
const OfflineID = "offline"

// Offline validates numbers structurally with no network dependency. There
// is no transport to fail, so Validate always succeeds at the call level: a
// format rejection comes back as valid=false with the reason in Details.
type Offline struct{}

// NewOffline creates the format-only adapter.
func NewOffline() *Offline {
	return &Offline{}
}

func (o *Offline) ID() string { return OfflineID }

func (o *Offline) Validate(_ context.Context, id vat.ID, _ Options) (*vat.ValidationResult, error) {
	res := &vat.ValidationResult{
		CountryCode:      id.CountryCode,
		VATNumber:        id.Number,
		RequestTimestamp: time.Now().UTC(),
		AdapterID:        OfflineID,
	}
	if name, ok := countries.Name(id.CountryCode); ok {
		res.CountryName = name
	}
	if err := vat.ValidateFormat(id); err != nil {
		res.Details = map[string]any{"rejection": err.Error()}
		return res, nil
	}
	res.Valid = true
	return res, nil
}

func (o *Offline) ValidateFormat(id vat.ID) error {
	return vat.ValidateFormat(id)
}

// CheckStatus reports full availability: the format tables are always
// loaded, so every supported country is reachable.
func (o *Offline) CheckStatus(_ context.Context) (*vat.Status, error) {
	per := make(map[string]bool)
	for _, code := range countries.Codes() {
		per[code] = true
	}
	return &vat.Status{Available: true, Countries: per}, nil
}

func (o *Offline) SupportsCountry(code string) bool {
	return countries.IsSupported(code)
}

// Capabilities excludes trader matching and request identifiers: both exist
// only as registry-side features.
func (o *Offline) Capabilities() CapabilitySet {
	return NewCapabilitySet(CapValidate, CapValidateFormat, CapCheckStatus)
}
