// Package adapters defines the validation adapter contract and its built-in
// implementations. Adapters advertise capabilities explicitly; callers gate
// optional behavior on capability membership, never on type inspection.
package adapters

import (
	"context"
	"fmt"

	"vatgate/internal/vat"
)

// Capability names one optional or mandatory adapter feature.
type Capability string

const (
	CapValidate        Capability = "validate"
	CapValidateFormat  Capability = "validate_format"
	CapCheckStatus     Capability = "check_status"
	CapTraderMatching  Capability = "trader_matching"
	CapRequestID       Capability = "request_identifier"
	CapBatchValidation Capability = "batch_validation"
)

// CapabilitySet is an immutable set of capabilities.
type CapabilitySet map[Capability]bool

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = true
	}
	return s
}

// Has reports membership.
func (s CapabilitySet) Has(c Capability) bool { return s[c] }

// List returns the member capabilities in unspecified order.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	return out
}

// Options carries the per-call knobs an adapter may honor. Fields outside an
// adapter's capabilities are ignored by that adapter.
type Options struct {
	// TestMode routes remote calls to the registry's sandbox endpoint.
	TestMode bool

	// Requester audit fields, echoed into the registry's consultation log
	// and required for a request identifier to be issued.
	RequesterCountryCode string
	RequesterNumber      string

	// Trader matching fields; each is sent only when non-empty.
	TraderName        string
	TraderStreet      string
	TraderPostalCode  string
	TraderCity        string
	TraderCompanyType string
}

// Adapter is the polymorphic validation contract. Built-in implementations
// are the offline format checker and the VIES REST client; custom adapters
// plug into the orchestrator through this interface alone.
type Adapter interface {
	// ID returns a stable identifier used in results, errors and metrics.
	ID() string

	// Validate checks one identifier and returns a definitive result or a
	// typed error; it never returns a success with ambiguous validity.
	Validate(ctx context.Context, id vat.ID, opts Options) (*vat.ValidationResult, error)

	// ValidateFormat runs the structural check only.
	ValidateFormat(id vat.ID) error

	// CheckStatus reports overall and per-country availability.
	CheckStatus(ctx context.Context) (*vat.Status, error)

	// SupportsCountry reports whether the adapter can validate numbers
	// issued by the given country.
	SupportsCountry(code string) bool

	// Capabilities advertises what this adapter supports.
	Capabilities() CapabilitySet
}

// Registry maintains named adapters so configuration can select primary and
// fallback implementations by name.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its own ID.
func (r *Registry) Register(a Adapter) error {
	id := a.ID()
	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("adapter %s already registered", id)
	}
	r.adapters[id] = a
	return nil
}

// Get retrieves an adapter by ID.
func (r *Registry) Get(id string) (Adapter, bool) {
	a, ok := r.adapters[id]
	return a, ok
}

// All returns every registered adapter.
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}
