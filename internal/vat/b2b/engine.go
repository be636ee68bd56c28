// Package b2b classifies cross-border business transactions under the EU
// VAT Directive and derives the applicable rate and invoice note.
package b2b

import (
	"context"
	"fmt"
	"time"

	"vatgate/internal/platform/metrics"
	"vatgate/internal/vat"
	"vatgate/internal/vat/countries"
	"vatgate/internal/vat/service"
)

// Treatment is the tax treatment of one transaction.
type Treatment string

const (
	TreatmentDomestic      Treatment = "domestic"
	TreatmentReverseCharge Treatment = "reverse_charge"
	TreatmentStandard      Treatment = "standard"
	TreatmentExport        Treatment = "export"
	TreatmentImport        Treatment = "import"
	TreatmentOutsideEU     Treatment = "outside_eu"
)

// Transaction is the outcome of one B2B evaluation. Immutable after
// construction.
type Transaction struct {
	SellerCountry string                `json:"seller_country"`
	BuyerCountry  string                `json:"buyer_country"`
	SellerVAT     string                `json:"seller_vat"`
	BuyerVAT      string                `json:"buyer_vat"`
	SellerValid   bool                  `json:"seller_valid"`
	BuyerValid    bool                  `json:"buyer_valid"`
	SameCountry   bool                  `json:"same_country"`
	CrossBorderEU bool                  `json:"cross_border_eu"`
	ReverseCharge bool                  `json:"reverse_charge"`
	TaxTreatment  Treatment             `json:"tax_treatment"`
	VATRate       *float64              `json:"vat_rate,omitempty"`
	SellerResult  *vat.ValidationResult `json:"seller_result,omitempty"`
	BuyerResult   *vat.ValidationResult `json:"buyer_result,omitempty"`
	InvoiceNote   *Note                 `json:"invoice_note,omitempty"`
	EvaluatedAt   time.Time             `json:"evaluated_at"`
}

// TaxTreatment classifies a transaction from the two country codes and the
// buyer's VAT validity. First match wins; the table is total: every
// combination of the four inputs lands on exactly one branch.
//
// Inputs are alias-normalized first, so ("GR", "EL") is domestic.
func TaxTreatment(sellerCountry, buyerCountry string, buyerVATValid, isB2B bool) Treatment {
	seller := canonical(sellerCountry)
	buyer := canonical(buyerCountry)

	sellerEU := countries.IsEUMember(seller)
	buyerEU := countries.IsEUMember(buyer)

	switch {
	case seller == buyer:
		return TreatmentDomestic
	case sellerEU && buyerEU && isB2B && buyerVATValid:
		return TreatmentReverseCharge
	case sellerEU && buyerEU:
		return TreatmentStandard
	case sellerEU && !buyerEU:
		return TreatmentExport
	case !sellerEU && buyerEU:
		return TreatmentImport
	default:
		return TreatmentOutsideEU
	}
}

func canonical(code string) string {
	if c, ok := countries.Resolve(code); ok {
		return c
	}
	return code
}

// ApplicableRate derives the VAT rate for a treatment. Returns nil for
// outside_eu, where no EU rate applies.
func ApplicableRate(treatment Treatment, sellerCountry, buyerCountry string) *float64 {
	switch treatment {
	case TreatmentDomestic, TreatmentStandard:
		if rate, ok := countries.StandardRate(sellerCountry); ok {
			return &rate
		}
		return nil
	case TreatmentReverseCharge, TreatmentExport:
		zero := 0.0
		return &zero
	case TreatmentImport:
		if rate, ok := countries.StandardRate(buyerCountry); ok {
			return &rate
		}
		return nil
	default:
		return nil
	}
}

// EvaluateOptions tunes one transaction evaluation.
type EvaluateOptions struct {
	// Online validates both identifiers through the orchestrator; offline
	// runs the format-only check.
	Online bool

	// B2B marks the transaction as business-to-business.
	B2B bool

	// Language selects the invoice note translation; English when absent.
	Language string

	// Validation carries the orchestrator's per-call options.
	Validation service.Options
}

// DefaultEvaluateOptions: online validation, B2B, English notes.
func DefaultEvaluateOptions() EvaluateOptions {
	return EvaluateOptions{Online: true, B2B: true, Validation: service.DefaultOptions()}
}

// Engine composes two identifier validations into a transaction
// classification.
type Engine struct {
	validator *service.Service
	metrics   *metrics.Metrics
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine constructs the engine over the validation orchestrator.
func NewEngine(validator *service.Service, opts ...EngineOption) (*Engine, error) {
	if validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	e := &Engine{validator: validator}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EvaluateTransaction validates both identifiers and classifies the
// transaction. The seller is validated before the buyer and a seller
// failure short-circuits: the buyer call is never attempted, preserving
// "seller error wins" observably.
func (e *Engine) EvaluateTransaction(ctx context.Context, sellerCountry, sellerVAT, buyerCountry, buyerVAT string, opts EvaluateOptions) (*Transaction, error) {
	seller := canonical(sellerCountry)
	buyer := canonical(buyerCountry)

	sellerRes, err := e.validateParty(ctx, seller, sellerVAT, opts)
	if err != nil {
		return nil, err
	}
	buyerRes, err := e.validateParty(ctx, buyer, buyerVAT, opts)
	if err != nil {
		return nil, err
	}

	sameCountry := seller == buyer
	crossBorderEU := !sameCountry && countries.IsEUMember(seller) && countries.IsEUMember(buyer)

	treatment := TaxTreatment(seller, buyer, buyerRes.Valid, opts.B2B)
	rate := ApplicableRate(treatment, seller, buyer)

	tx := &Transaction{
		SellerCountry: seller,
		BuyerCountry:  buyer,
		SellerVAT:     sellerRes.VATNumber,
		BuyerVAT:      buyerRes.VATNumber,
		SellerValid:   sellerRes.Valid,
		BuyerValid:    buyerRes.Valid,
		SameCountry:   sameCountry,
		CrossBorderEU: crossBorderEU,
		ReverseCharge: treatment == TreatmentReverseCharge,
		TaxTreatment:  treatment,
		VATRate:       rate,
		SellerResult:  sellerRes,
		BuyerResult:   buyerRes,
		InvoiceNote:   NoteFor(treatment, opts.Language),
		EvaluatedAt:   time.Now().UTC(),
	}
	if e.metrics != nil {
		e.metrics.IncrementTreatments(string(treatment))
	}
	return tx, nil
}

func (e *Engine) validateParty(ctx context.Context, countryCode, number string, opts EvaluateOptions) (*vat.ValidationResult, error) {
	if opts.Online {
		return e.validator.Validate(ctx, countryCode, number, opts.Validation)
	}

	id, err := vat.Normalize(countryCode, number)
	if err != nil {
		return nil, err
	}
	res := &vat.ValidationResult{
		CountryCode:      id.CountryCode,
		VATNumber:        id.Number,
		RequestTimestamp: time.Now().UTC(),
		AdapterID:        "format_only",
	}
	if err := vat.ValidateFormat(id); err != nil {
		res.Details = map[string]any{"rejection": err.Error()}
		return res, nil
	}
	res.Valid = true
	return res, nil
}
