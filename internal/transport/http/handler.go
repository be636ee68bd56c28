// Package httptransport is the thin HTTP layer. Handlers delegate to the
// domain services without embedding business logic so transport concerns
// remain isolated.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vatgate/internal/audit"
	"vatgate/internal/vat/b2b"
	"vatgate/internal/vat/service"
)

// Handler wires gateway endpoints to the validation and B2B services.
type Handler struct {
	validator *service.Service
	engine    *b2b.Engine
	auditor   *audit.Publisher
	logger    *slog.Logger
}

// New constructs the handler with its dependencies. auditor may be nil when
// the audit trail is not exposed.
func New(validator *service.Service, engine *b2b.Engine, auditor *audit.Publisher, logger *slog.Logger) *Handler {
	return &Handler{validator: validator, engine: engine, auditor: auditor, logger: logger}
}

// NewRouter mounts all public endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.HandleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Route("/v1", func(r chi.Router) {
		r.Post("/vat/validate", h.HandleValidate)
		r.Post("/vat/validate-format", h.HandleValidateFormat)
		r.Get("/vat/status", h.HandleStatus)
		r.Post("/transactions/evaluate", h.HandleEvaluate)
		r.Get("/audit/events", h.HandleAuditEvents)
	})
	return r
}

type validateRequest struct {
	CountryCode string `json:"country_code"`
	VATNumber   string `json:"vat_number"`

	Adapter   string `json:"adapter,omitempty"`
	Fallback  *bool  `json:"fallback,omitempty"`
	Normalize *bool  `json:"normalize,omitempty"`
	Strict    bool   `json:"strict,omitempty"`
	TestMode  bool   `json:"test_mode,omitempty"`

	RequesterCountryCode string `json:"requester_country_code,omitempty"`
	RequesterNumber      string `json:"requester_number,omitempty"`
	TraderName           string `json:"trader_name,omitempty"`
	TraderStreet         string `json:"trader_street,omitempty"`
	TraderPostalCode     string `json:"trader_postal_code,omitempty"`
	TraderCity           string `json:"trader_city,omitempty"`
	TraderCompanyType    string `json:"trader_company_type,omitempty"`
}

func (req validateRequest) options() service.Options {
	opts := service.DefaultOptions()
	opts.Adapter = req.Adapter
	if req.Fallback != nil {
		opts.Fallback = *req.Fallback
	}
	if req.Normalize != nil {
		opts.Normalize = *req.Normalize
	}
	opts.Strict = req.Strict
	opts.Call.TestMode = req.TestMode
	opts.Call.RequesterCountryCode = req.RequesterCountryCode
	opts.Call.RequesterNumber = req.RequesterNumber
	opts.Call.TraderName = req.TraderName
	opts.Call.TraderStreet = req.TraderStreet
	opts.Call.TraderPostalCode = req.TraderPostalCode
	opts.Call.TraderCity = req.TraderCity
	opts.Call.TraderCompanyType = req.TraderCompanyType
	return opts
}

// HandleValidate handles POST /v1/vat/validate.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[validateRequest](w, r)
	if !ok {
		return
	}
	res, err := h.validator.Validate(r.Context(), req.CountryCode, req.VATNumber, req.options())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type validateFormatRequest struct {
	CountryCode string `json:"country_code"`
	VATNumber   string `json:"vat_number"`
}

// HandleValidateFormat handles POST /v1/vat/validate-format.
func (h *Handler) HandleValidateFormat(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[validateFormatRequest](w, r)
	if !ok {
		return
	}
	if err := h.validator.ValidateFormat(req.CountryCode, req.VATNumber); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"valid_format": true})
}

// HandleStatus handles GET /v1/vat/status. The optional adapter query
// parameter selects a registered adapter by name.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.validator.CheckStatus(r.Context(), r.URL.Query().Get("adapter"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type evaluateRequest struct {
	SellerCountry string `json:"seller_country"`
	SellerVAT     string `json:"seller_vat"`
	BuyerCountry  string `json:"buyer_country"`
	BuyerVAT      string `json:"buyer_vat"`

	Online   *bool  `json:"validate_online,omitempty"`
	B2B      *bool  `json:"is_b2b,omitempty"`
	Language string `json:"language,omitempty"`
	TestMode bool   `json:"test_mode,omitempty"`
}

// HandleEvaluate handles POST /v1/transactions/evaluate.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	req, ok := decode[evaluateRequest](w, r)
	if !ok {
		return
	}

	opts := b2b.DefaultEvaluateOptions()
	if req.Online != nil {
		opts.Online = *req.Online
	}
	if req.B2B != nil {
		opts.B2B = *req.B2B
	}
	opts.Language = req.Language
	opts.Validation.Call.TestMode = req.TestMode

	tx, err := h.engine.EvaluateTransaction(r.Context(),
		req.SellerCountry, req.SellerVAT, req.BuyerCountry, req.BuyerVAT, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// HandleAuditEvents handles GET /v1/audit/events.
func (h *Handler) HandleAuditEvents(w http.ResponseWriter, r *http.Request) {
	if h.auditor == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{
			Error: "not_found", Message: "audit trail is not enabled"})
		return
	}
	events, err := h.auditor.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// HandleHealth handles GET /healthz.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
