package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vatgate/internal/vat"
	"vatgate/internal/vat/countries"
)

// VIESID identifies the built-in remote adapter.
const VIESID = "vies"

// DefaultBaseURL is the production VIES REST endpoint.
const DefaultBaseURL = "https://ec.europa.eu/taxation_customs/vies/rest-api"

const (
	checkVatPath  = "/check-vat-number"
	testVatPath   = "/check-vat-test-service"
	checkStatPath = "/check-status"
)

// Doer is the narrow transport boundary the adapter consumes. Production
// wiring passes *http.Client; tests pass stubs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// VIES validates identifiers against the European Commission's VIES REST
// service, with bounded retry on the closed transient failure set.
type VIES struct {
	baseURL string
	doer    Doer
	policy  RetryPolicy
}

// VIESOption configures the adapter.
type VIESOption func(*VIES)

// WithBaseURL points the adapter at a non-default registry endpoint.
func WithBaseURL(baseURL string) VIESOption {
	return func(v *VIES) {
		v.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithDoer injects the HTTP transport.
func WithDoer(d Doer) VIESOption {
	return func(v *VIES) {
		v.doer = d
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) VIESOption {
	return func(v *VIES) {
		v.policy = p
	}
}

// NewVIES creates the remote adapter with a 30s default transport timeout.
func NewVIES(opts ...VIESOption) *VIES {
	v := &VIES{
		baseURL: DefaultBaseURL,
		doer:    &http.Client{Timeout: 30 * time.Second},
		policy:  DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *VIES) ID() string { return VIESID }

func (v *VIES) SupportsCountry(code string) bool {
	return countries.IsSupported(code)
}

func (v *VIES) ValidateFormat(id vat.ID) error {
	return vat.ValidateFormat(id)
}

func (v *VIES) Capabilities() CapabilitySet {
	return NewCapabilitySet(CapValidate, CapValidateFormat, CapCheckStatus,
		CapTraderMatching, CapRequestID)
}

// checkVatRequest is the wire shape of the validation call. Optional fields
// are sent only when non-empty.
type checkVatRequest struct {
	CountryCode              string `json:"countryCode"`
	VATNumber                string `json:"vatNumber"`
	RequesterMemberStateCode string `json:"requesterMemberStateCode,omitempty"`
	RequesterNumber          string `json:"requesterNumber,omitempty"`
	TraderName               string `json:"traderName,omitempty"`
	TraderStreet             string `json:"traderStreet,omitempty"`
	TraderPostalCode         string `json:"traderPostalCode,omitempty"`
	TraderCity               string `json:"traderCity,omitempty"`
	TraderCompanyType        string `json:"traderCompanyType,omitempty"`
}

type checkVatResponse struct {
	Valid                  bool       `json:"valid"`
	CountryCode            string     `json:"countryCode"`
	VATNumber              string     `json:"vatNumber"`
	RequestDate            string     `json:"requestDate"`
	Name                   string     `json:"name"`
	Address                string     `json:"address"`
	RequestIdentifier      string     `json:"requestIdentifier"`
	VATNumberCorrected     bool       `json:"vatNumberCorrected"`
	UserError              string     `json:"userError"`
	TraderNameMatch        string     `json:"traderNameMatch"`
	TraderStreetMatch      string     `json:"traderStreetMatch"`
	TraderPostalCodeMatch  string     `json:"traderPostalCodeMatch"`
	TraderCityMatch        string     `json:"traderCityMatch"`
	TraderCompanyTypeMatch string     `json:"traderCompanyTypeMatch"`
	ErrorWrappers          []apiFault `json:"errorWrappers"`
}

type apiFault struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type faultResponse struct {
	ErrorWrappers []apiFault `json:"errorWrappers"`
	Error         string     `json:"error"`
	Message       string     `json:"message"`
}

type statusResponse struct {
	Vow struct {
		Available bool `json:"available"`
	} `json:"vow"`
	Countries []struct {
		CountryCode  string `json:"countryCode"`
		Availability string `json:"availability"`
	} `json:"countries"`
}

// Validate posts the identifier to the registry and parses the outcome.
// Requester audit and trader matching fields from opts are forwarded; match
// outcomes come back as the three-valued enum per field.
func (v *VIES) Validate(ctx context.Context, id vat.ID, opts Options) (*vat.ValidationResult, error) {
	payload := checkVatRequest{
		CountryCode:              id.CountryCode,
		VATNumber:                id.Number,
		RequesterMemberStateCode: opts.RequesterCountryCode,
		RequesterNumber:          opts.RequesterNumber,
		TraderName:               opts.TraderName,
		TraderStreet:             opts.TraderStreet,
		TraderPostalCode:         opts.TraderPostalCode,
		TraderCity:               opts.TraderCity,
		TraderCompanyType:        opts.TraderCompanyType,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, vat.NewAdapterError(VIESID, "marshal request", err)
	}

	path := checkVatPath
	if opts.TestMode {
		path = testVatPath
	}

	status, respBody, reqErr := v.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if reqErr != nil {
		return nil, reqErr
	}

	switch {
	case status >= 200 && status < 300:
		return v.parseCheckVat(id, respBody)
	case status == http.StatusForbidden:
		return nil, vat.NewAPIError(VIESID, vat.CodeForbidden, "access to the registry is forbidden")
	case status == http.StatusTooManyRequests:
		return nil, vat.NewAPIError(VIESID, vat.CodeRateLimited, "registry rate limit exceeded")
	case status == http.StatusBadRequest || status >= 500:
		return nil, v.parseFault(status, respBody)
	default:
		return nil, vat.NewHTTPError(VIESID, "",
			fmt.Sprintf("unexpected registry status %d", status), nil)
	}
}

func (v *VIES) parseCheckVat(sent vat.ID, body []byte) (*vat.ValidationResult, error) {
	var resp checkVatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, vat.NewAdapterError(VIESID, "decode registry response", err)
	}
	if resp.UserError != "" && resp.UserError != "VALID" && resp.UserError != "INVALID" {
		return nil, vat.NewAPIError(VIESID, resp.UserError, faultMessage(resp.UserError, ""))
	}

	res := &vat.ValidationResult{
		Valid:            resp.Valid,
		CountryCode:      sent.CountryCode,
		VATNumber:        sent.Number,
		RequestTimestamp: parseRequestDate(resp.RequestDate),
		AdapterID:        VIESID,
		Name:             strings.TrimSpace(resp.Name),
		Address:          strings.TrimSpace(resp.Address),
		RequestID:        resp.RequestIdentifier,
		TraderMatches:    parseMatches(resp),
	}
	if name, ok := countries.Name(sent.CountryCode); ok {
		res.CountryName = name
	}

	// The registry may echo back a normalized number; record the
	// correction so callers can persist the canonical form.
	echoed := resp.VATNumber
	if resp.VATNumberCorrected || (echoed != "" && echoed != sent.Number) {
		res.Corrected = true
		res.OriginalNumber = sent.Number
		if echoed != "" {
			res.VATNumber = echoed
		}
		res.CorrectionNote = fmt.Sprintf("registry corrected %q to %q", sent.Number, res.VATNumber)
	}
	return res, nil
}

func parseMatches(resp checkVatResponse) map[string]vat.Match {
	return map[string]vat.Match{
		vat.TraderFieldName:        parseMatch(resp.TraderNameMatch),
		vat.TraderFieldStreet:      parseMatch(resp.TraderStreetMatch),
		vat.TraderFieldPostalCode:  parseMatch(resp.TraderPostalCodeMatch),
		vat.TraderFieldCity:        parseMatch(resp.TraderCityMatch),
		vat.TraderFieldCompanyType: parseMatch(resp.TraderCompanyTypeMatch),
	}
}

func parseMatch(s string) vat.Match {
	switch s {
	case "VALID":
		return vat.MatchValid
	case "INVALID":
		return vat.MatchInvalid
	case "NOT_PROCESSED":
		return vat.MatchNotProcessed
	default:
		return vat.MatchAbsent
	}
}

// parseRequestDate accepts the registry's ISO-8601 timestamp, falling back
// to the timezone-less variant some member states emit. Unparseable dates
// degrade to the local request time rather than failing the validation.
func parseRequestDate(s string) time.Time {
	if s == "" {
		return time.Now().UTC()
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}

// parseFault extracts a machine code and message from a 400/500 body:
// first error wrapper, then top-level fields, then the known-code table.
func (v *VIES) parseFault(status int, body []byte) error {
	var fault faultResponse
	_ = json.Unmarshal(body, &fault)

	code := fault.Error
	message := fault.Message
	if len(fault.ErrorWrappers) > 0 {
		if fault.ErrorWrappers[0].Error != "" {
			code = fault.ErrorWrappers[0].Error
		}
		if fault.ErrorWrappers[0].Message != "" {
			message = fault.ErrorWrappers[0].Message
		}
	}
	if code == "" {
		return vat.NewHTTPError(VIESID, "",
			fmt.Sprintf("registry returned status %d with no fault code", status), nil)
	}
	return vat.NewAPIError(VIESID, code, faultMessage(code, message))
}

// faultMessages maps the registry's documented fault codes to human
// messages, used when the response carries a code without a message.
var faultMessages = map[string]string{
	"INVALID_INPUT":                  "the country code or VAT number is malformed",
	"INVALID_REQUESTER_INFO":         "the requester member state code or number is malformed",
	"SERVICE_UNAVAILABLE":            "the registry service is unavailable",
	"MS_UNAVAILABLE":                 "the member state service is unavailable",
	"MS_MAX_CONCURRENT_REQ":          "too many concurrent requests for this member state",
	"MS_MAX_CONCURRENT_REQ_TIME":     "too many concurrent requests for this member state in the allowed window",
	"GLOBAL_MAX_CONCURRENT_REQ":      "too many concurrent requests against the registry",
	"GLOBAL_MAX_CONCURRENT_REQ_TIME": "too many concurrent requests against the registry in the allowed window",
	"TIMEOUT":                        "the member state service did not answer in time",
	"SERVER_BUSY":                    "the registry is busy, retry later",
	"VAT_BLOCKED":                    "the VAT number is blocked for consultation",
	"IP_BLOCKED":                     "the requesting address is blocked",
}

func faultMessage(code, message string) string {
	if message != "" {
		return message
	}
	if m, ok := faultMessages[code]; ok {
		return m
	}
	return "registry reported " + code
}

// CheckStatus fetches registry availability, applying the same retry loop as
// validation. Every availability string other than "Available" maps false.
func (v *VIES) CheckStatus(ctx context.Context) (*vat.Status, error) {
	status, body, reqErr := v.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+checkStatPath, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if reqErr != nil {
		return nil, reqErr
	}
	if status < 200 || status >= 300 {
		return nil, v.parseFault(status, body)
	}

	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, vat.NewAdapterError(VIESID, "decode status response", err)
	}
	per := make(map[string]bool, len(resp.Countries))
	for _, c := range resp.Countries {
		per[c.CountryCode] = c.Availability == "Available"
	}
	return &vat.Status{Available: resp.Vow.Available, Countries: per}, nil
}

// doWithRetry runs the bounded attempt loop. Total attempts are
// 1 + MaxRetries; any 2xx-4xx terminates, 5xx and the closed transient
// transport set retry after the policy's backoff.
func (v *VIES) doWithRetry(ctx context.Context, build func() (*http.Request, error)) (int, []byte, error) {
	attempts := v.policy.MaxRetries + 1

	var lastStatus int
	var lastBody []byte
	var lastErr *vat.Error

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, v.policy.Backoff(attempt-1)); err != nil {
				break
			}
		}

		req, err := build()
		if err != nil {
			return 0, nil, vat.NewAdapterError(VIESID, "build request", err)
		}

		resp, err := v.doer.Do(req)
		if err != nil {
			lastErr = classifyTransportError(VIESID, err)
			lastStatus, lastBody = 0, nil
			if !lastErr.Retryable {
				return 0, nil, lastErr
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = classifyTransportError(VIESID, readErr)
			lastStatus, lastBody = 0, nil
			if !lastErr.Retryable {
				return 0, nil, lastErr
			}
			continue
		}

		lastStatus, lastBody, lastErr = resp.StatusCode, body, nil
		if resp.StatusCode < 500 {
			return resp.StatusCode, body, nil
		}
	}

	if lastErr != nil {
		return 0, nil, lastErr
	}
	return lastStatus, lastBody, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
