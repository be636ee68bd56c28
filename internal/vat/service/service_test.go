package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"vatgate/internal/audit"
	"vatgate/internal/vat"
	"vatgate/internal/vat/adapters"
)

// stubAdapter is a scriptable adapter for orchestration tests.
type stubAdapter struct {
	id     string
	result *vat.ValidationResult
	err    error
	status *vat.Status
	caps   adapters.CapabilitySet

	calls   int
	lastID  vat.ID
	lastOpt adapters.Options
}

func newStubAdapter(id string) *stubAdapter {
	return &stubAdapter{
		id:   id,
		caps: adapters.NewCapabilitySet(adapters.CapValidate, adapters.CapValidateFormat, adapters.CapCheckStatus),
	}
}

func (s *stubAdapter) ID() string                         { return s.id }
func (s *stubAdapter) SupportsCountry(string) bool        { return true }
func (s *stubAdapter) ValidateFormat(id vat.ID) error     { return vat.ValidateFormat(id) }
func (s *stubAdapter) Capabilities() adapters.CapabilitySet { return s.caps }

func (s *stubAdapter) Validate(_ context.Context, id vat.ID, opts adapters.Options) (*vat.ValidationResult, error) {
	s.calls++
	s.lastID = id
	s.lastOpt = opts
	return s.result, s.err
}

func (s *stubAdapter) CheckStatus(context.Context) (*vat.Status, error) {
	return s.status, s.err
}

func okResult(adapterID string, id vat.ID) *vat.ValidationResult {
	return &vat.ValidationResult{
		Valid:       true,
		CountryCode: id.CountryCode,
		VATNumber:   id.Number,
		AdapterID:   adapterID,
	}
}

type ServiceSuite struct {
	suite.Suite
	primary  *stubAdapter
	fallback *stubAdapter
	svc      *Service
}

func (s *ServiceSuite) SetupTest() {
	s.primary = newStubAdapter("primary")
	s.fallback = newStubAdapter("fallback")

	svc, err := New(s.primary, WithFallback(s.fallback))
	s.Require().NoError(err)
	s.svc = svc
}

func (s *ServiceSuite) TestPrimarySuccessSkipsFallback() {
	id := vat.ID{CountryCode: "SE", Number: "556012345601"}
	s.primary.result = okResult("primary", id)

	res, err := s.svc.Validate(context.Background(), "SE", "556012345601", DefaultOptions())

	s.Require().NoError(err)
	s.True(res.Valid)
	s.Equal("primary", res.AdapterID)
	s.NotContains(res.Details, "fallback_used")
	s.Equal(0, s.fallback.calls)
}

func (s *ServiceSuite) TestNormalizationRunsBeforeTheAdapter() {
	s.primary.result = okResult("primary", vat.ID{CountryCode: "SE", Number: "556012345601"})

	_, err := s.svc.Validate(context.Background(), "se", " SE 556-012.345 601 ", DefaultOptions())

	s.Require().NoError(err)
	s.Equal(vat.ID{CountryCode: "SE", Number: "556012345601"}, s.primary.lastID)
}

func (s *ServiceSuite) TestNormalizationDisabledPassesNumberThrough() {
	raw := "SE 556-012.345 601"
	s.primary.result = okResult("primary", vat.ID{CountryCode: "SE", Number: raw})

	opts := DefaultOptions()
	opts.Normalize = false
	_, err := s.svc.Validate(context.Background(), "se", raw, opts)

	s.Require().NoError(err)
	s.Equal("SE", s.primary.lastID.CountryCode, "country is still canonicalized")
	s.Equal(raw, s.primary.lastID.Number)
}

func (s *ServiceSuite) TestValidationErrorNeverReachesAnAdapter() {
	_, err := s.svc.Validate(context.Background(), "US", "12345", DefaultOptions())

	var e *vat.Error
	s.Require().ErrorAs(err, &e)
	s.Equal(vat.CategoryValidation, e.Category)
	s.Equal(0, s.primary.calls)
	s.Equal(0, s.fallback.calls)
}

func (s *ServiceSuite) TestStrictModeBlocksMalformedNumbers() {
	opts := DefaultOptions()
	opts.Strict = true

	_, err := s.svc.Validate(context.Background(), "SE", "123", opts)

	var e *vat.Error
	s.Require().ErrorAs(err, &e)
	s.Equal(vat.CodeInvalidLength, e.Code)
	s.Equal(0, s.primary.calls)
}

func (s *ServiceSuite) TestRetryableFailureTriggersFallback() {
	id := vat.ID{CountryCode: "SE", Number: "556012345601"}
	s.primary.err = vat.NewHTTPError("primary", vat.CodeTimeout, "timed out", nil)
	s.fallback.result = okResult("fallback", id)

	res, err := s.svc.Validate(context.Background(), "SE", "556012345601", DefaultOptions())

	s.Require().NoError(err)
	s.Equal("fallback", res.AdapterID)
	s.Equal(true, res.Details["fallback_used"])
	s.Equal(1, s.primary.calls)
	s.Equal(1, s.fallback.calls)
}

func (s *ServiceSuite) TestNonRetryableFailureSkipsFallback() {
	s.primary.err = vat.NewAPIError("primary", "INVALID_INPUT", "malformed")

	_, err := s.svc.Validate(context.Background(), "SE", "556012345601", DefaultOptions())

	s.Require().Error(err)
	s.Equal(0, s.fallback.calls)
}

func (s *ServiceSuite) TestFallbackDisabledByOption() {
	s.primary.err = vat.NewHTTPError("primary", vat.CodeTimeout, "timed out", nil)

	opts := DefaultOptions()
	opts.Fallback = false
	_, err := s.svc.Validate(context.Background(), "SE", "556012345601", opts)

	s.Require().Error(err)
	s.Equal(0, s.fallback.calls)
}

func (s *ServiceSuite) TestDoubleFailureReturnsThePrimaryError() {
	primaryErr := vat.NewAPIError("primary", "SERVICE_UNAVAILABLE", "registry down")
	s.primary.err = primaryErr
	s.fallback.err = vat.NewAdapterError("fallback", "broken", nil)

	_, err := s.svc.Validate(context.Background(), "SE", "556012345601", DefaultOptions())

	var e *vat.Error
	s.Require().ErrorAs(err, &e)
	s.Equal("SERVICE_UNAVAILABLE", e.Code)
	s.Equal("primary", e.AdapterID)
	s.Equal(1, s.fallback.calls)
}

func (s *ServiceSuite) TestCallOptionsAreForwarded() {
	id := vat.ID{CountryCode: "SE", Number: "556012345601"}
	s.primary.result = okResult("primary", id)

	opts := DefaultOptions()
	opts.Call = adapters.Options{TestMode: true, TraderName: "Example AB"}
	_, err := s.svc.Validate(context.Background(), "SE", "556012345601", opts)

	s.Require().NoError(err)
	s.True(s.primary.lastOpt.TestMode)
	s.Equal("Example AB", s.primary.lastOpt.TraderName)
}

func (s *ServiceSuite) TestAdapterOverrideViaRegistry() {
	other := newStubAdapter("other")
	other.result = okResult("other", vat.ID{CountryCode: "SE", Number: "556012345601"})

	registry := adapters.NewRegistry()
	s.Require().NoError(registry.Register(s.primary))
	s.Require().NoError(registry.Register(other))

	svc, err := New(s.primary, WithRegistry(registry))
	s.Require().NoError(err)

	opts := DefaultOptions()
	opts.Adapter = "other"
	res, err := svc.Validate(context.Background(), "SE", "556012345601", opts)

	s.Require().NoError(err)
	s.Equal("other", res.AdapterID)
	s.Equal(0, s.primary.calls)
}

func (s *ServiceSuite) TestUnknownAdapterOverride() {
	opts := DefaultOptions()
	opts.Adapter = "missing"

	_, err := s.svc.Validate(context.Background(), "SE", "556012345601", opts)

	var e *vat.Error
	s.Require().ErrorAs(err, &e)
	s.Equal(vat.CategoryAdapter, e.Category)
	s.Equal(0, s.primary.calls)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func TestNewRequiresPrimary(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestMustValidatePanicsOnError(t *testing.T) {
	primary := newStubAdapter("primary")
	primary.err = vat.NewAPIError("primary", "IP_BLOCKED", "blocked")

	svc, err := New(primary)
	require.NoError(t, err)

	assert.Panics(t, func() {
		svc.MustValidate(context.Background(), "SE", "556012345601", DefaultOptions())
	})
}

func TestValidateFormatUsesNoTransport(t *testing.T) {
	primary := newStubAdapter("primary")
	svc, err := New(primary)
	require.NoError(t, err)

	assert.NoError(t, svc.ValidateFormat("se", "SE556012345601"))
	assert.Error(t, svc.ValidateFormat("SE", "123"))
	assert.Equal(t, 0, primary.calls)
}

func TestCheckStatusCapabilityGate(t *testing.T) {
	primary := newStubAdapter("primary")
	primary.status = &vat.Status{Available: true, Countries: map[string]bool{"SE": true}}

	svc, err := New(primary)
	require.NoError(t, err)

	status, err := svc.CheckStatus(context.Background(), "")
	require.NoError(t, err)
	assert.True(t, status.Available)

	primary.caps = adapters.NewCapabilitySet(adapters.CapValidate)
	_, err = svc.CheckStatus(context.Background(), "")
	var e *vat.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, vat.CategoryAdapter, e.Category)
}

func TestValidateEmitsAuditEvents(t *testing.T) {
	primary := newStubAdapter("primary")
	primary.result = okResult("primary", vat.ID{CountryCode: "SE", Number: "556012345601"})

	store := audit.NewMemoryStore()
	svc, err := New(primary, WithAuditor(audit.NewPublisher(store)))
	require.NoError(t, err)

	_, err = svc.Validate(context.Background(), "SE", "556012345601", DefaultOptions())
	require.NoError(t, err)

	events, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionValidate, events[0].Action)
	assert.Equal(t, "SE", events[0].CountryCode)
	assert.Equal(t, "valid", events[0].Outcome)
	require.NotNil(t, events[0].Valid)
	assert.True(t, *events[0].Valid)
}
