package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vatgate/internal/vat"
)

// fastPolicy keeps retry tests quick without changing the attempt count.
func fastPolicy(maxRetries int) RetryPolicy {
	return RetryPolicy{MaxRetries: maxRetries, Delay: time.Millisecond, Strategy: BackoffConstant}
}

func newTestVIES(t *testing.T, handler http.HandlerFunc, opts ...VIESOption) *VIES {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]VIESOption{WithBaseURL(srv.URL), WithRetryPolicy(fastPolicy(3))}, opts...)
	return NewVIES(opts...)
}

func TestVIESValidate(t *testing.T) {
	ctx := context.Background()
	id := vat.ID{CountryCode: "SE", Number: "556012345601"}

	t.Run("valid number", func(t *testing.T) {
		v := newTestVIES(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, checkVatPath, r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"valid":             true,
				"countryCode":       "SE",
				"vatNumber":         "556012345601",
				"requestDate":       "2024-05-01T10:30:00+02:00",
				"name":              "EXAMPLE AB",
				"address":           "KUNGSGATAN 1\n111 43 STOCKHOLM",
				"requestIdentifier": "WAPIAAAAYxxxxxxx",
			})
		})

		res, err := v.Validate(ctx, id, Options{})
		require.NoError(t, err)
		assert.True(t, res.Valid)
		assert.Equal(t, "SE", res.CountryCode)
		assert.Equal(t, "556012345601", res.VATNumber)
		assert.Equal(t, "Sweden", res.CountryName)
		assert.Equal(t, "EXAMPLE AB", res.Name)
		assert.Equal(t, "WAPIAAAAYxxxxxxx", res.RequestID)
		assert.Equal(t, VIESID, res.AdapterID)
		assert.False(t, res.Corrected)
		assert.Equal(t, 2024, res.RequestTimestamp.Year())
	})

	t.Run("timezone-less request date", func(t *testing.T) {
		v := newTestVIES(t, func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"valid":       true,
				"countryCode": "SE",
				"vatNumber":   "556012345601",
				"requestDate": "2024-05-01T10:30:00",
			})
		})

		res, err := v.Validate(ctx, id, Options{})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC), res.RequestTimestamp)
	})

	t.Run("number correction recorded", func(t *testing.T) {
		v := newTestVIES(t, func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"valid":       true,
				"countryCode": "SE",
				"vatNumber":   "556012345602",
			})
		})

		res, err := v.Validate(ctx, id, Options{})
		require.NoError(t, err)
		assert.True(t, res.Corrected)
		assert.Equal(t, "556012345601", res.OriginalNumber)
		assert.Equal(t, "556012345602", res.VATNumber)
		assert.NotEmpty(t, res.CorrectionNote)
	})

	t.Run("trader match outcomes", func(t *testing.T) {
		v := newTestVIES(t, func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"valid":                 true,
				"countryCode":           "SE",
				"vatNumber":             "556012345601",
				"traderNameMatch":       "VALID",
				"traderStreetMatch":     "INVALID",
				"traderPostalCodeMatch": "NOT_PROCESSED",
			})
		})

		res, err := v.Validate(ctx, id, Options{TraderName: "Example AB"})
		require.NoError(t, err)
		assert.Equal(t, vat.MatchValid, res.TraderMatches[vat.TraderFieldName])
		assert.Equal(t, vat.MatchInvalid, res.TraderMatches[vat.TraderFieldStreet])
		assert.Equal(t, vat.MatchNotProcessed, res.TraderMatches[vat.TraderFieldPostalCode])
		assert.Equal(t, vat.MatchAbsent, res.TraderMatches[vat.TraderFieldCity])
		assert.Equal(t, vat.MatchAbsent, res.TraderMatches[vat.TraderFieldCompanyType])
	})

	t.Run("optional fields sent only when non-empty", func(t *testing.T) {
		var captured map[string]any
		v := newTestVIES(t, func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
			_ = json.NewEncoder(w).Encode(map[string]any{"valid": true, "countryCode": "SE", "vatNumber": "556012345601"})
		})

		_, err := v.Validate(ctx, id, Options{TraderName: "Example AB"})
		require.NoError(t, err)
		assert.Contains(t, captured, "traderName")
		assert.NotContains(t, captured, "traderStreet")
		assert.NotContains(t, captured, "requesterMemberStateCode")
	})

	t.Run("test mode routes to the sandbox endpoint", func(t *testing.T) {
		var path string
		v := newTestVIES(t, func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			_ = json.NewEncoder(w).Encode(map[string]any{"valid": true, "countryCode": "SE", "vatNumber": "556012345601"})
		})

		_, err := v.Validate(ctx, id, Options{TestMode: true})
		require.NoError(t, err)
		assert.Equal(t, testVatPath, path)
	})
}

func TestVIESFaults(t *testing.T) {
	ctx := context.Background()
	id := vat.ID{CountryCode: "SE", Number: "556012345601"}

	t.Run("400 fault is terminal on first attempt", func(t *testing.T) {
		var attempts atomic.Int32
		v := newTestVIES(t, func(w http.ResponseWriter, _ *http.Request) {
			attempts.Add(1)
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"errorWrappers": []map[string]string{{"error": "INVALID_INPUT"}},
			})
		})

		_, err := v.Validate(ctx, id, Options{})
		var e *vat.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, vat.CategoryAPI, e.Category)
		assert.Equal(t, "INVALID_INPUT", e.Code)
		assert.False(t, e.Retryable)
		assert.NotEmpty(t, e.Message, "known codes get a human message")
		assert.Equal(t, int32(1), attempts.Load())
	})

	t.Run("fault falls back to top-level fields", func(t *testing.T) {
		v := newTestVIES(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "IP_BLOCKED", "message": "blocked"})
		})

		_, err := v.Validate(ctx, id, Options{})
		var e *vat.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, "IP_BLOCKED", e.Code)
		assert.Equal(t, "blocked", e.Message)
	})

	t.Run("403 maps to forbidden", func(t *testing.T) {
		v := newTestVIES(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})

		_, err := v.Validate(ctx, id, Options{})
		var e *vat.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, vat.CodeForbidden, e.Code)
	})

	t.Run("429 maps to rate limited", func(t *testing.T) {
		v := newTestVIES(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})

		_, err := v.Validate(ctx, id, Options{})
		var e *vat.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, vat.CodeRateLimited, e.Code)
	})

	t.Run("unexpected status is an http error", func(t *testing.T) {
		v := newTestVIES(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})

		_, err := v.Validate(ctx, id, Options{})
		var e *vat.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, vat.CategoryHTTP, e.Category)
		assert.False(t, e.Retryable)
	})
}

// maxRetries=3 against a permanently failing upstream must produce exactly
// four attempts: the initial call plus three retries.
func TestVIESRetriesServerErrors(t *testing.T) {
	var attempts atomic.Int32
	v := newTestVIES(t, func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errorWrappers": []map[string]string{{"error": "SERVICE_UNAVAILABLE"}},
		})
	})

	_, err := v.Validate(context.Background(), vat.ID{CountryCode: "SE", Number: "556012345601"}, Options{})
	require.Error(t, err)
	assert.Equal(t, int32(4), attempts.Load())

	var e *vat.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "SERVICE_UNAVAILABLE", e.Code)
	assert.True(t, e.Retryable, "the terminal error still reports its retryable class for fallback gating")
}

func TestVIESRecoversMidRetry(t *testing.T) {
	var attempts atomic.Int32
	v := newTestVIES(t, func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"valid": true, "countryCode": "SE", "vatNumber": "556012345601"})
	})

	res, err := v.Validate(context.Background(), vat.ID{CountryCode: "SE", Number: "556012345601"}, Options{})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, int32(3), attempts.Load())
}

// refusingDoer simulates a transport that never reaches the server.
type refusingDoer struct {
	calls atomic.Int32
}

func (d *refusingDoer) Do(_ *http.Request) (*http.Response, error) {
	d.calls.Add(1)
	return nil, syscall.ECONNREFUSED
}

func TestVIESRetriesTransportFailures(t *testing.T) {
	doer := &refusingDoer{}
	v := NewVIES(WithDoer(doer), WithRetryPolicy(fastPolicy(2)))

	_, err := v.Validate(context.Background(), vat.ID{CountryCode: "SE", Number: "556012345601"}, Options{})
	var e *vat.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, vat.CodeConnRefused, e.Code)
	assert.Equal(t, int32(3), doer.calls.Load(), "1 attempt + 2 retries")
}

func TestVIESCheckStatus(t *testing.T) {
	v := newTestVIES(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, checkStatPath, r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"vow": map[string]bool{"available": true},
			"countries": []map[string]string{
				{"countryCode": "SE", "availability": "Available"},
				{"countryCode": "DE", "availability": "Unavailable"},
				{"countryCode": "EL", "availability": "Monitoring Disabled"},
			},
		})
	})

	status, err := v.CheckStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Available)
	assert.True(t, status.Countries["SE"])
	assert.False(t, status.Countries["DE"])
	assert.False(t, status.Countries["EL"], "anything but Available maps to false")
}

func TestVIESCapabilities(t *testing.T) {
	caps := NewVIES().Capabilities()
	assert.True(t, caps.Has(CapTraderMatching))
	assert.True(t, caps.Has(CapRequestID))
	assert.False(t, caps.Has(CapBatchValidation))
}
