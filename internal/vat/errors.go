package vat

import (
	"errors"
	"fmt"
)

// Category is the normalized failure taxonomy. Every error leaving an
// adapter or the orchestrator carries exactly one category.
type Category string

const (
	// CategoryValidation covers bad input: unknown country code, bad
	// length or pattern. Never retried, never sent to the network.
	CategoryValidation Category = "validation_error"

	// CategoryAPI means the registry understood the request and reported
	// a business-level rejection with a machine code.
	CategoryAPI Category = "api_error"

	// CategoryHTTP covers transport and protocol failures.
	CategoryHTTP Category = "http_error"

	// CategoryAdapter covers adapter-internal failures with no external
	// cause.
	CategoryAdapter Category = "adapter_error"

	// CategoryUnknown is the catch-all for unclassified failures.
	CategoryUnknown Category = "unknown"
)

// Machine codes used across adapters. Registry-reported codes (for example
// MS_UNAVAILABLE) pass through verbatim and are not enumerated here.
const (
	CodeInvalidCountry = "invalid_country_code"
	CodeEmptyNumber    = "empty_vat_number"
	CodeInvalidLength  = "invalid_length"
	CodeInvalidFormat  = "invalid_format"
	CodeTimeout        = "timeout"
	CodeConnRefused    = "connection_refused"
	CodeConnClosed     = "connection_closed"
	CodeHostUnreach    = "host_unreachable"
	CodeNetUnreach     = "network_unreachable"
	CodeForbidden      = "forbidden"
	CodeRateLimited    = "rate_limited"
)

// Error is the typed failure passed by value up the call chain. Retry is the
// remote adapter's responsibility; the error itself only records whether a
// retry or adapter fallback is worth attempting.
type Error struct {
	Category  Category
	Code      string
	Message   string
	AdapterID string
	Retryable bool
	Details   map[string]any
	Cause     error
}

func (e *Error) Error() string {
	switch {
	case e.AdapterID != "" && e.Code != "":
		return fmt.Sprintf("%s [%s/%s]: %s", e.AdapterID, e.Category, e.Code, e.Message)
	case e.Code != "":
		return fmt.Sprintf("[%s/%s]: %s", e.Category, e.Code, e.Message)
	default:
		return fmt.Sprintf("[%s]: %s", e.Category, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewValidationError builds a non-retryable input rejection.
func NewValidationError(code, message string) *Error {
	return &Error{Category: CategoryValidation, Code: code, Message: message}
}

// NewAPIError builds a registry-reported rejection. Retryability follows the
// closed set of transient registry codes.
func NewAPIError(adapterID, code, message string) *Error {
	return &Error{
		Category:  CategoryAPI,
		Code:      code,
		Message:   message,
		AdapterID: adapterID,
		Retryable: retryableAPICodes[code],
	}
}

// NewHTTPError builds a transport-level failure. Retryability follows the
// closed set of transient transport codes.
func NewHTTPError(adapterID, code, message string, cause error) *Error {
	return &Error{
		Category:  CategoryHTTP,
		Code:      code,
		Message:   message,
		AdapterID: adapterID,
		Retryable: retryableTransportCodes[code],
		Cause:     cause,
	}
}

// NewAdapterError builds an adapter-internal failure.
func NewAdapterError(adapterID, message string, cause error) *Error {
	return &Error{Category: CategoryAdapter, Message: message, AdapterID: adapterID, Cause: cause}
}

// retryableTransportCodes is the closed transient transport set. Anything
// outside it is terminal on first occurrence.
var retryableTransportCodes = map[string]bool{
	CodeTimeout:     true,
	CodeConnRefused: true,
	CodeConnClosed:  true,
	CodeHostUnreach: true,
	CodeNetUnreach:  true,
}

// retryableAPICodes is the closed set of registry codes that signal a
// transient condition worth retrying or falling back on.
var retryableAPICodes = map[string]bool{
	"GLOBAL_MAX_CONCURRENT_REQ":      true,
	"GLOBAL_MAX_CONCURRENT_REQ_TIME": true,
	"MS_MAX_CONCURRENT_REQ":          true,
	"SERVICE_UNAVAILABLE":            true,
	"SERVER_BUSY":                    true,
}

// IsRetryable reports whether err is a *Error flagged retryable. Non-typed
// errors are never retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// CategoryOf extracts the category, defaulting to CategoryUnknown for
// untyped errors.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryUnknown
}
