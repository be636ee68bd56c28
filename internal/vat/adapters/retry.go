package adapters

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"syscall"
	"time"

	"vatgate/internal/vat"
)

// BackoffStrategy selects how the delay grows between retry attempts.
type BackoffStrategy string

const (
	// BackoffConstant waits the base delay every time.
	BackoffConstant BackoffStrategy = "constant"

	// BackoffExponential waits delay * 2^attempt.
	BackoffExponential BackoffStrategy = "exponential"

	// BackoffJittered waits a uniform random duration in
	// [0, delay * 2^attempt).
	BackoffJittered BackoffStrategy = "jittered"
)

// RetryPolicy bounds the remote adapter's retry loop. Delays happen between
// attempts; the per-attempt time bound comes from the transport timeout, so
// worst-case latency is attempts * (timeout + backoff).
type RetryPolicy struct {
	MaxRetries int
	Delay      time.Duration
	Strategy   BackoffStrategy
}

// DefaultRetryPolicy matches the registry's published guidance: three
// retries with exponential backoff off a one second base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, Delay: time.Second, Strategy: BackoffExponential}
}

// Backoff computes the delay after the given zero-based attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	switch p.Strategy {
	case BackoffConstant:
		return p.Delay
	case BackoffJittered:
		max := p.Delay << uint(attempt)
		if max <= 0 {
			return 0
		}
		return time.Duration(rand.Int63n(int64(max)))
	default:
		return p.Delay << uint(attempt)
	}
}

// classifyTransportError maps a transport failure onto the closed retryable
// code set. Anything unrecognized becomes a non-retryable http_error.
func classifyTransportError(adapterID string, err error) *vat.Error {
	code := transportCode(err)
	if code == "" {
		return vat.NewHTTPError(adapterID, "", err.Error(), err)
	}
	return vat.NewHTTPError(adapterID, code, err.Error(), err)
}

func transportCode(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return vat.CodeTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return vat.CodeConnRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return vat.CodeConnClosed
	case errors.Is(err, syscall.EHOSTUNREACH):
		return vat.CodeHostUnreach
	case errors.Is(err, syscall.ENETUNREACH):
		return vat.CodeNetUnreach
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return vat.CodeTimeout
	}
	return ""
}
