// Package service is the single entry point for VAT validation. It applies
// normalization and strict-mode policy, dispatches to the configured
// adapter, and falls back to a secondary adapter for retryable failures.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vatgate/internal/audit"
	"vatgate/internal/platform/metrics"
	"vatgate/internal/vat"
	"vatgate/internal/vat/adapters"
	"vatgate/internal/vat/countries"
)

// Options are the per-call orchestration knobs. Construct via
// DefaultOptions; zero-value Options disable both normalization and
// fallback, which is almost never what a caller wants.
type Options struct {
	// Adapter overrides the configured primary by registry name.
	Adapter string

	// Fallback enables the secondary adapter for retryable failures.
	Fallback bool

	// Normalize cleans the number before validation. When disabled, only
	// the country code is canonicalized; the number is passed through.
	Normalize bool

	// Strict runs the structural format check before any adapter call.
	Strict bool

	// Call options are forwarded to the adapter.
	Call adapters.Options
}

// DefaultOptions matches the documented defaults: normalize on, fallback
// on, strict off.
func DefaultOptions() Options {
	return Options{Fallback: true, Normalize: true}
}

// Service orchestrates adapters. Configuration is set at construction and
// read-only afterwards; concurrent calls share no mutable state.
type Service struct {
	registry *adapters.Registry
	primary  adapters.Adapter
	fallback adapters.Adapter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditor  *audit.Publisher
}

// Option configures the Service.
type Option func(*Service)

// WithFallback sets the secondary adapter consulted on retryable failures.
func WithFallback(a adapters.Adapter) Option {
	return func(s *Service) { s.fallback = a }
}

// WithRegistry enables per-call adapter override by name.
func WithRegistry(r *adapters.Registry) Option {
	return func(s *Service) { s.registry = r }
}

// WithLogger sets a logger for failure reporting.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditor records validation events on the audit trail.
func WithAuditor(p *audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

// New constructs the orchestrator around a primary adapter.
func New(primary adapters.Adapter, opts ...Option) (*Service, error) {
	if primary == nil {
		return nil, errors.New("primary adapter is required")
	}
	s := &Service{primary: primary, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Validate runs the full orchestration for one identifier.
//
// Errors short-circuit in policy order: normalization, strict format check,
// then the adapter call. When the primary fails retryably and fallback is
// enabled, the fallback adapter's successful result is returned annotated
// with fallback_used; if the fallback fails too, the primary's error wins
// because it carries the diagnostic value of the preferred path.
func (s *Service) Validate(ctx context.Context, countryCode, number string, opts Options) (*vat.ValidationResult, error) {
	start := time.Now()
	res, err := s.validate(ctx, countryCode, number, opts)
	s.observe(ctx, countryCode, res, err, time.Since(start))
	return res, err
}

func (s *Service) validate(ctx context.Context, countryCode, number string, opts Options) (*vat.ValidationResult, error) {
	id, err := s.prepare(countryCode, number, opts)
	if err != nil {
		return nil, err
	}

	adapter, err := s.selectAdapter(opts.Adapter)
	if err != nil {
		return nil, err
	}

	res, primaryErr := adapter.Validate(ctx, id, opts.Call)
	if primaryErr == nil {
		return res, nil
	}

	if !opts.Fallback || s.fallback == nil || !vat.IsRetryable(primaryErr) {
		return nil, primaryErr
	}

	s.logger.Warn("primary adapter failed, trying fallback",
		slog.String("adapter", adapter.ID()),
		slog.String("fallback", s.fallback.ID()),
		slog.String("error", primaryErr.Error()),
	)

	fallbackRes, fallbackErr := s.fallback.Validate(ctx, id, opts.Call)
	if fallbackErr != nil {
		// The primary error is the one worth diagnosing; the fallback
		// failure is logged and dropped.
		s.logger.Warn("fallback adapter failed",
			slog.String("fallback", s.fallback.ID()),
			slog.String("error", fallbackErr.Error()),
		)
		return nil, primaryErr
	}
	if s.metrics != nil {
		s.metrics.IncrementFallbacks()
	}
	return fallbackRes.WithDetail("fallback_used", true), nil
}

// prepare applies the normalize/strict policy before any adapter call.
func (s *Service) prepare(countryCode, number string, opts Options) (vat.ID, error) {
	var id vat.ID
	if opts.Normalize {
		normalized, err := vat.Normalize(countryCode, number)
		if err != nil {
			return vat.ID{}, err
		}
		id = normalized
	} else {
		code, ok := countries.Resolve(countryCode)
		if !ok {
			return vat.ID{}, vat.NewValidationError(vat.CodeInvalidCountry,
				fmt.Sprintf("unsupported country code %q", countryCode))
		}
		id = vat.ID{CountryCode: code, Number: number}
	}

	if opts.Strict {
		if err := vat.ValidateFormat(id); err != nil {
			return vat.ID{}, err
		}
	}
	return id, nil
}

func (s *Service) selectAdapter(name string) (adapters.Adapter, error) {
	if name == "" {
		return s.primary, nil
	}
	if s.registry == nil {
		return nil, vat.NewAdapterError(name, "no adapter registry configured", nil)
	}
	a, ok := s.registry.Get(name)
	if !ok {
		return nil, vat.NewAdapterError(name, "unknown adapter", nil)
	}
	return a, nil
}

// MustValidate behaves exactly like Validate but panics with the terminal
// error, for callers preferring unwind-style error handling. It never
// diverges from the result-returning core.
func (s *Service) MustValidate(ctx context.Context, countryCode, number string, opts Options) *vat.ValidationResult {
	res, err := s.Validate(ctx, countryCode, number, opts)
	if err != nil {
		panic(fmt.Sprintf("vat validation failed for %s%s: %v", countryCode, number, err))
	}
	return res
}

// ValidateFormat normalizes and structurally checks one identifier without
// touching any adapter transport.
func (s *Service) ValidateFormat(countryCode, number string) error {
	id, err := vat.Normalize(countryCode, number)
	if err != nil {
		return err
	}
	return vat.ValidateFormat(id)
}

// CheckStatus reports availability through the primary adapter, or a named
// one when the registry is configured.
func (s *Service) CheckStatus(ctx context.Context, adapterName string) (*vat.Status, error) {
	adapter, err := s.selectAdapter(adapterName)
	if err != nil {
		return nil, err
	}
	if !adapter.Capabilities().Has(adapters.CapCheckStatus) {
		return nil, vat.NewAdapterError(adapter.ID(), "adapter does not support status checks", nil)
	}
	return adapter.CheckStatus(ctx)
}

// Primary exposes the configured primary adapter, mainly for wiring checks.
func (s *Service) Primary() adapters.Adapter {
	return s.primary
}

func (s *Service) observe(ctx context.Context, countryCode string, res *vat.ValidationResult, err error, elapsed time.Duration) {
	outcome := "error"
	adapterID := ""
	var valid *bool
	requestID := ""
	if err == nil && res != nil {
		v := res.Valid
		valid = &v
		adapterID = res.AdapterID
		requestID = res.RequestID
		if res.Valid {
			outcome = "valid"
		} else {
			outcome = "invalid"
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveValidation(adapterID, outcome, elapsed)
	}
	if s.auditor != nil {
		event := audit.Event{
			Action:      audit.ActionValidate,
			CountryCode: countryCode,
			AdapterID:   adapterID,
			Valid:       valid,
			Outcome:     outcome,
			RequestID:   requestID,
		}
		if auditErr := s.auditor.Emit(ctx, event); auditErr != nil {
			s.logger.Error("audit emit failed", slog.String("error", auditErr.Error()))
		}
	}
}
