package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	ValidationsTotal   *prometheus.CounterVec
	FallbacksTotal     prometheus.Counter
	TreatmentsTotal    *prometheus.CounterVec
	ValidationDuration prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ValidationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vatgate_validations_total",
			Help: "Total number of VAT validations by adapter and outcome",
		}, []string{"adapter", "outcome"}),
		FallbacksTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vatgate_fallbacks_total",
			Help: "Total number of validations served by the fallback adapter",
		}),
		TreatmentsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vatgate_treatments_total",
			Help: "Total number of B2B transaction evaluations by treatment",
		}, []string{"treatment"}),
		ValidationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vatgate_validation_duration_seconds",
			Help:    "End-to-end validation latency including retries and fallback",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveValidation records one completed validation.
func (m *Metrics) ObserveValidation(adapter, outcome string, elapsed time.Duration) {
	m.ValidationsTotal.WithLabelValues(adapter, outcome).Inc()
	m.ValidationDuration.Observe(elapsed.Seconds())
}

// IncrementFallbacks counts a validation answered by the fallback adapter.
func (m *Metrics) IncrementFallbacks() {
	m.FallbacksTotal.Inc()
}

// IncrementTreatments counts one computed tax treatment.
func (m *Metrics) IncrementTreatments(treatment string) {
	m.TreatmentsTotal.WithLabelValues(treatment).Inc()
}
