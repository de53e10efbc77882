package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for identity resolution.
type Metrics struct {
	resolveTotal     *prometheus.CounterVec
	resolveDuration  *prometheus.HistogramVec
	provisionedTotal prometheus.Counter
	registry         *prometheus.Registry
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "authd"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.resolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "resolve_total",
			Help:      "Total number of identity resolutions",
		},
		[]string{"outcome"},
	)

	m.resolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "resolve_duration_seconds",
			Help:      "Identity resolution duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"outcome"},
	)

	m.provisionedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "users_provisioned_total",
			Help:      "Total number of users auto-provisioned on first federated login",
		},
	)

	m.registry.MustRegister(
		m.resolveTotal,
		m.resolveDuration,
		m.provisionedTotal,
	)

	return m
}

// RecordResolve records one identity resolution.
func (m *Metrics) RecordResolve(outcome string, duration time.Duration) {
	m.resolveTotal.WithLabelValues(outcome).Inc()
	m.resolveDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordProvisioned records one auto-provisioned user.
func (m *Metrics) RecordProvisioned() {
	m.provisionedTotal.Inc()
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MustRegister registers the metrics with the given registry.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.resolveTotal,
		m.resolveDuration,
		m.provisionedTotal,
	)
}
