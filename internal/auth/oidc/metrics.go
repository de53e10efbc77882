package oidc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for OIDC operations.
type Metrics struct {
	discoveryTotal     *prometheus.CounterVec
	keySetTotal        *prometheus.CounterVec
	validationTotal    *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
	userinfoTotal      *prometheus.CounterVec
	registry           *prometheus.Registry
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "authd"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.discoveryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oidc",
			Name:      "discovery_total",
			Help:      "Total number of discovery document lookups",
		},
		[]string{"status"},
	)

	m.keySetTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oidc",
			Name:      "keyset_total",
			Help:      "Total number of key set lookups",
		},
		[]string{"status"},
	)

	m.validationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oidc",
			Name:      "token_validation_total",
			Help:      "Total number of token validation attempts",
		},
		[]string{"status", "path"},
	)

	m.validationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oidc",
			Name:      "token_validation_duration_seconds",
			Help:      "Token validation duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"status", "path"},
	)

	m.userinfoTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oidc",
			Name:      "userinfo_total",
			Help:      "Total number of userinfo requests",
		},
		[]string{"status"},
	)

	m.registry.MustRegister(
		m.discoveryTotal,
		m.keySetTotal,
		m.validationTotal,
		m.validationDuration,
		m.userinfoTotal,
	)

	return m
}

// RecordDiscovery records a discovery lookup.
func (m *Metrics) RecordDiscovery(status string) {
	m.discoveryTotal.WithLabelValues(status).Inc()
}

// RecordKeySet records a key set lookup.
func (m *Metrics) RecordKeySet(status string) {
	m.keySetTotal.WithLabelValues(status).Inc()
}

// RecordValidation records a token validation attempt.
func (m *Metrics) RecordValidation(status, path string, duration time.Duration) {
	m.validationTotal.WithLabelValues(status, path).Inc()
	m.validationDuration.WithLabelValues(status, path).Observe(duration.Seconds())
}

// RecordUserinfo records a userinfo request.
func (m *Metrics) RecordUserinfo(status string) {
	m.userinfoTotal.WithLabelValues(status).Inc()
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// MustRegister registers the metrics with the given registry.
func (m *Metrics) MustRegister(registry *prometheus.Registry) {
	registry.MustRegister(
		m.discoveryTotal,
		m.keySetTotal,
		m.validationTotal,
		m.validationDuration,
		m.userinfoTotal,
	)
}
