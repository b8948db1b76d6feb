// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for passkey
// ceremony operations. It exposes ceremony counters, verification
// failure breakdowns, HTTP request metrics, and resource gauges.
package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all passkey metrics
	Namespace = "passkey"

	// Label names
	LabelCeremony   = "ceremony"
	LabelOutcome    = "outcome"
	LabelReason     = "reason"
	LabelBackend    = "backend"
	LabelMethod     = "method"
	LabelStatusCode = "status_code"

	// Ceremony values
	CeremonyRegistration   = "registration"
	CeremonyAuthentication = "authentication"

	// Outcome values
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	// CeremoniesTotal tracks completed ceremonies by type and outcome.
	CeremoniesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "ceremonies_total",
			Help:      "Total number of completed ceremonies by type and outcome",
		},
		[]string{LabelCeremony, LabelOutcome},
	)

	// CeremonyDuration tracks the duration of ceremony HTTP operations
	// in seconds.
	CeremonyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "ceremony_duration_seconds",
			Help:      "Duration of ceremony operations in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{LabelCeremony},
	)

	// VerificationFailuresTotal tracks verification failures by reason.
	// Failure reasons are internal diagnostics, never exposed to clients.
	VerificationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "verification_failures_total",
			Help:      "Total number of verification failures by reason",
		},
		[]string{LabelCeremony, LabelReason},
	)

	// HTTPRequestsTotal tracks the total number of HTTP requests by method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method and status code",
		},
		[]string{LabelMethod, LabelStatusCode},
	)

	// HTTPRequestDuration tracks the duration of HTTP requests in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod},
	)

	// ActiveConnections tracks the number of in-flight HTTP requests.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_connections",
			Help:      "Number of in-flight HTTP requests",
		},
	)

	// CredentialsTotal tracks the number of stored credentials per backend.
	CredentialsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "credentials_total",
			Help:      "Total number of credentials stored in each backend",
		},
		[]string{LabelBackend},
	)

	// BackendHealthy indicates whether a storage backend is healthy (1) or unhealthy (0).
	BackendHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "backend_healthy",
			Help:      "Indicates whether a backend is healthy (1) or unhealthy (0)",
		},
		[]string{LabelBackend},
	)

	// ServerUptime tracks the server uptime in seconds since startup.
	ServerUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "server_uptime_seconds",
			Help:      "Server uptime in seconds since startup",
		},
	)

	// enabled tracks whether metrics collection is enabled
	enabled atomic.Bool
)

func init() {
	// Metrics are enabled by default
	enabled.Store(true)
}

// RecordCeremony records a completed ceremony.
//
// Parameters:
//   - ceremony: Ceremony* constant
//   - outcome: Outcome* constant
func RecordCeremony(ceremony, outcome string) {
	if !enabled.Load() {
		return
	}
	CeremoniesTotal.WithLabelValues(ceremony, outcome).Inc()
}

// RecordVerificationFailure records a verification failure with its
// internal reason.
func RecordVerificationFailure(ceremony, reason string) {
	if !enabled.Load() {
		return
	}
	VerificationFailuresTotal.WithLabelValues(ceremony, reason).Inc()
}

// RecordCeremonyDuration records the duration of a ceremony operation
// in seconds.
func RecordCeremonyDuration(ceremony string, duration float64) {
	if !enabled.Load() {
		return
	}
	CeremonyDuration.WithLabelValues(ceremony).Observe(duration)
}

// RecordHTTPRequest records an HTTP request with its duration and status.
func RecordHTTPRequest(method, statusCode string, duration float64) {
	if !enabled.Load() {
		return
	}
	HTTPRequestsTotal.WithLabelValues(method, statusCode).Inc()
	HTTPRequestDuration.WithLabelValues(method).Observe(duration)
}

// IncrementActiveConnections increments the in-flight request gauge.
func IncrementActiveConnections() {
	if !enabled.Load() {
		return
	}
	ActiveConnections.Inc()
}

// DecrementActiveConnections decrements the in-flight request gauge.
func DecrementActiveConnections() {
	if !enabled.Load() {
		return
	}
	ActiveConnections.Dec()
}

// SetCredentialsTotal sets the stored credential count for a backend.
func SetCredentialsTotal(backend string, count float64) {
	if !enabled.Load() {
		return
	}
	CredentialsTotal.WithLabelValues(backend).Set(count)
}

// SetBackendHealthy marks a backend as healthy or unhealthy.
func SetBackendHealthy(backend string, healthy bool) {
	if !enabled.Load() {
		return
	}
	value := 0.0
	if healthy {
		value = 1.0
	}
	BackendHealthy.WithLabelValues(backend).Set(value)
}

// Enable turns on metrics collection.
func Enable() {
	enabled.Store(true)
}

// Disable turns off metrics collection.
func Disable() {
	enabled.Store(false)
}

// IsEnabled returns whether metrics collection is currently enabled.
func IsEnabled() bool {
	return enabled.Load()
}
