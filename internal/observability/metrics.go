// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusWarning = "warning"
)

// Metrics contains the Prometheus metrics for the account flow.
type Metrics struct {
	AuthOperations       *prometheus.CounterVec
	AuthDuration         *prometheus.HistogramVec
	ProfileSelfHeals     *prometheus.CounterVec
	RegistrationPartials prometheus.Counter
	SessionEvents        *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "downtown_auth_operations_total",
				Help: "Total number of auth service operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		AuthDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "downtown_auth_operation_duration_seconds",
				Help:    "Auth service operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ProfileSelfHeals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "downtown_profile_self_heals_total",
				Help: "Total number of missing profiles recreated at login by result",
			},
			[]string{"result"},
		),
		RegistrationPartials: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "downtown_registration_partial_failures_total",
				Help: "Registrations whose account was created but profile insert failed",
			},
		),
		SessionEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "downtown_session_events_total",
				Help: "Auth state change notifications applied to the session store by event",
			},
			[]string{"event"},
		),
	}

	reg.MustRegister(m.AuthOperations, m.AuthDuration, m.ProfileSelfHeals, m.RegistrationPartials, m.SessionEvents)
	return m
}

// RecordOperation counts one auth operation and observes its duration.
func (m *Metrics) RecordOperation(operation, status string, elapsed time.Duration) {
	m.AuthOperations.WithLabelValues(operation, status).Inc()
	m.AuthDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordSelfHeal counts a profile self-heal attempt.
func (m *Metrics) RecordSelfHeal(result string) {
	m.ProfileSelfHeals.WithLabelValues(result).Inc()
}

// RecordPartialRegistration counts a registration that left no profile.
func (m *Metrics) RecordPartialRegistration() {
	m.RegistrationPartials.Inc()
}

// RecordSessionEvent counts a notification applied by the session store.
func (m *Metrics) RecordSessionEvent(event string) {
	m.SessionEvents.WithLabelValues(event).Inc()
}

// Nop discards every recording.
type Nop struct{}

// RecordOperation does nothing.
func (Nop) RecordOperation(string, string, time.Duration) {}

// RecordSelfHeal does nothing.
func (Nop) RecordSelfHeal(string) {}

// RecordPartialRegistration does nothing.
func (Nop) RecordPartialRegistration() {}

// RecordSessionEvent does nothing.
func (Nop) RecordSessionEvent(string) {}
