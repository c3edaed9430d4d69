// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordOperation("register", StatusWarning, time.Millisecond)
	m.RecordOperation("register", StatusWarning, time.Millisecond)
	m.RecordOperation("login", StatusFailure, time.Millisecond)
	m.RecordSelfHeal("created")
	m.RecordPartialRegistration()
	m.RecordSessionEvent("SIGNED_IN")

	assert.InDelta(t, 2, testutil.ToFloat64(m.AuthOperations.WithLabelValues("register", StatusWarning)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.AuthOperations.WithLabelValues("login", StatusFailure)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ProfileSelfHeals.WithLabelValues("created")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RegistrationPartials), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.SessionEvents.WithLabelValues("SIGNED_IN")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.AuthDuration), "one series per operation")
}

func TestMetrics_DoubleRegisterPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}

func TestNop(t *testing.T) {
	var n Nop
	n.RecordOperation("login", StatusSuccess, time.Second)
	n.RecordSelfHeal("created")
	n.RecordPartialRegistration()
	n.RecordSessionEvent("SIGNED_OUT")
}
