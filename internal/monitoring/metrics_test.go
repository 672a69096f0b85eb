package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	m.QueueDrop("display")
	m.QueueDrop("display")
	m.PublishFailure("camera_request")
	m.Capture("failure")
	m.CorrelationEvent("evict")
	m.Vehicle("Infraction")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.QueueDrops.WithLabelValues("display")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishFailures.WithLabelValues("camera_request")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Captures.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Correlation.WithLabelValues("evict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Vehicles.WithLabelValues("Infraction")))
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering the same collectors twice should fail")
}

func TestNilMetrics_NoPanic(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.QueueDrop("sensor")
		m.PublishFailure("camera_response")
		m.Capture("ok")
		m.CorrelationEvent("miss")
		m.Vehicle("Normal")
	})
}
