package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementDecision("AUTO_MATCH", "barcode")
	m.IncrementDecision("AUTO_MATCH", "barcode")
	m.IncrementGuardrailFailure("VOLUME_MISMATCH")
	m.IncrementVerification("unavailable")
	m.ObserveMatchLatency(10 * time.Millisecond)
	m.IncrementBatchFailure()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Decisions.WithLabelValues("AUTO_MATCH", "barcode")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardrailFailures.WithLabelValues("VOLUME_MISMATCH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Verifications.WithLabelValues("unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchFailures))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementDecision("NO_MATCH", "none")
		m.IncrementGuardrailFailure("PACK_TYPE_MISMATCH")
		m.IncrementVerification("verified")
		m.ObserveMatchLatency(time.Second)
		m.IncrementBatchFailure()
	})
}
