package publisher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for decision audit emission. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Emitted  *prometheus.CounterVec
	Failures prometheus.Counter
	Dropped  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Emitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "winefeed_audit_decisions_emitted_total",
			Help: "Decision events written to the audit store, by decision",
		}, []string{"decision"}),
		Failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "winefeed_audit_write_failures_total",
			Help: "Decision events the audit store rejected",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "winefeed_audit_dropped_total",
			Help: "Decision events dropped because the async buffer was full or the publisher was closed",
		}),
	}
}

func (m *Metrics) IncEmitted(decision string) {
	if m == nil {
		return
	}
	m.Emitted.WithLabelValues(decision).Inc()
}

func (m *Metrics) IncFailures() {
	if m == nil {
		return
	}
	m.Failures.Inc()
}

func (m *Metrics) IncDropped() {
	if m == nil {
		return
	}
	m.Dropped.Inc()
}
