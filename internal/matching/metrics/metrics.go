package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the matching engine.
type Metrics struct {
	// Decisions by outcome and resolution stage
	Decisions *prometheus.CounterVec

	// Guardrail failures by code
	GuardrailFailures *prometheus.CounterVec

	// Barcode verification outcomes seen by the engine
	Verifications *prometheus.CounterVec

	MatchLatency prometheus.Histogram

	// Items rejected before matching (invalid input, duplicate sku, store errors)
	BatchFailures prometheus.Counter
}

// New registers the matching metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "winefeed_matching_decisions_total",
			Help: "Match decisions by outcome and resolution stage",
		}, []string{"decision", "stage"}),

		GuardrailFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "winefeed_matching_guardrail_failures_total",
			Help: "Guardrail failures on decisive candidates by code",
		}, []string{"code"}),

		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "winefeed_matching_barcode_verifications_total",
			Help: "Barcode verification outcomes (verified, not_verified, not_in_catalog, unavailable)",
		}, []string{"outcome"}),

		MatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "winefeed_matching_match_duration_seconds",
			Help:    "Duration of a single product match including store and verification calls",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		BatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "winefeed_matching_batch_failures_total",
			Help: "Batch items that produced an error instead of a decision",
		}),
	}
}

func (m *Metrics) IncrementDecision(decision, stage string) {
	if m != nil {
		m.Decisions.WithLabelValues(decision, stage).Inc()
	}
}

func (m *Metrics) IncrementGuardrailFailure(code string) {
	if m != nil {
		m.GuardrailFailures.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) IncrementVerification(outcome string) {
	if m != nil {
		m.Verifications.WithLabelValues(outcome).Inc()
	}
}

// ObserveMatchLatency records the duration of one MatchProduct call.
func (m *Metrics) ObserveMatchLatency(d time.Duration) {
	if m != nil {
		m.MatchLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementBatchFailure() {
	if m != nil {
		m.BatchFailures.Inc()
	}
}
