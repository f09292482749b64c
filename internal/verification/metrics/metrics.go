// Package metrics exposes Prometheus metrics for GTIN verification. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	CacheLookups     *prometheus.CounterVec
	RegistryRequests *prometheus.CounterVec
	RegistryLatency  prometheus.Histogram
	Rejections       *prometheus.CounterVec
	CircuitOpen      prometheus.Gauge
	RateLimitQuota   prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "winefeed_verification_cache_lookups_total",
			Help: "Verification cache lookups by outcome (hit, stale, miss)",
		}, []string{"outcome"}),
		RegistryRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "winefeed_verification_registry_requests_total",
			Help: "Registry calls by outcome (verified, not_found, error)",
		}, []string{"outcome"}),
		RegistryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "winefeed_verification_registry_request_duration_seconds",
			Help:    "Registry call latency",
			Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "winefeed_verification_rejections_total",
			Help: "Live calls refused before reaching the registry, by reason (circuit_open, rate_limited)",
		}, []string{"reason"}),
		CircuitOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "winefeed_verification_circuit_open",
			Help: "Registry circuit breaker state (0=closed, 1=open)",
		}),
		RateLimitQuota: factory.NewGauge(prometheus.GaugeOpts{
			Name: "winefeed_verification_ratelimit_remaining",
			Help: "Registry calls left in the current sliding window",
		}),
	}
}

func (m *Metrics) CacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RegistryRequest(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.RegistryRequests.WithLabelValues(outcome).Inc()
	m.RegistryLatency.Observe(seconds)
}

func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
	} else {
		m.CircuitOpen.Set(0)
	}
}

func (m *Metrics) SetRemainingQuota(n int) {
	if m == nil {
		return
	}
	m.RateLimitQuota.Set(float64(n))
}
