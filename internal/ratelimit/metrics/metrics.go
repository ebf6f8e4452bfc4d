package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions           *prometheus.CounterVec
	StoreErrors         prometheus.Counter
	DegradedChecks      prometheus.Counter
	CircuitBreakerState prometheus.Gauge
	TrackedKeys         *prometheus.GaugeVec
}

// New registers the rate limit collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "corkboard_ratelimit_decisions_total",
			Help: "Rate limit decisions by bucket and outcome (allowed, denied)",
		}, []string{"bucket", "outcome"}),
		StoreErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "corkboard_ratelimit_store_errors_total",
			Help: "Total number of primary bucket store failures",
		}),
		DegradedChecks: factory.NewCounter(prometheus.CounterOpts{
			Name: "corkboard_ratelimit_degraded_checks_total",
			Help: "Total number of checks answered by the in-memory fallback",
		}),
		CircuitBreakerState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "corkboard_ratelimit_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed/healthy, 1=open/unhealthy)",
		}),
		TrackedKeys: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "corkboard_ratelimit_tracked_keys",
			Help: "Identities currently tracked per bucket by the in-memory store",
		}, []string{"bucket"}),
	}
}

func (m *Metrics) ObserveDecision(bucket string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.Decisions.WithLabelValues(bucket, outcome).Inc()
}

func (m *Metrics) IncrementStoreErrors() {
	m.StoreErrors.Inc()
}

func (m *Metrics) IncrementDegraded() {
	m.DegradedChecks.Inc()
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if open {
		m.CircuitBreakerState.Set(1)
	} else {
		m.CircuitBreakerState.Set(0)
	}
}

func (m *Metrics) SetTrackedKeys(bucket string, n int) {
	m.TrackedKeys.WithLabelValues(bucket).Set(float64(n))
}
