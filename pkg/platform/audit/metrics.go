package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit recording.
type Metrics struct {
	Writes       *prometheus.CounterVec
	SinkFailures prometheus.Counter
	Purged       prometheus.Counter
}

// NewMetrics registers the audit collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "corkboard_audit_writes_total",
			Help: "Audit writes by category and outcome (ok, failed, panic)",
		}, []string{"category", "outcome"}),
		SinkFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "corkboard_audit_sink_failures_total",
			Help: "Total number of failed mirror publishes",
		}),
		Purged: factory.NewCounter(prometheus.CounterOpts{
			Name: "corkboard_audit_purged_total",
			Help: "Total number of entries removed by retention",
		}),
	}
}

func (m *Metrics) IncWrite(category Category, outcome string) {
	m.Writes.WithLabelValues(string(category), outcome).Inc()
}

func (m *Metrics) IncSinkFailures() {
	m.SinkFailures.Inc()
}

func (m *Metrics) AddPurged(n int64) {
	m.Purged.Add(float64(n))
}
