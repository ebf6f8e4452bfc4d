package csrf

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Failures *prometheus.CounterVec
	Issued   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "corkboard_csrf_failures_total",
			Help: "Rejected state-changing requests by reason",
		}, []string{"reason"}),
		Issued: f.NewCounter(prometheus.CounterOpts{
			Name: "corkboard_csrf_tokens_issued_total",
			Help: "Total number of CSRF cookies minted",
		}),
	}
}

func (m *Metrics) IncFailure(reason Reason) {
	m.Failures.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) IncIssued() {
	m.Issued.Inc()
}
