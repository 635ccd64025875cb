package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected    prometheus.Counter
	CheckErrors prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Rejected: f.NewCounter(prometheus.CounterOpts{
			Name: "attendance_ratelimit_rejected_total",
			Help: "Submissions rejected by the per-client rate limit",
		}),
		CheckErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "attendance_ratelimit_check_errors_total",
			Help: "Limiter checks that failed and were let through",
		}),
	}
}

func (m *Metrics) IncrementRejected() {
	if m != nil {
		m.Rejected.Inc()
	}
}

func (m *Metrics) IncrementCheckErrors() {
	if m != nil {
		m.CheckErrors.Inc()
	}
}
