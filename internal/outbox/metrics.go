package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks relay throughput. A nil *Metrics is a no-op.
type Metrics struct {
	Published prometheus.Counter
	Failures  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounter(prometheus.CounterOpts{
			Name: "attendance_outbox_published_total",
			Help: "Outbox entries published to Kafka",
		}),
		Failures: f.NewCounter(prometheus.CounterOpts{
			Name: "attendance_outbox_relay_failures_total",
			Help: "Relay batches that failed and will be retried",
		}),
	}
}

func (m *Metrics) addPublished(n int) {
	if m == nil {
		return
	}
	m.Published.Add(float64(n))
}

func (m *Metrics) incFailures() {
	if m == nil {
		return
	}
	m.Failures.Inc()
}
