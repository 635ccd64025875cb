package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for mark-attendance submissions.
const (
	OutcomeRecorded        = "recorded"
	OutcomeInvalid         = "invalid"
	OutcomeOutsideTime     = "outside_time"
	OutcomeOutsideLocation = "outside_location"
	OutcomeDuplicate       = "duplicate"
	OutcomeError           = "error"
)

// Metrics provides observability for the attendance module.
type Metrics struct {
	// Submission outcomes
	MarkOutcome *prometheus.CounterVec

	// Ledger write latency by backend
	LedgerLatency *prometheus.HistogramVec

	// Full mark latency including eligibility
	MarkLatency prometheus.Histogram
}

// New registers the attendance metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MarkOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attendance_mark_outcomes_total",
			Help: "Mark-attendance submissions by outcome",
		}, []string{"outcome"}),

		LedgerLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attendance_ledger_write_duration_seconds",
			Help:    "Duration of ledger writes by backend",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"backend"}),

		MarkLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "attendance_mark_duration_seconds",
			Help:    "Duration of mark-attendance handling in the service",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.MarkOutcome.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveLedgerLatency(backend string, d time.Duration) {
	if m != nil {
		m.LedgerLatency.WithLabelValues(backend).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveMarkLatency(d time.Duration) {
	if m != nil {
		m.MarkLatency.Observe(d.Seconds())
	}
}
