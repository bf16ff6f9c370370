package sync

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/fieldbook/pkg/core"
)

const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
	outcomePulled    = "pulled"
	outcomeSkipped   = "skipped"
	outcomeConflict  = "conflict"
)

// Metrics holds the engine collectors. A nil *Metrics records nothing.
type Metrics struct {
	Runs     *prometheus.CounterVec
	Records  *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics builds unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "fieldbook", Subsystem: "sync", Name: "runs_total", Help: "Number of finished sync runs by strategy and state."},
			[]string{"strategy", "state"},
		),
		Records: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "fieldbook", Subsystem: "sync", Name: "records_total", Help: "Number of record outcomes by kind, operation and outcome."},
			[]string{"kind", "op", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Namespace: "fieldbook", Subsystem: "sync", Name: "run_duration_seconds", Help: "Duration of sync runs.", Buckets: prometheus.DefBuckets},
			[]string{"strategy"},
		),
	}
}

// Register adds the collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	return errors.Join(
		reg.Register(m.Runs),
		reg.Register(m.Records),
		reg.Register(m.Duration),
	)
}

func (m *Metrics) observeRun(res *Result) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(string(res.Strategy), string(res.State)).Inc()
	m.Duration.WithLabelValues(string(res.Strategy)).Observe(res.Duration().Seconds())
}

func (m *Metrics) observeRecord(kind core.Kind, op Op, outcome string) {
	if m == nil {
		return
	}
	m.Records.WithLabelValues(string(kind), string(op), outcome).Inc()
}
