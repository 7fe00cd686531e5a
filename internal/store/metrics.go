package store

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Commit cycle outcomes recorded in invtrack_commit_cycles_total.
const (
	OutcomeCommitted  = "committed"
	OutcomeStale      = "stale"
	OutcomeConstraint = "constraint_violation"
	OutcomeRejected   = "rejected"
	OutcomeError      = "error"
)

// Metrics records commit cycle counters. A nil *Metrics records nothing.
type Metrics struct {
	cycles   *prometheus.CounterVec
	rows     *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them on reg when reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invtrack",
			Name:      "commit_cycles_total",
			Help:      "Commit cycles by entity and outcome.",
		}, []string{"entity", "outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "invtrack",
			Name:      "rows_applied_total",
			Help:      "Rows changed by committed cycles, by entity and operation.",
		}, []string{"entity", "op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "invtrack",
			Name:      "commit_duration_seconds",
			Help:      "Time spent applying a commit cycle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"entity"}),
	}
	if reg != nil {
		reg.MustRegister(m.cycles, m.rows, m.duration)
	}
	return m
}

func (m *Metrics) observe(entity string, d time.Duration, res Result, err error) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(entity).Observe(d.Seconds())
	m.cycles.WithLabelValues(entity, outcome(err)).Inc()
	if err != nil {
		return
	}
	m.rows.WithLabelValues(entity, "update").Add(float64(res.Updated))
	m.rows.WithLabelValues(entity, "insert").Add(float64(res.Inserted))
	m.rows.WithLabelValues(entity, "delete").Add(float64(res.Deleted))
}

func outcome(err error) string {
	var (
		stale *StaleSnapshotError
		cv    *ConstraintViolation
		fe    *FieldError
	)
	switch {
	case err == nil:
		return OutcomeCommitted
	case errors.As(err, &stale):
		return OutcomeStale
	case errors.As(err, &cv):
		return OutcomeConstraint
	case errors.As(err, &fe):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}
