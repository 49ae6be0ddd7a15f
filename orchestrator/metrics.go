package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mohans/kaiamate/task"
)

// Metrics holds the orchestrator's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	created     *prometheus.CounterVec
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg when reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kaiamate",
			Subsystem: "tasks",
			Name:      "created_total",
			Help:      "Tasks created, by type.",
		}, []string{"type"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kaiamate",
			Subsystem: "tasks",
			Name:      "transitions_total",
			Help:      "Applied status transitions, by target status.",
		}, []string{"status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kaiamate",
			Subsystem: "tasks",
			Name:      "execution_seconds",
			Help:      "Handler execution time, by type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.created, m.transitions, m.duration)
	}
	return m
}

func (m *Metrics) taskCreated(typ task.Type) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(string(typ)).Inc()
}

func (m *Metrics) transitioned(to task.Status) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) executed(typ task.Type, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(string(typ)).Observe(d.Seconds())
}
