package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK           = "ok"
	OutcomeNotFound     = "not_found"
	OutcomeValidation   = "validation"
	OutcomeUnauthorized = "unauthorized"
	OutcomeConflict     = "conflict"
	OutcomeError        = "error"
)

// OrderMetrics counts order store operations. A nil *OrderMetrics is valid
// and records nothing.
type OrderMetrics struct {
	operations *prometheus.CounterVec
	lockWait   prometheus.Histogram
	logins     *prometheus.CounterVec
}

func NewOrderMetrics(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &OrderMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_order_operations_total",
			Help: "Order store operations by name and outcome.",
		}, []string{"op", "outcome"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "studio_order_lock_wait_seconds",
			Help:    "Time spent waiting for the per-order write lock.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studio_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
	}
	registerer.MustRegister(m.operations, m.lockWait, m.logins)
	return m
}

func (m *OrderMetrics) Operation(op, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome).Inc()
}

func (m *OrderMetrics) LockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

func (m *OrderMetrics) Login(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}
