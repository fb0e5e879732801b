package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOrderMetricsCounts(t *testing.T) {
	m := NewOrderMetrics(prometheus.NewRegistry())

	m.Operation("create", OutcomeOK)
	m.Operation("create", OutcomeOK)
	m.Operation("delete_product", OutcomeUnauthorized)
	m.LockWait(10 * time.Millisecond)
	m.Login(OutcomeOK)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("create", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("delete_product", OutcomeUnauthorized)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues(OutcomeOK)))
}

func TestNilOrderMetricsIsNoop(t *testing.T) {
	var m *OrderMetrics
	assert.NotPanics(t, func() {
		m.Operation("create", OutcomeOK)
		m.LockWait(time.Second)
		m.Login(OutcomeError)
	})
}
