package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestOutboxMetricsCountsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.Row("payment_failed", "published")
	m.Row("payment_failed", "published")
	m.Row("payment_failed", "retry")
	m.Row("", "dead_letter")
	m.Batch(40 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rows.WithLabelValues("payment_failed", "published")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rows.WithLabelValues("payment_failed", "retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rows.WithLabelValues("unknown", "dead_letter")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.batch))
}

func TestOutboxMetricsNilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.Row("payment_failed", "published")
	m.Batch(time.Second)
	NewOutboxMetrics(nil).Row("payment_failed", "published")
}
