package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReminderMetrics counts payment reminder outcomes by source (cron, manual).
type ReminderMetrics struct {
	outcomes *prometheus.CounterVec
}

// NewReminderMetrics registers the reminder counters on reg. A nil registerer
// yields a no-op recorder.
func NewReminderMetrics(reg prometheus.Registerer) *ReminderMetrics {
	if reg == nil {
		return &ReminderMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reminder_outcomes_total",
		Help: "Payment reminder evaluations by source and outcome.",
	}, []string{"source", "outcome"})
	reg.MustRegister(outcomes)
	return &ReminderMetrics{outcomes: outcomes}
}

// Observe increments the counter for one evaluated payment failure.
func (m *ReminderMetrics) Observe(source, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}
