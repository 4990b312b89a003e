package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics tracks how reservations reach a terminal state.
type SettlementMetrics struct {
	outcomes      *prometheus.CounterVec
	fallbackSteps *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	exhausted     *prometheus.CounterVec
	oversell      prometheus.Counter
}

// NewSettlementMetrics registers settlement metrics on reg. A nil registerer
// yields a no-op recorder.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	m := &SettlementMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "outcomes_total",
			Help:      "Reservations settled, by kind, outcome and execution path.",
		}, []string{"kind", "outcome", "path"}),
		fallbackSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "fallback_steps_total",
			Help:      "Fallback sub-step executions, by kind, step and result.",
		}, []string{"kind", "step", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "duration_seconds",
			Help:      "Time spent settling a reservation, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		exhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settlement",
			Name:      "manual_reconciliation_total",
			Help:      "Settlements that exhausted both primary and fallback paths.",
		}, []string{"kind"}),
		oversell: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "oversell_total",
			Help:      "Event seat commits that pushed booked seats past capacity.",
		}),
	}
	reg.MustRegister(m.outcomes, m.fallbackSteps, m.duration, m.exhausted, m.oversell)
	return m
}

func (m *SettlementMetrics) IncOutcome(kind, outcome, path string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(labelOrUnknown(kind), labelOrUnknown(outcome), labelOrUnknown(path)).Inc()
}

func (m *SettlementMetrics) IncFallbackStep(kind, step string, ok bool) {
	if m == nil || m.fallbackSteps == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.fallbackSteps.WithLabelValues(labelOrUnknown(kind), labelOrUnknown(step), result).Inc()
}

func (m *SettlementMetrics) ObserveDuration(kind string, d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(labelOrUnknown(kind)).Observe(d.Seconds())
}

func (m *SettlementMetrics) IncExhausted(kind string) {
	if m == nil || m.exhausted == nil {
		return
	}
	m.exhausted.WithLabelValues(labelOrUnknown(kind)).Inc()
}

func (m *SettlementMetrics) IncOversell() {
	if m == nil || m.oversell == nil {
		return
	}
	m.oversell.Inc()
}
