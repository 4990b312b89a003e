package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts relay publishes by event type.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	parked    prometheus.Gauge
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "published_total",
			Help:      "Outbox rows appended to the event stream.",
		}, []string{"event_type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "publish_failures_total",
			Help:      "Failed publish attempts; terminal=true when the row was parked.",
		}, []string{"event_type", "terminal"}),
		parked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "parked_rows",
			Help:      "Unpublished rows that ran out of attempts.",
		}),
	}
	reg.MustRegister(m.published, m.failed, m.parked)
	return m
}

func (m *OutboxMetrics) IncPublished(eventType string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(labelOrUnknown(eventType)).Inc()
}

func (m *OutboxMetrics) IncFailed(eventType string, terminal bool) {
	if m == nil || m.failed == nil {
		return
	}
	t := "false"
	if terminal {
		t = "true"
	}
	m.failed.WithLabelValues(labelOrUnknown(eventType), t).Inc()
}

func (m *OutboxMetrics) SetParked(n int64) {
	if m == nil || m.parked == nil {
		return
	}
	m.parked.Set(float64(n))
}
