package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "arena"

// CronJobMetrics tracks each cron job's runtime and outcome, labelled by job
// name. A zero value or nil receiver records nothing.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Wall time of one cron job run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		success: cronCounter("job_success_total", "Cron job runs that returned no error."),
		failure: cronCounter("job_failure_total", "Cron job runs that errored, timed out or panicked."),
	}
	reg.MustRegister(m.duration, m.success, m.failure)
	return m
}

func cronCounter(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cron",
		Name:      name,
		Help:      help,
	}, []string{"job"})
}

func (c *CronJobMetrics) ObserveDuration(job string, d time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(labelOrUnknown(job)).Observe(d.Seconds())
}

func (c *CronJobMetrics) IncSuccess(job string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(labelOrUnknown(job)).Inc()
}

func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(labelOrUnknown(job)).Inc()
}

// labelOrUnknown maps empty label values to "unknown".
func labelOrUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
