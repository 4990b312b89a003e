package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestSettlementMetricsCountsByLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSettlementMetrics(reg)

	m.IncOutcome("venue", "paid", "primary")
	m.IncOutcome("venue", "paid", "primary")
	m.IncOutcome("shop", "failed", "fallback")
	m.IncFallbackStep("shop", "ledger", false)
	m.IncExhausted("event")
	m.IncOversell()
	m.ObserveDuration("venue", 10*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := counterWithLabels(t, mfs, "arena_settlement_outcomes_total", map[string]string{"kind": "venue", "outcome": "paid", "path": "primary"}); got != 2 {
		t.Fatalf("expected 2 venue primary outcomes, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "arena_settlement_fallback_steps_total", map[string]string{"kind": "shop", "step": "ledger", "result": "failure"}); got != 1 {
		t.Fatalf("expected 1 failed ledger step, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "arena_settlement_manual_reconciliation_total", map[string]string{"kind": "event"}); got != 1 {
		t.Fatalf("expected 1 exhausted settlement, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "arena_events_oversell_total", nil); got != 1 {
		t.Fatalf("expected 1 oversell, got %f", got)
	}
}

func TestSettlementMetricsNilSafe(t *testing.T) {
	var m *SettlementMetrics
	m.IncOutcome("venue", "paid", "primary")
	NewSettlementMetrics(nil).IncOversell()
}

func counterWithLabels(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		t.Fatalf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		matched := true
		for k, v := range labels {
			if !matchesLabel(metric.GetLabel(), k, v) {
				matched = false
				break
			}
		}
		if matched {
			return metric.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %q missing labels %v", name, labels)
	return 0
}

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)
	m.IncPublished("reservation_confirmed")
	m.IncFailed("reservation_failed", false)
	m.IncFailed("reservation_failed", true)
	m.SetParked(3)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got := counterWithLabels(t, mfs, "arena_outbox_published_total", map[string]string{"event_type": "reservation_confirmed"}); got != 1 {
		t.Fatalf("expected 1 publish, got %f", got)
	}
	if got := counterWithLabels(t, mfs, "arena_outbox_publish_failures_total", map[string]string{"event_type": "reservation_failed", "terminal": "true"}); got != 1 {
		t.Fatalf("expected 1 terminal failure, got %f", got)
	}
	parked := findMetricFamily(mfs, "arena_outbox_parked_rows")
	if parked == nil || parked.GetMetric()[0].GetGauge().GetValue() != 3 {
		t.Fatalf("expected parked gauge 3")
	}

	var nilMetrics *OutboxMetrics
	nilMetrics.IncPublished("x")
	NewOutboxMetrics(nil).SetParked(1)
}
