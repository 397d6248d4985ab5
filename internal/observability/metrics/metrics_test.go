package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	close(ch)
	var total float64
	for metric := range ch {
		var m dto.Metric
		if err := metric.Write(&m); err != nil {
			t.Fatalf("write metric: %v", err)
		}
		if m.Counter != nil {
			total += m.Counter.GetValue()
		}
	}
	return total
}

func TestPredictionMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPredictionMetrics(reg)
	m.ObservePrediction("baseline")
	m.ObserveDegraded("malformed_output")
	m.ObserveDegraded("malformed_output")

	if got := counterValue(t, m.degradedTotal.WithLabelValues("malformed_output")); got != 2 {
		t.Fatalf("expected 2 degraded observations, got %v", got)
	}
	if got := counterValue(t, m.predictionsTotal.WithLabelValues("baseline")); got != 1 {
		t.Fatalf("expected 1 baseline prediction, got %v", got)
	}
}

func TestToolMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewToolMetrics(reg)
	m.ObserveCall("recommend_slots", "ok", "", 0.01)
	m.ObserveCall("book_appointment", "error", "conflict", 0.02)

	if got := counterValue(t, m.callsTotal.WithLabelValues("book_appointment", "error", "conflict")); got != 1 {
		t.Fatalf("expected 1 conflict call, got %v", got)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 2 {
		t.Fatalf("expected 2 metric families, got %d", len(families))
	}
}

func TestConversationMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConversationMetrics(reg)
	m.ObserveTurn("completed", 2, 1.5)
	if got := counterValue(t, m.turnsTotal.WithLabelValues("completed")); got != 1 {
		t.Fatalf("expected 1 completed turn, got %v", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var p *PredictionMetrics
	p.ObservePrediction("baseline")
	p.ObserveDegraded("error")

	var tm *ToolMetrics
	tm.ObserveCall("tool", "ok", "", 0.1)

	var c *ConversationMetrics
	c.ObserveTurn("completed", 1, 0.1)
}
