package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "hospital"

// PredictionMetrics tracks wait-time predictions and estimator fallbacks.
type PredictionMetrics struct {
	predictionsTotal *prometheus.CounterVec
	degradedTotal    *prometheus.CounterVec
}

func NewPredictionMetrics(reg prometheus.Registerer) *PredictionMetrics {
	m := &PredictionMetrics{
		predictionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "predictions_total",
			Help:      "Total wait-time predictions by base scalar source",
		}, []string{"source"}),
		degradedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "prediction_degraded_total",
			Help:      "Predictions that fell back to the baseline because the estimator failed",
		}, []string{"reason"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.predictionsTotal, m.degradedTotal)
	return m
}

func (m *PredictionMetrics) ObservePrediction(source string) {
	if m == nil {
		return
	}
	m.predictionsTotal.WithLabelValues(source).Inc()
}

func (m *PredictionMetrics) ObserveDegraded(reason string) {
	if m == nil {
		return
	}
	m.degradedTotal.WithLabelValues(reason).Inc()
}

// ToolMetrics tracks tool executions.
type ToolMetrics struct {
	callsTotal  *prometheus.CounterVec
	callLatency *prometheus.HistogramVec
}

func NewToolMetrics(reg prometheus.Registerer) *ToolMetrics {
	m := &ToolMetrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Total tool calls by tool, status and error code",
		}, []string{"tool", "status", "code"}),
		callLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tools",
			Name:      "call_latency_seconds",
			Help:      "Latency of individual tool calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.callsTotal, m.callLatency)
	return m
}

func (m *ToolMetrics) ObserveCall(tool, status, code string, seconds float64) {
	if m == nil {
		return
	}
	m.callsTotal.WithLabelValues(tool, status, code).Inc()
	m.callLatency.WithLabelValues(tool).Observe(seconds)
}

// ConversationMetrics tracks orchestrator turns.
type ConversationMetrics struct {
	turnsTotal     *prometheus.CounterVec
	turnIterations prometheus.Histogram
	turnLatency    prometheus.Histogram
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Total conversation turns by outcome",
		}, []string{"outcome"}),
		turnIterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "turn_iterations",
			Help:      "Model invocations per turn",
			Buckets:   []float64{1, 2, 3, 4, 6, 8},
		}),
		turnLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Wall time of a conversation turn",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnIterations, m.turnLatency)
	return m
}

func (m *ConversationMetrics) ObserveTurn(outcome string, iterations int, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(outcome).Inc()
	m.turnIterations.Observe(float64(iterations))
	m.turnLatency.Observe(seconds)
}
