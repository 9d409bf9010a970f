package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus counters/histograms for the three kinds of
// operation this core performs repeatedly (§10): LLM calls, tool calls, and
// compaction events. Grounded on the teacher's pkg/observability/metrics.go,
// trimmed to those three subsystems — this core has no HTTP server, RAG
// store, or session store of its own to instrument.
type Metrics struct {
	registry *prometheus.Registry

	llmCalls        *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
	llmTokensInput  *prometheus.CounterVec
	llmTokensOutput *prometheus.CounterVec
	llmErrors       *prometheus.CounterVec

	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	toolErrors       *prometheus.CounterVec

	compactionEvents *prometheus.CounterVec
}

// NewMetrics builds a Metrics instance, or returns nil when disabled; every
// method on Metrics is nil-receiver safe so callers never need a presence
// check before recording.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	cfg.SetDefaults()

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: "llm", Name: "calls_total", Help: "Total LLM API calls",
	}, []string{"model", "provider"})
	m.llmCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace, Subsystem: "llm", Name: "call_duration_seconds", Help: "LLM API call duration",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"model", "provider"})
	m.llmTokensInput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: "llm", Name: "tokens_input_total", Help: "Total input tokens consumed",
	}, []string{"model", "provider"})
	m.llmTokensOutput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: "llm", Name: "tokens_output_total", Help: "Total output tokens generated",
	}, []string{"model", "provider"})
	m.llmErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: "llm", Name: "errors_total", Help: "Total LLM API errors",
	}, []string{"model", "provider"})

	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: "tool", Name: "calls_total", Help: "Total tool invocations",
	}, []string{"tool_name"})
	m.toolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: cfg.Namespace, Subsystem: "tool", Name: "call_duration_seconds", Help: "Tool execution duration",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
	}, []string{"tool_name"})
	m.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: "tool", Name: "errors_total", Help: "Total tool errors",
	}, []string{"tool_name"})

	m.compactionEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: cfg.Namespace, Subsystem: "compactor", Name: "events_total", Help: "Total compaction events by level",
	}, []string{"level"})

	m.registry.MustRegister(
		m.llmCalls, m.llmCallDuration, m.llmTokensInput, m.llmTokensOutput, m.llmErrors,
		m.toolCalls, m.toolCallDuration, m.toolErrors,
		m.compactionEvents,
	)
	return m
}

func (m *Metrics) RecordLLMCall(model, provider string, d time.Duration) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(model, provider).Inc()
	m.llmCallDuration.WithLabelValues(model, provider).Observe(d.Seconds())
}

func (m *Metrics) RecordLLMTokens(model, provider string, input, output int) {
	if m == nil {
		return
	}
	m.llmTokensInput.WithLabelValues(model, provider).Add(float64(input))
	m.llmTokensOutput.WithLabelValues(model, provider).Add(float64(output))
}

func (m *Metrics) RecordLLMError(model, provider string) {
	if m == nil {
		return
	}
	m.llmErrors.WithLabelValues(model, provider).Inc()
}

func (m *Metrics) RecordToolCall(toolName string, d time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName).Inc()
	m.toolCallDuration.WithLabelValues(toolName).Observe(d.Seconds())
}

func (m *Metrics) RecordToolError(toolName string) {
	if m == nil {
		return
	}
	m.toolErrors.WithLabelValues(toolName).Inc()
}

func (m *Metrics) RecordCompactionEvent(level string) {
	if m == nil {
		return
	}
	m.compactionEvents.WithLabelValues(level).Inc()
}

// Handler exposes the registry for scraping; callers decide whether/how to
// serve it (this core has no HTTP server of its own to mount it on).
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) })
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
