// Package observability wires OpenTelemetry tracing and Prometheus metrics
// around the core's own operations (§4.11 step's LLM call, each dispatched
// tool call, each compaction decision) — scoped down from the teacher's
// pkg/observability, which additionally instruments an HTTP server, a RAG
// store, and session storage this core doesn't have.
package observability

import "time"

// TracingConfig configures the OpenTelemetry tracer provider (§10).
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"` // "stdout" or "otlp"
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	ServiceName  string  `yaml:"service_name"`
	Timeout      time.Duration `yaml:"timeout"`
}

func (c *TracingConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "agentcore"
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
	if c.Exporter == "" {
		c.Exporter = "stdout"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// MetricsConfig configures the Prometheus registry (§10).
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

func (c *MetricsConfig) SetDefaults() {
	if c.Namespace == "" {
		c.Namespace = "agentcore"
	}
}
