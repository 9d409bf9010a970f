package provider

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/adnify/agentcore/internal/observability"
	"github.com/adnify/agentcore/internal/streamevent"
)

// instrumented wraps a Provider with an OpenTelemetry span and Prometheus
// metrics around each Chat call (§10: "tracing spans around each
// Provider.chat call... span attributes: provider, model, duration, token
// usage; span status set to codes.Error on failure"). The span stays open
// for the lifetime of the returned event channel, since Chat is a streaming
// call — it closes only once the wrapped stream is fully drained.
type instrumented struct {
	inner    Provider
	metrics  *observability.Metrics
	protocol string
}

// Instrument wraps prov so every Chat call is traced and measured. metrics
// may be nil (all recording becomes a no-op); protocolName labels both the
// span and the metrics.
func Instrument(prov Provider, metrics *observability.Metrics, protocolName string) Provider {
	return &instrumented{inner: prov, metrics: metrics, protocol: protocolName}
}

func (p *instrumented) Chat(ctx context.Context, req Request) (<-chan streamevent.Event, error) {
	tracer := observability.Tracer("agentcore/provider")
	ctx, span := tracer.Start(ctx, "provider.chat", trace.WithAttributes(
		attribute.String("llm.provider", p.protocol),
		attribute.String("llm.model", req.Model),
	))

	start := time.Now()
	events, err := p.inner.Chat(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		p.metrics.RecordLLMError(req.Model, p.protocol)
		return nil, err
	}

	out := make(chan streamevent.Event)
	go func() {
		defer close(out)
		defer span.End()
		var usage *streamevent.Usage
		var sawError error
		for ev := range events {
			if ev.Kind == streamevent.KindUsage {
				usage = ev.Usage
			}
			if ev.Kind == streamevent.KindError {
				sawError = ev.Err
			}
			out <- ev
		}
		p.metrics.RecordLLMCall(req.Model, p.protocol, time.Since(start))
		span.SetAttributes(attribute.Int64("llm.duration_ms", time.Since(start).Milliseconds()))
		if usage != nil {
			p.metrics.RecordLLMTokens(req.Model, p.protocol, usage.InputTokens, usage.OutputTokens)
			span.SetAttributes(
				attribute.Int("llm.usage.input_tokens", usage.InputTokens),
				attribute.Int("llm.usage.output_tokens", usage.OutputTokens),
			)
		}
		if sawError != nil {
			span.RecordError(sawError)
			span.SetStatus(codes.Error, sawError.Error())
			p.metrics.RecordLLMError(req.Model, p.protocol)
		}
	}()
	return out, nil
}
