// Package tracing wraps OpenTracing/Jaeger behind a small surface: callers
// start a span, stash it on the context, and later call FinishSpan/LogError
// without importing opentracing themselves.
package tracing

import (
	"context"
	"io"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	jaeger "github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
)

// Configure builds a Jaeger tracer reporting to agentHostPort (typically
// "127.0.0.1:6831") under serviceName, installs it as the global tracer,
// and returns the io.Closer to flush on shutdown.
func Configure(serviceName, agentHostPort string) (io.Closer, error) {
	cfg := jaegercfg.Configuration{
		ServiceName: serviceName,
		Sampler: &jaegercfg.SamplerConfig{
			Type:  jaeger.SamplerTypeConst,
			Param: 1,
		},
		Reporter: &jaegercfg.ReporterConfig{
			LocalAgentHostPort: agentHostPort,
			LogSpans:           false,
		},
	}
	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, err
	}
	opentracing.SetGlobalTracer(tracer)
	return closer, nil
}

// StartSpan starts a new span named op as a child of any span already on
// ctx, returning the updated context.
func StartSpan(ctx context.Context, op string, tags map[string]string) (context.Context, opentracing.Span) {
	var opts []opentracing.StartSpanOption
	if parent := opentracing.SpanFromContext(ctx); parent != nil {
		opts = append(opts, opentracing.ChildOf(parent.Context()))
	}
	span := opentracing.StartSpan(op, opts...)
	for k, v := range tags {
		span.SetTag(k, v)
	}
	return opentracing.ContextWithSpan(ctx, span), span
}

// FinishSpan finishes whatever span is attached to ctx (a no-op if none),
// marking it as an error span when err != nil.
func FinishSpan(ctx context.Context, err error) {
	span := opentracing.SpanFromContext(ctx)
	if span == nil {
		return
	}
	if err != nil {
		ext.Error.Set(span, true)
		span.SetTag("error.message", err.Error())
	}
	span.Finish()
}

// LogError attaches an error event to span without finishing it, used when
// a handler wants to annotate a span it doesn't own the lifetime of.
func LogError(span opentracing.Span, message string) {
	if span == nil {
		return
	}
	span.LogKV("event", "error", "message", message)
}
