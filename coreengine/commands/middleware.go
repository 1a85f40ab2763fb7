package commands

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/blendmate/bridge/coreengine/observability"
)

// Middleware intercepts command dispatch.
//
// Before may return a derived context, or an error to reject the command.
// After always runs, including for rejected and unknown commands.
type Middleware interface {
	Before(ctx context.Context, req *Request) (context.Context, error)
	After(ctx context.Context, req *Request, res *Result)
}

// =============================================================================
// LOGGING MIDDLEWARE
// =============================================================================

// LoggingMiddleware logs each command and its outcome.
type LoggingMiddleware struct {
	logger observability.Logger
}

// NewLoggingMiddleware creates a LoggingMiddleware.
func NewLoggingMiddleware(logger observability.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{logger: observability.OrNop(logger)}
}

// Before logs receipt.
func (m *LoggingMiddleware) Before(ctx context.Context, req *Request) (context.Context, error) {
	m.logger.Debug("command_received", "action", req.Action, "request_id", req.ID, "target", req.Target)
	return ctx, nil
}

// After logs completion.
func (m *LoggingMiddleware) After(_ context.Context, req *Request, res *Result) {
	if res.Success {
		m.logger.Debug("command_completed", "action", req.Action, "request_id", req.ID, "warnings", len(res.Warnings))
		return
	}
	m.logger.Warn("command_failed",
		"action", req.Action,
		"request_id", req.ID,
		"code", string(res.Code),
		"error", res.Error,
	)
}

// =============================================================================
// METRICS MIDDLEWARE
// =============================================================================

type startKey struct{}

// MetricsMiddleware records command counts and latency.
type MetricsMiddleware struct{}

// NewMetricsMiddleware creates a MetricsMiddleware.
func NewMetricsMiddleware() *MetricsMiddleware {
	return &MetricsMiddleware{}
}

// Before stamps the start time.
func (m *MetricsMiddleware) Before(ctx context.Context, _ *Request) (context.Context, error) {
	return context.WithValue(ctx, startKey{}, time.Now()), nil
}

// After records the outcome.
func (m *MetricsMiddleware) After(ctx context.Context, req *Request, res *Result) {
	var ms float64
	if start, ok := ctx.Value(startKey{}).(time.Time); ok {
		ms = float64(time.Since(start).Microseconds()) / 1000
	}
	observability.RecordCommand(req.Action, string(res.Code), ms)
}

// =============================================================================
// TRACING MIDDLEWARE
// =============================================================================

type spanKey struct{}

// TracingMiddleware opens one span per command.
type TracingMiddleware struct {
	tracer oteltrace.Tracer
}

// NewTracingMiddleware creates a TracingMiddleware. A nil tracer uses the
// bridge tracer from the global provider.
func NewTracingMiddleware(tracer oteltrace.Tracer) *TracingMiddleware {
	if tracer == nil {
		tracer = observability.Tracer()
	}
	return &TracingMiddleware{tracer: tracer}
}

// Before starts the span.
func (m *TracingMiddleware) Before(ctx context.Context, req *Request) (context.Context, error) {
	ctx, span := m.tracer.Start(ctx, "command "+req.Action,
		oteltrace.WithSpanKind(oteltrace.SpanKindServer),
		oteltrace.WithAttributes(
			attribute.String("command.action", req.Action),
			attribute.String("command.request_id", req.ID),
			attribute.String("command.target", req.Target),
		),
	)
	return context.WithValue(ctx, spanKey{}, span), nil
}

// After ends the span.
func (m *TracingMiddleware) After(ctx context.Context, _ *Request, res *Result) {
	span, ok := ctx.Value(spanKey{}).(oteltrace.Span)
	if !ok {
		return
	}
	span.SetAttributes(attribute.String("command.code", string(res.Code)))
	if !res.Success {
		span.SetStatus(codes.Error, res.Error)
	}
	span.End()
}

var (
	_ Middleware = (*LoggingMiddleware)(nil)
	_ Middleware = (*MetricsMiddleware)(nil)
	_ Middleware = (*TracingMiddleware)(nil)
)
