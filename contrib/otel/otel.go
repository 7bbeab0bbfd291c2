// Package otel provides a core.TelemetryHook that records each API call as
// an OpenTelemetry client span.
//
// A call span is a child of the span active in the caller's context, if
// any. Each span covers the whole logical call; retries are recorded as
// span events.
package otel

import (
	"context"
	"sync"

	gotel "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/petal-labs/showroom/core"
)

const instrumentationName = "github.com/petal-labs/showroom/contrib/otel"

// Hook turns call events into spans keyed by call id.
type Hook struct {
	tracer trace.Tracer
	spans  sync.Map // call id -> trace.Span
}

var (
	_ core.TelemetryHook = (*Hook)(nil)
	_ core.RetryObserver = (*Hook)(nil)
)

// New returns a Hook using tracer, or the global tracer provider when
// tracer is nil.
func New(tracer trace.Tracer) *Hook {
	if tracer == nil {
		tracer = gotel.Tracer(instrumentationName)
	}
	return &Hook{tracer: tracer}
}

// OnRequestStart starts the call span.
func (h *Hook) OnRequestStart(e core.RequestStartEvent) {
	ctx := e.Context
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := h.tracer.Start(ctx, "showroom."+e.Op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(e.Start),
		trace.WithAttributes(
			attribute.String("showroom.op", e.Op),
			attribute.String("showroom.call_id", e.CallID),
			attribute.String("http.request.method", e.Method),
			attribute.String("url.path", e.Path),
		),
	)
	h.spans.Store(e.CallID, span)
}

// OnRetry adds a retry event to the call span.
func (h *Hook) OnRetry(e core.RetryEvent) {
	v, ok := h.spans.Load(e.CallID)
	if !ok {
		return
	}
	v.(trace.Span).AddEvent("retry", trace.WithAttributes(
		attribute.Int("showroom.attempt", e.Attempt),
		attribute.Int64("showroom.retry_delay_ms", e.Delay.Milliseconds()),
		attribute.String("error.type", core.Kind(e.Err)),
	))
}

// OnRequestEnd ends the call span, marking it as an error on failure.
func (h *Hook) OnRequestEnd(e core.RequestEndEvent) {
	v, ok := h.spans.LoadAndDelete(e.CallID)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(
		attribute.Int("showroom.attempts", e.Attempts),
		attribute.Bool("showroom.stream", e.Stream),
	)
	if e.Status != 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", e.Status))
	}
	if e.Err != nil {
		span.RecordError(e.Err)
		span.SetStatus(codes.Error, core.Kind(e.Err))
		span.SetAttributes(attribute.String("error.type", core.Kind(e.Err)))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End(trace.WithTimestamp(e.End))
}
