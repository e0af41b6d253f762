package opentelemetry

import (
	"github.com/dormoron/strand"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/dormoron/strand/middlewares/opentelemetry"

// MiddlewareBuilder builds a handler that opens a server span per request.
// Tracer and Propagator default to the otel globals.
type MiddlewareBuilder struct {
	Tracer     trace.Tracer
	Propagator propagation.TextMapPropagator
}

func (m *MiddlewareBuilder) Build() strand.Handler {
	tracer := m.Tracer
	if tracer == nil {
		tracer = otel.GetTracerProvider().Tracer(instrumentationName)
	}
	propagator := m.Propagator
	if propagator == nil {
		propagator = otel.GetTextMapPropagator()
	}

	return func(ctx *strand.Context) {
		reqCtx := propagator.Extract(ctx.Request.Context(), propagation.HeaderCarrier(ctx.Request.Header))
		reqCtx, span := tracer.Start(reqCtx, "unknown", trace.WithSpanKind(trace.SpanKindServer))
		defer func() {
			// 路由匹配后才知道名字
			if route := ctx.MatchedRoute(); route != "" {
				span.SetName(route)
			}
			status := ctx.Response.StatusCode()
			span.SetAttributes(attribute.Int("http.status_code", status))
			if status >= 500 {
				span.SetStatus(codes.Error, "")
			}
			span.End()
		}()

		span.SetAttributes(
			attribute.String("http.method", ctx.Request.Method),
			attribute.String("http.url", ctx.Request.URL.String()),
			attribute.String("http.scheme", ctx.Request.URL.Scheme),
			attribute.String("http.host", ctx.Request.Host),
			attribute.String("strand.request_id", string(ctx.RequestID())),
		)

		ctx.Request = ctx.Request.WithContext(reqCtx)
		ctx.Next()
	}
}
