package transport

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FumingPower3925/hyperframe/pkg/h2"
)

const tracerName = "hyperframe"

// startRequestSpan opens a server span for an ingress request message.
func startRequestSpan(ctx context.Context, msg *h2.Message, streamID uint32) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, msg.Method+" "+msg.URL,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", msg.Method),
			attribute.String("url.path", msg.URL),
			attribute.Int("http2.stream_id", int(streamID)),
		),
	)
	return ctx, span
}

// endRequestSpan records the response status and closes the span.
func endRequestSpan(span trace.Span, statusCode int) {
	span.SetAttributes(attribute.Int("http.response.status_code", statusCode))
	if statusCode >= 500 {
		span.SetStatus(codes.Error, "server error")
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
