// Package telemetry wraps OpenTelemetry span creation for the booking and
// notification pipelines. No exporter is wired: absent a registered
// TracerProvider, otel.Tracer returns a no-op tracer, so spans are free
// until a collector is configured via SetTracerProvider elsewhere.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/arunvm123/reservationengine"

// StartSpan starts a span named for the operation and decorates it with attrs.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, name)
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	return ctx, span
}

func Tenant(id string) attribute.KeyValue {
	return attribute.String("tenant.id", id)
}

func BookingID(id string) attribute.KeyValue {
	return attribute.String("booking.id", id)
}

func ResourceID(id string) attribute.KeyValue {
	return attribute.String("resource.id", id)
}
