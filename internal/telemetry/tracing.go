package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/tamzrod/panel-keeper"

// TracerProvider holds the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
}

// NewTracerProvider installs a global provider for the given exporter.
// An empty exporter leaves the no-op global in place and returns nil.
func NewTracerProvider(exporter, serviceName string) (*TracerProvider, error) {
	switch exporter {
	case "":
		return nil, nil
	case "stdout":
	default:
		return nil, fmt.Errorf("telemetry: unknown trace exporter %q", exporter)
	}

	exp, err := stdouttrace.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: create trace exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
	)

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)

	return &TracerProvider{provider: provider}, nil
}

// Shutdown flushes and stops the provider. Safe on nil.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp == nil {
		return nil
	}
	return tp.provider.Shutdown(ctx)
}

// StartSpan starts a span on the global provider.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

// Common attribute keys.
var (
	AttrAttemptID = attribute.Key("keeper.attempt.id")
	AttrAction    = attribute.Key("keeper.action")
	AttrSource    = attribute.Key("keeper.source")
	AttrStrategy  = attribute.Key("keeper.strategy")
	AttrStatus    = attribute.Key("keeper.status")
)
