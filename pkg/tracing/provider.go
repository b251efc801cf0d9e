package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
)

// Options configures the tracer provider built by Init.
type Options struct {
	ServiceName string
	OTLPEnabled bool
	OTLP        exporters.OTLPConfig
}

// Init builds the global tracer provider and returns its shutdown func. When
// OTLP export is disabled spans are recorded and dropped.
func Init(ctx context.Context, opts Options) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter = &exporters.DiscardExporter{}
	if opts.OTLPEnabled {
		otlp, err := exporters.NewOTLPExporter(ctx, opts.OTLP)
		if err != nil {
			return nil, err
		}
		exporter = otlp
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	SetTracer(provider.Tracer(opts.ServiceName))
	return provider.Shutdown, nil
}
