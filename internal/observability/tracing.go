package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/questforge/embeddings/internal/config"
)

const defaultServiceName = "embeddings-api"

// Resource attributes describing which embedding backend this process talks to.
const (
	AttrResourceProvider   = "embeddings.provider"
	AttrResourceModel      = "embeddings.model"
	AttrResourceDimensions = "embeddings.dimensions"
)

// newResource describes the process for both traces and metrics: the service name plus the
// embedding provider, model and vector size. It is not merged with resource.Default(), whose
// Schema URL may differ.
func newResource(cfg *config.Config) *resource.Resource {
	name := defaultServiceName
	attrs := make([]attribute.KeyValue, 0, 4)

	if cfg != nil {
		if cfg.OtelServiceName != "" {
			name = cfg.OtelServiceName
		}

		attrs = append(attrs,
			attribute.String(AttrResourceProvider, cfg.EmbeddingProvider),
			attribute.Int(AttrResourceDimensions, cfg.EmbeddingDimensions),
		)

		if cfg.EmbeddingModel != "" {
			attrs = append(attrs, attribute.String(AttrResourceModel, cfg.EmbeddingModel))
		}
	}

	attrs = append(attrs, semconv.ServiceName(name))

	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

// newSampler maps the configured sampler onto the SDK. Ratio samplers use
// cfg.OtelTracesSamplerRatio, which config validation keeps within [0, 1].
func newSampler(cfg *config.Config) sdktrace.Sampler {
	ratio := cfg.OtelTracesSamplerRatio

	switch cfg.OtelTracesSampler {
	case config.SamplerAlwaysOn:
		return sdktrace.AlwaysSample()
	case config.SamplerAlwaysOff:
		return sdktrace.NeverSample()
	case config.SamplerTraceIDRatio:
		return sdktrace.TraceIDRatioBased(ratio)
	case config.SamplerParentBasedTraceIDRatio:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	case config.SamplerParentBasedAlwaysOff:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	default:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
}

// newSpanExporter returns nil for an empty or unknown exporter name. The OTLP exporter reads
// OTEL_EXPORTER_OTLP_ENDPOINT and friends from the environment.
func newSpanExporter(ctx context.Context, exporter string) (sdktrace.SpanExporter, error) {
	switch exporter {
	case "otlp":
		exp, err := otlptracehttp.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("create OTLP HTTP trace exporter: %w", err)
		}

		return exp, nil
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}

		return exp, nil
	default:
		//nolint:nilnil // no exporter configured
		return nil, nil
	}
}

// NewTracerProvider creates a TracerProvider from cfg and installs it globally together with
// the W3C trace-context propagator. Returns (nil, nil) when tracing is disabled.
func NewTracerProvider(ctx context.Context, cfg *config.Config) (*sdktrace.TracerProvider, error) {
	if cfg == nil {
		//nolint:nilnil // tracing disabled, caller checks for nil
		return nil, nil
	}

	exp, err := newSpanExporter(ctx, cfg.OtelTracesExporter)
	if err != nil {
		return nil, err
	}

	if exp == nil {
		//nolint:nilnil // tracing disabled, caller checks for nil
		return nil, nil
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(newResource(cfg)),
		sdktrace.WithSampler(newSampler(cfg)),
		sdktrace.WithBatcher(exp),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))

	return tp, nil
}

// ShutdownTracerProvider flushes and shuts down provider. Safe to call with nil.
func ShutdownTracerProvider(ctx context.Context, provider *sdktrace.TracerProvider) error {
	if provider == nil {
		return nil
	}

	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("tracer provider shutdown: %w", err)
	}

	return nil
}
