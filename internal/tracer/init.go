package tracer

import (
	"context"
	"log"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

const (
	serviceName     = "finsight-be"
	defaultEndpoint = "localhost:4318"
)

type ShutdownFunc func(context.Context) error

func noop(context.Context) error { return nil }

// InitTracer exports spans over OTLP HTTP when OTEL_ENABLED=true and is a no-op otherwise.
// OTEL_TRACES_SAMPLER_RATIO below 1 samples root spans.
func InitTracer() ShutdownFunc {
	if os.Getenv("OTEL_ENABLED") != "true" {
		return noop
	}

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		log.Printf("Warning: OTLP exporter unavailable, tracing disabled: %v", err)
		return noop
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(samplerRatio()))),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
			semconv.DeploymentEnvironmentKey.String(os.Getenv("GO_ENV")),
		)),
	)
	otel.SetTracerProvider(tp)
	log.Printf("OpenTelemetry tracing enabled (endpoint: %s)", endpoint)

	return tp.Shutdown
}
