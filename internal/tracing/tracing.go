// Package tracing installs the global OpenTelemetry tracer provider.
//
// Spans are opened by the provider client around every Site Provider
// call and by the HTTP layer around each API request.  With tracing
// disabled the global provider stays the no-op default, so instrumented
// code pays nothing.
package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"
)

// Options mirrors config.Tracing.
type Options struct {
	Enabled     bool
	Endpoint    string // host:port of the OTLP/HTTP collector
	Insecure    bool
	ServiceName string
	Version     string
	SampleRatio float64
}

// Shutdown flushes pending spans.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Setup builds the exporter and tracer provider and installs them
// globally.  The returned Shutdown must be called on exit.
func Setup(ctx context.Context, opts Options, log *zap.Logger) (Shutdown, error) {
	if !opts.Enabled {
		return noop, nil
	}
	if log == nil {
		log = zap.L()
	}

	expOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		expOpts = append(expOpts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, expOpts...)
	if err != nil {
		return noop, fmt.Errorf("tracing: exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(opts.ServiceName),
			semconv.ServiceVersionKey.String(opts.Version),
			attribute.String("service.component", "api"),
		),
	)
	if err != nil {
		log.Warn("otel resource init failed (continuing)", zap.Error(err))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(clamp(opts.SampleRatio)))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info("otel tracing initialized",
		zap.String("service", opts.ServiceName),
		zap.String("endpoint", opts.Endpoint),
		zap.Float64("sample_ratio", clamp(opts.SampleRatio)),
	)
	return tp.Shutdown, nil
}

func clamp(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}
