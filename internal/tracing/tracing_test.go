package tracing

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{}, zap.NewNop())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestSetup_Enabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := Setup(context.Background(), Options{
		Enabled:     true,
		Endpoint:    "127.0.0.1:4318",
		Insecure:    true,
		ServiceName: "launchpad-test",
		SampleRatio: 2,
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if otel.GetTracerProvider() == prev {
		t.Fatal("global tracer provider not installed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = shutdown(ctx) // no spans were recorded, nothing to export
}

func TestClamp(t *testing.T) {
	if clamp(-1) != 0 || clamp(0.25) != 0.25 || clamp(3) != 1 {
		t.Fatal("clamp out of range")
	}
}
