package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetupDisabledWithoutEndpoint(t *testing.T) {
	tel, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tel != nil {
		t.Fatal("expected nil telemetry when disabled")
	}
	if err := tel.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil shutdown: %v", err)
	}
}

func TestStartSpanRecordsErrors(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, span := StartSpan(context.Background(), "stage.retrieval", attribute.Int("attempt", 1))
	End(span, errors.New("portal unavailable"))

	_, ok := StartSpan(context.Background(), "stage.scoring")
	End(ok, nil)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "stage.retrieval" || spans[0].Status().Code != codes.Error {
		t.Fatalf("unexpected failed span %s %v", spans[0].Name(), spans[0].Status())
	}
	if len(spans[0].Events()) == 0 {
		t.Fatal("expected recorded error event")
	}
	if spans[1].Status().Code == codes.Error {
		t.Fatal("successful span must not carry an error status")
	}
}

func TestParseHeaders(t *testing.T) {
	h := parseHeaders("Authorization=Bearer x, x-team = core,broken")
	if h["Authorization"] != "Bearer x" || h["x-team"] != "core" || len(h) != 2 {
		t.Fatalf("unexpected headers %v", h)
	}
}
