package logger

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestStringFields(t *testing.T) {
	fields := StringFields(
		StringField{Key: "  run_id  ", Value: "  abc  "},
		StringField{Key: "ignored", Value: "   "},
		StringField{Key: "   ", Value: "empty key"},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}

	if fields[0].Key != "run_id" || fields[0].String != "abc" {
		t.Fatalf("unexpected field: %+v", fields[0])
	}

	if empty := StringFields(); len(empty) != 0 {
		t.Fatalf("expected empty fields, got %d", len(empty))
	}
}

func TestWithFieldsFallsBackToNop(t *testing.T) {
	core, observed := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	WithFields(logger, zap.String("foo", "bar")).Info("test log")

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["foo"]; got != "bar" {
		t.Fatalf("expected field to be bar, got %q", got)
	}

	enriched := WithFields(nil, zap.String("baz", "qux"))
	if enriched == nil {
		t.Fatalf("expected fallback logger when nil provided")
	}
	enriched.Info("another log")
}

func TestProviderFields(t *testing.T) {
	fields := ProviderFields("  gemini  ", "model-v1")
	if len(fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(fields))
	}
	if fields[0].Key != FieldProvider || fields[0].String != "gemini" {
		t.Fatalf("unexpected provider field: %+v", fields[0])
	}
	if fields[1].Key != FieldModel || fields[1].String != "model-v1" {
		t.Fatalf("unexpected model field: %+v", fields[1])
	}

	if empty := ProviderFields("", ""); len(empty) != 0 {
		t.Fatalf("expected empty fields, got %d", len(empty))
	}
}

func TestWithRunAndStage(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	logger := WithRun(zap.New(core), "run-1")

	logger.Debug("stage", StageFields("PLANNING", 2)...)

	entries := observed.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	ctx := entries[0].ContextMap()
	if ctx[FieldRunID] != "run-1" {
		t.Fatalf("expected run id, got %v", ctx[FieldRunID])
	}
	if ctx[FieldStage] != "PLANNING" {
		t.Fatalf("expected stage, got %v", ctx[FieldStage])
	}
	if ctx[FieldAttempt] != int64(2) {
		t.Fatalf("expected attempt 2, got %v", ctx[FieldAttempt])
	}
}
