package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldRunID is the structured log field key for the workflow run identity.
	FieldRunID = "run_id"
	// FieldStage is the structured log field key for the workflow stage.
	FieldStage = "stage"
	// FieldAttempt is the structured log field key for the 0-based retrieval attempt.
	FieldAttempt = "attempt"
	// FieldCallID is the structured log field key for a candidate call identifier.
	FieldCallID = "call_id"
	// FieldProvider is the structured log field key for the AI provider name.
	FieldProvider = "ai_provider"
	// FieldModel is the structured log field key for the AI model identifier.
	FieldModel = "ai_model"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts the provided key/value pairs into zap fields, trimming
// whitespace and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches the provided fields to the logger.
// A nil logger is replaced by a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// ProviderFields returns fields that describe the AI provider and model.
func ProviderFields(provider, model string) []zap.Field {
	return StringFields(
		StringField{Key: FieldProvider, Value: provider},
		StringField{Key: FieldModel, Value: model},
	)
}

// WithProvider attaches the provider fields to the logger.
func WithProvider(logger *zap.Logger, provider, model string) *zap.Logger {
	return WithFields(logger, ProviderFields(provider, model)...)
}

// WithRun attaches the run identity to the logger.
func WithRun(logger *zap.Logger, runID string) *zap.Logger {
	return WithFields(logger, StringFields(StringField{Key: FieldRunID, Value: runID})...)
}

// StageFields describes a workflow stage within an attempt.
func StageFields(stage string, attempt int) []zap.Field {
	fields := StringFields(StringField{Key: FieldStage, Value: stage})
	return append(fields, zap.Int(FieldAttempt, attempt))
}
