package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldSnapshot is the structured log field key for the trained snapshot id.
	FieldSnapshot = "snapshot_id"
	// FieldModelsDir is the structured log field key for the artifacts directory.
	FieldModelsDir = "models_dir"
	// FieldInternship is the structured log field key for an internship title.
	FieldInternship = "internship"
	// FieldCompany is the structured log field key for a company name.
	FieldCompany = "company"
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

// WithFields safely attaches the provided fields to the logger.
// A nil logger becomes a no-op logger.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}

	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

// SnapshotFields describes which trained snapshot served or produced an entry.
func SnapshotFields(snapshotID, modelsDir string) []zap.Field {
	return StringFields(
		StringField{Key: FieldSnapshot, Value: snapshotID},
		StringField{Key: FieldModelsDir, Value: modelsDir},
	)
}

// WithSnapshot attaches the snapshot fields to the provided logger.
func WithSnapshot(logger *zap.Logger, snapshotID, modelsDir string) *zap.Logger {
	return WithFields(logger, SnapshotFields(snapshotID, modelsDir)...)
}

// InternshipFields identifies one internship in a log entry.
func InternshipFields(title, company string) []zap.Field {
	return StringFields(
		StringField{Key: FieldInternship, Value: title},
		StringField{Key: FieldCompany, Value: company},
	)
}
