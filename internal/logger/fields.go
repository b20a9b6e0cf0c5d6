package logger

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// FieldItemID is the structured log field key for the queue item id.
	FieldItemID = "item_id"
	// FieldFile is the structured log field key for the queued file name.
	FieldFile = "file"
	// FieldStatus is the structured log field key for the item status.
	FieldStatus = "status"
	// FieldCandidateID is the structured log field key for the backend candidate id.
	FieldCandidateID = "candidate_id"
	// FieldMessage is the structured log field key for the item status message.
	FieldMessage = "message"
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

// ItemFields returns the standard fields describing a queue item.
// Empty values are omitted, so an item without a candidate id logs no candidate_id key.
func ItemFields(id, file, status, candidateID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldItemID, Value: id},
		StringField{Key: FieldFile, Value: file},
		StringField{Key: FieldStatus, Value: status},
		StringField{Key: FieldCandidateID, Value: candidateID},
	)
}
