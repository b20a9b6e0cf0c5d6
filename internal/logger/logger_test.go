package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{
			name:   "returns empty when limit non-positive",
			input:  "hello world",
			limit:  0,
			expect: "",
		},
		{
			name:   "shorter than limit",
			input:  "hello",
			limit:  10,
			expect: "hello",
		},
		{
			name:   "truncates and adds ellipsis",
			input:  "hello world",
			limit:  5,
			expect: "hello...",
		},
		{
			name:   "trims surrounding whitespace",
			input:  "  spaced  ",
			limit:  5,
			expect: "space...",
		},
		{
			name:   "counts runes not bytes",
			input:  "привет мир",
			limit:  6,
			expect: "привет...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expect, TruncateForLog(tt.input, tt.limit))
		})
	}
}

func TestItemFieldsSkipsEmptyValues(t *testing.T) {
	t.Parallel()

	fields := ItemFields("upload-1", "cv.pdf", "pending", "  ")
	require.Len(t, fields, 3)

	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{FieldItemID, FieldFile, FieldStatus}, keys)
}

func TestWithFieldsHandlesNilLogger(t *testing.T) {
	t.Parallel()

	l := WithFields(nil, zap.String("k", "v"))
	require.NotNil(t, l)
	l.Info("does not panic")
}

func TestWithFieldsAttachesFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	l := WithFields(zap.New(core), ItemFields("upload-1", "cv.pdf", "", "")...)
	l.Info("queued")

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "upload-1", ctx[FieldItemID])
	assert.Equal(t, "cv.pdf", ctx[FieldFile])
	assert.NotContains(t, ctx, FieldStatus)
}
