package records_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/temirov/llm-synthdata/internal/extract"
	"github.com/temirov/llm-synthdata/internal/records"
)

func mustExtract(t *testing.T, text string) []any {
	t.Helper()
	values, err := extract.Extract(text)
	require.NoError(t, err)
	return values
}

func TestValidator_Validate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		requested int
		policy    records.CountPolicy
		reason    records.Reason
		index     int
		field     string
	}{
		{name: "empty array", input: `[]`, requested: 2, reason: records.ReasonEmpty, index: -1},
		{name: "scalar element", input: `[{"a":1}, 3]`, requested: 2, reason: records.ReasonNotObject, index: 1},
		{name: "nested array", input: `[{"a":[1,2]}]`, requested: 1, reason: records.ReasonNestedValue, index: 0, field: "a"},
		{name: "nested object", input: `[{"a":1},{"b":{"c":1}}]`, requested: 2, reason: records.ReasonNestedValue, index: 1, field: "b"},
		{name: "empty record", input: `[{}]`, requested: 1, reason: records.ReasonEmptyRecord, index: 0},
		{name: "exact policy mismatch", input: `[{"a":1}]`, requested: 2, policy: records.CountPolicyExact, reason: records.ReasonCountMismatch, index: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := records.Validator{Policy: tt.policy}
			_, err := validator.Validate(mustExtract(t, tt.input), tt.requested)
			require.Error(t, err)
			assert.True(t, errors.Is(err, records.ErrInvalidRecords))

			var validationErr *records.ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.reason, validationErr.Reason)
			assert.Equal(t, tt.index, validationErr.Index)
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestValidator_AcceptsFlatRecords(t *testing.T) {
	dataset, err := records.Validator{}.Validate(mustExtract(t, `[{"a":1,"b":"x","c":true,"d":null},{"a":2}]`), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, dataset.Len())
	assert.False(t, dataset.CountMismatch())
}

func TestValidator_TolerantMismatchLogsWarning(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	validator := records.Validator{Logger: zap.New(core)}

	dataset, err := validator.Validate(mustExtract(t, `[{"a":1},{"a":2},{"a":3}]`), 5)
	require.NoError(t, err)
	assert.True(t, dataset.CountMismatch())
	assert.Equal(t, 5, dataset.Requested)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "record count differs from request", logs.All()[0].Message)
}

func TestValidator_MinRecords(t *testing.T) {
	validator := records.Validator{MinRecords: 3}

	_, err := validator.Validate(mustExtract(t, `[{"a":1},{"a":2}]`), 10)
	var validationErr *records.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, records.ReasonTooFew, validationErr.Reason)

	// The floor never exceeds the requested size.
	_, err = validator.Validate(mustExtract(t, `[{"a":1},{"a":2}]`), 2)
	require.NoError(t, err)
}

func TestValidator_MaxCellLength(t *testing.T) {
	validator := records.Validator{MaxCellLength: 4}
	_, err := validator.Validate(mustExtract(t, `[{"name":"abcdef"}]`), 1)
	var validationErr *records.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, records.ReasonCellTooLong, validationErr.Reason)
	assert.Equal(t, "name", validationErr.Field)
}

func TestParseCountPolicy(t *testing.T) {
	policy, err := records.ParseCountPolicy("")
	require.NoError(t, err)
	assert.Equal(t, records.CountPolicyTolerant, policy)

	policy, err = records.ParseCountPolicy(" Exact ")
	require.NoError(t, err)
	assert.Equal(t, records.CountPolicyExact, policy)

	_, err = records.ParseCountPolicy("strictish")
	assert.Error(t, err)
}

func TestProperty_TolerantAcceptsAnyNonEmptyCount(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		count := rapid.IntRange(1, 20).Draw(rt, "count")
		requested := rapid.IntRange(1, 50).Draw(rt, "requested")
		values := make([]any, count)
		for index := range values {
			record := extract.NewObject()
			record.Set("id", fmt.Sprintf("row-%d", index))
			values[index] = record
		}
		dataset, err := records.Validator{}.Validate(values, requested)
		require.NoError(rt, err)
		require.Equal(rt, count, dataset.Len())
	})
}
