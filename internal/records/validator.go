package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/llm-synthdata/internal/extract"
)

// Record is one flat row as decoded from the model output.
type Record = extract.Object

// Dataset is a record set that passed validation.
type Dataset struct {
	Records   []*Record
	Requested int
}

func (d Dataset) Len() int { return len(d.Records) }

// CountMismatch reports whether the model produced a different number of records than requested.
func (d Dataset) CountMismatch() bool { return len(d.Records) != d.Requested }

type CountPolicy string

const (
	// CountPolicyTolerant accepts any non-empty result and logs a mismatch.
	CountPolicyTolerant CountPolicy = "tolerant"
	// CountPolicyExact rejects results whose length differs from the request.
	CountPolicyExact CountPolicy = "exact"
)

// ParseCountPolicy maps a configuration value to a policy; blank means tolerant.
func ParseCountPolicy(value string) (CountPolicy, error) {
	switch CountPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", CountPolicyTolerant:
		return CountPolicyTolerant, nil
	case CountPolicyExact:
		return CountPolicyExact, nil
	}
	return "", fmt.Errorf("unknown count policy %q (want %s or %s)", value, CountPolicyTolerant, CountPolicyExact)
}

type Reason string

const (
	ReasonEmpty         Reason = "empty"
	ReasonNotObject     Reason = "not_object"
	ReasonEmptyRecord   Reason = "empty_record"
	ReasonNestedValue   Reason = "nested_value"
	ReasonCellTooLong   Reason = "cell_too_long"
	ReasonTooFew        Reason = "too_few_records"
	ReasonCountMismatch Reason = "count_mismatch"
)

// ErrInvalidRecords matches every ValidationError through errors.Is.
var ErrInvalidRecords = errors.New("invalid record set")

// ValidationError describes the first check a candidate record set failed.
// Index is the offending record (-1 for set-level checks); Field is set for cell checks.
type ValidationError struct {
	Reason Reason
	Index  int
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validate: ")
	sb.WriteString(string(e.Reason))
	if e.Index >= 0 {
		sb.WriteString(fmt.Sprintf(" at record %d", e.Index))
	}
	if e.Field != "" {
		sb.WriteString(fmt.Sprintf(" field %q", e.Field))
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidRecords }

// Validator checks candidate record sets. The zero value is usable and tolerant.
type Validator struct {
	Policy        CountPolicy
	MinRecords    int
	MaxCellLength int
	Logger        *zap.Logger
}

// Validate promotes values to a Dataset or fails on the first violated check.
func (v Validator) Validate(values []any, requested int) (Dataset, error) {
	if len(values) == 0 {
		return Dataset{}, &ValidationError{Reason: ReasonEmpty, Index: -1, Detail: "model returned no records"}
	}

	validated := make([]*Record, 0, len(values))
	for index, value := range values {
		record, ok := value.(*Record)
		if !ok || record == nil {
			return Dataset{}, &ValidationError{Reason: ReasonNotObject, Index: index, Detail: fmt.Sprintf("got %s", describe(value))}
		}
		if record.Len() == 0 {
			return Dataset{}, &ValidationError{Reason: ReasonEmptyRecord, Index: index}
		}
		for _, key := range record.Keys() {
			cell, _ := record.Get(key)
			if err := v.checkCell(index, key, cell); err != nil {
				return Dataset{}, err
			}
		}
		validated = append(validated, record)
	}

	if err := v.checkCount(len(validated), requested); err != nil {
		return Dataset{}, err
	}
	return Dataset{Records: validated, Requested: requested}, nil
}

func (v Validator) checkCell(index int, key string, cell any) error {
	switch typed := cell.(type) {
	case nil, bool, json.Number, float64:
		return nil
	case string:
		if v.MaxCellLength > 0 && len([]rune(typed)) > v.MaxCellLength {
			return &ValidationError{Reason: ReasonCellTooLong, Index: index, Field: key, Detail: fmt.Sprintf("limit is %d characters", v.MaxCellLength)}
		}
		return nil
	default:
		return &ValidationError{Reason: ReasonNestedValue, Index: index, Field: key, Detail: fmt.Sprintf("got %s", describe(cell))}
	}
}

func (v Validator) checkCount(got int, requested int) error {
	minimum := v.MinRecords
	if minimum <= 0 {
		minimum = 1
	}
	if requested > 0 && requested < minimum {
		minimum = requested
	}
	if got < minimum {
		return &ValidationError{Reason: ReasonTooFew, Index: -1, Detail: fmt.Sprintf("got %d records, need at least %d", got, minimum)}
	}
	if requested <= 0 || got == requested {
		return nil
	}
	if v.Policy == CountPolicyExact {
		return &ValidationError{Reason: ReasonCountMismatch, Index: -1, Detail: fmt.Sprintf("got %d records, requested %d", got, requested)}
	}
	v.logger().Warn("record count differs from request",
		zap.Int("requested", requested),
		zap.Int("received", got),
	)
	return nil
}

func (v Validator) logger() *zap.Logger {
	if v.Logger == nil {
		return zap.NewNop()
	}
	return v.Logger
}

func describe(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case []any:
		return "array"
	case *extract.Object:
		return "object"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	}
	return fmt.Sprintf("%T", value)
}
