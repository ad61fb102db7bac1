package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Reason classifies why an attempt produced no JSON array.
type Reason string

const (
	ReasonNoArrayFound  Reason = "no_array_found"
	ReasonMalformedJSON Reason = "malformed_json"

	maxArrayCandidates = 32
)

var (
	ErrNoArrayFound  = errors.New("no JSON array found")
	ErrMalformedJSON = errors.New("malformed JSON array")
)

// ExtractionError reports a recoverable extraction failure for one attempt.
type ExtractionError struct {
	Reason Reason
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract: %s", e.Reason)
	}
	return fmt.Sprintf("extract: %s: %v", e.Reason, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Is lets errors.Is match the reason sentinels.
func (e *ExtractionError) Is(target error) bool {
	switch target {
	case ErrNoArrayFound:
		return e.Reason == ReasonNoArrayFound
	case ErrMalformedJSON:
		return e.Reason == ReasonMalformedJSON
	}
	return false
}

// Extract locates the first complete JSON array in cleaned text and decodes it.
// Objects decode to *Object so key order survives; numbers decode to json.Number.
// A failed decode gets one trailing-comma repair before the candidate is abandoned.
func Extract(cleaned string) ([]any, error) {
	offset := 0
	var lastErr error
	for candidate := 0; candidate < maxArrayCandidates; candidate++ {
		start := strings.IndexByte(cleaned[offset:], '[')
		if start < 0 {
			break
		}
		start += offset
		end, closed := matchingBracket(cleaned, start)
		if !closed {
			return nil, &ExtractionError{Reason: ReasonMalformedJSON, Err: fmt.Errorf("array opened at offset %d is never closed", start)}
		}
		values, decodeErr := decodeWithRepair(cleaned[start : end+1])
		if decodeErr == nil {
			return values, nil
		}
		lastErr = decodeErr
		offset = end + 1
	}
	if lastErr != nil {
		return nil, &ExtractionError{Reason: ReasonMalformedJSON, Err: lastErr}
	}
	return nil, &ExtractionError{Reason: ReasonNoArrayFound}
}

// matchingBracket returns the index of the ']' closing the '[' at start. Brackets
// inside string literals do not count.
func matchingBracket(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for index := start; index < len(text); index++ {
		ch := text[index]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return index, true
			}
		}
	}
	return -1, false
}

func decodeWithRepair(candidate string) ([]any, error) {
	values, err := decodeArray(candidate)
	if err == nil {
		return values, nil
	}
	repaired := stripTrailingCommas(candidate)
	if repaired == candidate {
		return nil, err
	}
	values, repairErr := decodeArray(repaired)
	if repairErr != nil {
		return nil, fmt.Errorf("after trailing-comma repair: %w", repairErr)
	}
	return values, nil
}

func decodeArray(candidate string) ([]any, error) {
	decoder := json.NewDecoder(strings.NewReader(candidate))
	decoder.UseNumber()
	value, err := decodeValue(decoder)
	if err != nil {
		return nil, err
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after array")
	}
	values, ok := value.([]any)
	if !ok {
		return nil, fmt.Errorf("expected array, got %T", value)
	}
	return values, nil
}

func decodeValue(decoder *json.Decoder) (any, error) {
	token, err := decoder.Token()
	if err != nil {
		return nil, err
	}
	delim, isDelim := token.(json.Delim)
	if !isDelim {
		return token, nil
	}
	switch delim {
	case '[':
		values := []any{}
		for decoder.More() {
			value, valueErr := decodeValue(decoder)
			if valueErr != nil {
				return nil, valueErr
			}
			values = append(values, value)
		}
		if _, closeErr := decoder.Token(); closeErr != nil {
			return nil, closeErr
		}
		return values, nil
	case '{':
		object := NewObject()
		for decoder.More() {
			keyToken, keyErr := decoder.Token()
			if keyErr != nil {
				return nil, keyErr
			}
			key, ok := keyToken.(string)
			if !ok {
				return nil, fmt.Errorf("object key %v is not a string", keyToken)
			}
			value, valueErr := decodeValue(decoder)
			if valueErr != nil {
				return nil, valueErr
			}
			object.Set(key, value)
		}
		if _, closeErr := decoder.Token(); closeErr != nil {
			return nil, closeErr
		}
		return object, nil
	}
	return nil, fmt.Errorf("unexpected delimiter %q", delim)
}

// stripTrailingCommas removes commas that are followed, after optional whitespace,
// by a closing bracket or brace. String literals are left untouched.
func stripTrailingCommas(text string) string {
	var out bytes.Buffer
	out.Grow(len(text))
	inString := false
	escaped := false
	for index := 0; index < len(text); index++ {
		ch := text[index]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			out.WriteByte(ch)
			continue
		}
		if ch == '"' {
			inString = true
		}
		if ch == ',' && closesNext(text, index+1) {
			continue
		}
		out.WriteByte(ch)
	}
	return out.String()
}

func closesNext(text string, from int) bool {
	for index := from; index < len(text); index++ {
		switch text[index] {
		case ' ', '\t', '\n', '\r':
			continue
		case ']', '}':
			return true
		default:
			return false
		}
	}
	return false
}
