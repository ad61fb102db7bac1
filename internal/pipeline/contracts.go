package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/llm-synthdata/internal/table"
)

const maximumTemperature = 2.0

type LLMRequest struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float64
	Model        string
}

type LLMResponse struct {
	RawText string
}

type LLMClient interface {
	Chat(ctx context.Context, request LLMRequest) (LLMResponse, error)
}

// PromptBuilder turns a dataset type and size into the user prompt.
type PromptBuilder interface {
	Build(datasetType string, size int) (string, error)
}

// TableSink persists an accepted table and reports where it went.
type TableSink interface {
	Write(assembled table.Table, datasetType string, size int) (string, error)
}

var ErrInvalidRequest = errors.New("invalid generation request")

type GenerationRequest struct {
	Model       string
	DatasetType string
	Size        int
	MaxAttempts int
	Temperature float64
}

func (r GenerationRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Model) == "":
		return fmt.Errorf("%w: model is required", ErrInvalidRequest)
	case strings.TrimSpace(r.DatasetType) == "":
		return fmt.Errorf("%w: dataset type is required", ErrInvalidRequest)
	case r.Size <= 0:
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidRequest, r.Size)
	case r.MaxAttempts <= 0:
		return fmt.Errorf("%w: max attempts must be positive, got %d", ErrInvalidRequest, r.MaxAttempts)
	case r.Temperature < 0 || r.Temperature > maximumTemperature:
		return fmt.Errorf("%w: temperature must be within [0, %.1f], got %v", ErrInvalidRequest, maximumTemperature, r.Temperature)
	}
	return nil
}

type FailureKind string

const (
	FailureBackend    FailureKind = "backend"
	FailureExtraction FailureKind = "extraction"
	FailureValidation FailureKind = "validation"
)

// AttemptLog records one failed attempt.
type AttemptLog struct {
	Attempt     int
	Kind        FailureKind
	Message     string
	Temperature float64
	Response    string
	Err         error
}

// Result is a successful generation. Path is empty when nothing was persisted.
type Result struct {
	Table    table.Table
	Path     string
	Attempts int
	RunID    string
}

// ErrGenerationFailed matches every GenerationError through errors.Is.
var ErrGenerationFailed = errors.New("generation failed")

// GenerationError is returned once every attempt has failed.
type GenerationError struct {
	Request  GenerationRequest
	Attempts []AttemptLog
}

func (e *GenerationError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("generation of %d %q records failed after %d attempts", e.Request.Size, e.Request.DatasetType, len(e.Attempts)))
	for _, attempt := range e.Attempts {
		sb.WriteString(fmt.Sprintf("; attempt %d %s: %s", attempt.Attempt, attempt.Kind, attempt.Message))
	}
	return sb.String()
}

func (e *GenerationError) Is(target error) bool { return target == ErrGenerationFailed }

// Unwrap exposes each attempt's cause to errors.Is and errors.As.
func (e *GenerationError) Unwrap() []error {
	causes := make([]error, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		if attempt.Err != nil {
			causes = append(causes, attempt.Err)
		}
	}
	return causes
}

// Last returns the final failed attempt.
func (e *GenerationError) Last() (AttemptLog, bool) {
	if len(e.Attempts) == 0 {
		return AttemptLog{}, false
	}
	return e.Attempts[len(e.Attempts)-1], true
}

// Report renders every attempt with its error and a response preview.
func (e *GenerationError) Report() string {
	return renderAttemptDebug(e.Attempts)
}
