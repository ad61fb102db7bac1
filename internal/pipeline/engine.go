package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/llm-synthdata/internal/extract"
	"github.com/temirov/llm-synthdata/internal/metrics"
	"github.com/temirov/llm-synthdata/internal/records"
	"github.com/temirov/llm-synthdata/internal/table"
)

const responsePreviewLength = 280

type BackoffOptions struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

type Options struct {
	// Timeout bounds each backend call; zero leaves only the caller's deadline.
	Timeout         time.Duration
	TemperatureStep float64
	SystemPrompt    string
	MaxTokens       int
	Backoff         BackoffOptions
}

// Generator drives prompt, backend call, extraction and validation until a
// record set is accepted or the attempt budget runs out. It keeps no state
// between calls.
type Generator struct {
	Client    LLMClient
	Prompts   PromptBuilder
	Validator records.Validator
	// Sink is optional; a nil Sink skips persistence.
	Sink    TableSink
	Options Options
	Logger  *zap.Logger
	Metrics *metrics.Collector
}

func (g Generator) Generate(ctx context.Context, request GenerationRequest) (Result, error) {
	if err := request.Validate(); err != nil {
		g.Metrics.ObserveGeneration(metrics.GenerationRejected, 0)
		return Result{}, err
	}
	userPrompt, promptErr := g.Prompts.Build(request.DatasetType, request.Size)
	if promptErr != nil {
		g.Metrics.ObserveGeneration(metrics.GenerationRejected, 0)
		return Result{}, fmt.Errorf("prompt: %w", promptErr)
	}

	runID := uuid.NewString()
	logger := g.logger().With(
		zap.String("run_id", runID),
		zap.String("model", request.Model),
		zap.String("dataset", request.DatasetType),
		zap.Int("size", request.Size),
	)
	validator := g.Validator
	validator.Logger = logger

	delays := g.newBackOff()
	var (
		attemptLogs   []AttemptLog
		pendingRefine string
		temperature   = request.Temperature
	)
	for attempt := 1; attempt <= request.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, delays.NextBackOff()); err != nil {
				g.Metrics.ObserveGeneration(metrics.GenerationCanceled, 0)
				return Result{}, fmt.Errorf("generation canceled after %d attempts: %w", len(attemptLogs), err)
			}
		}
		llmRequest := LLMRequest{
			SystemPrompt: g.Options.SystemPrompt,
			UserPrompt:   userPrompt,
			MaxTokens:    g.Options.MaxTokens,
			Temperature:  temperature,
			Model:        request.Model,
		}
		if pendingRefine != "" {
			llmRequest.UserPrompt = appendRefine(llmRequest.UserPrompt, pendingRefine)
		}

		dataset, failure := g.attempt(ctx, validator, llmRequest, request.Size)
		if failure == nil {
			g.Metrics.ObserveAttempt(metrics.AttemptSucceeded)
			logger.Info("record set accepted", zap.Int("attempt", attempt), zap.Int("records", dataset.Len()))
			return g.finish(request, dataset, attempt, runID)
		}

		failure.Attempt = attempt
		failure.Temperature = temperature
		attemptLogs = append(attemptLogs, *failure)
		g.Metrics.ObserveAttempt(attemptOutcome(failure.Kind))
		logger.Warn("attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", request.MaxAttempts),
			zap.String("kind", string(failure.Kind)),
			zap.Float64("temperature", temperature),
			zap.Error(failure.Err),
		)

		if ctx.Err() != nil {
			g.Metrics.ObserveGeneration(metrics.GenerationCanceled, 0)
			return Result{}, fmt.Errorf("generation canceled after %d attempts: %w", len(attemptLogs), ctx.Err())
		}
		if failure.Kind != FailureBackend {
			temperature = widenTemperature(temperature, g.Options.TemperatureStep)
			pendingRefine = formatRefine(refineHint(*failure, request.Size))
		}
	}

	g.Metrics.ObserveGeneration(metrics.GenerationExhausted, 0)
	generationErr := &GenerationError{Request: request, Attempts: attemptLogs}
	logger.Error("attempts exhausted", zap.Int("attempts", len(attemptLogs)))
	logger.Debug("attempt history", zap.String("history", generationErr.Report()))
	return Result{}, generationErr
}

func (g Generator) attempt(ctx context.Context, validator records.Validator, request LLMRequest, size int) (records.Dataset, *AttemptLog) {
	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if g.Options.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, g.Options.Timeout)
	}
	started := time.Now()
	response, chatErr := g.Client.Chat(attemptCtx, request)
	cancel()
	g.Metrics.ObserveBackendCall(request.Model, time.Since(started))
	if chatErr != nil {
		return records.Dataset{}, &AttemptLog{Kind: FailureBackend, Message: chatErr.Error(), Err: chatErr}
	}

	values, extractErr := extract.Extract(extract.Clean(response.RawText))
	if extractErr != nil {
		return records.Dataset{}, &AttemptLog{Kind: FailureExtraction, Message: extractErr.Error(), Response: response.RawText, Err: extractErr}
	}
	dataset, validateErr := validator.Validate(values, size)
	if validateErr != nil {
		return records.Dataset{}, &AttemptLog{Kind: FailureValidation, Message: validateErr.Error(), Response: response.RawText, Err: validateErr}
	}
	return dataset, nil
}

func (g Generator) finish(request GenerationRequest, dataset records.Dataset, attempts int, runID string) (Result, error) {
	assembled := table.Assemble(dataset)
	result := Result{Table: assembled, Attempts: attempts, RunID: runID}
	if g.Sink != nil {
		path, err := g.Sink.Write(assembled, request.DatasetType, request.Size)
		if err != nil {
			g.Metrics.ObserveGeneration(metrics.GenerationPersist, assembled.Len())
			return Result{}, fmt.Errorf("persist table: %w", err)
		}
		result.Path = path
	}
	g.Metrics.ObserveGeneration(metrics.GenerationSucceeded, assembled.Len())
	return result, nil
}

func (g Generator) newBackOff() backoff.BackOff {
	if g.Options.Backoff.Initial <= 0 {
		return &backoff.ZeroBackOff{}
	}
	exponential := backoff.NewExponentialBackOff()
	exponential.InitialInterval = g.Options.Backoff.Initial
	if g.Options.Backoff.Max > 0 {
		exponential.MaxInterval = g.Options.Backoff.Max
	}
	if g.Options.Backoff.Multiplier > 0 {
		exponential.Multiplier = g.Options.Backoff.Multiplier
	}
	exponential.Reset()
	return exponential
}

func (g Generator) logger() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func widenTemperature(current, step float64) float64 {
	if step <= 0 {
		return current
	}
	return math.Min(maximumTemperature, current+step)
}

func attemptOutcome(kind FailureKind) string {
	switch kind {
	case FailureExtraction:
		return metrics.AttemptExtraction
	case FailureValidation:
		return metrics.AttemptValidation
	}
	return metrics.AttemptBackend
}

func refineHint(failure AttemptLog, size int) string {
	switch {
	case errors.Is(failure.Err, extract.ErrNoArrayFound):
		return fmt.Sprintf("The previous reply contained no JSON array. Reply with only a JSON array of %d objects and no other text.", size)
	case errors.Is(failure.Err, extract.ErrMalformedJSON):
		return "The previous reply was not valid JSON. Use double-quoted keys and strings, no trailing commas, no comments, and close every bracket."
	case errors.Is(failure.Err, records.ErrInvalidRecords):
		return fmt.Sprintf("The previous reply was rejected (%s). Return exactly %d flat JSON objects whose values are strings, numbers, booleans or null.", failure.Message, size)
	}
	return failure.Message
}

func renderAttemptDebug(attempts []AttemptLog) string {
	var sb strings.Builder
	for _, attempt := range attempts {
		sb.WriteString(fmt.Sprintf("Attempt %d:\n", attempt.Attempt))
		sb.WriteString(fmt.Sprintf("  Kind: %s Temp: %.2f\n", attempt.Kind, attempt.Temperature))
		sb.WriteString("  Error:\n")
		sb.WriteString(indentBlock(attempt.Message))
		sb.WriteString("\n  Response:\n")
		sb.WriteString(indentBlock(truncate(attempt.Response, responsePreviewLength)))
		sb.WriteString("\n\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func indentBlock(block string) string {
	if block == "" {
		return "    <empty>"
	}
	lines := strings.Split(block, "\n")
	for idx, line := range lines {
		lines[idx] = "    " + line
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}

func appendRefine(original, refine string) string {
	trimmedOriginal := strings.TrimRight(original, "\n")
	if trimmedOriginal == "" {
		return refine
	}
	return trimmedOriginal + "\n\n" + refine
}

func formatRefine(delta string) string {
	trimmed := strings.TrimSpace(delta)
	if trimmed == "" {
		return "REFINE:\n<empty>"
	}
	return "REFINE:\n" + trimmed
}
