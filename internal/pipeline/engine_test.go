package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/temirov/llm-synthdata/internal/config"
	"github.com/temirov/llm-synthdata/internal/extract"
	"github.com/temirov/llm-synthdata/internal/fsops"
	"github.com/temirov/llm-synthdata/internal/metrics"
	"github.com/temirov/llm-synthdata/internal/pipeline"
	"github.com/temirov/llm-synthdata/internal/prompts"
	"github.com/temirov/llm-synthdata/internal/records"
	"github.com/temirov/llm-synthdata/internal/table"
)

const twoRecords = "Here you go:\n```json\n[{\"a\":1},{\"a\":2}]\n```\nEnjoy!"

type reply struct {
	text string
	err  error
}

type fakeClient struct {
	replies  []reply
	requests []pipeline.LLMRequest
	onChat   func(ctx context.Context) error
}

func (f *fakeClient) Chat(ctx context.Context, req pipeline.LLMRequest) (pipeline.LLMResponse, error) {
	f.requests = append(f.requests, req)
	if f.onChat != nil {
		if err := f.onChat(ctx); err != nil {
			return pipeline.LLMResponse{}, err
		}
	}
	if len(f.requests) > len(f.replies) {
		return pipeline.LLMResponse{}, errors.New("no more responses")
	}
	r := f.replies[len(f.requests)-1]
	return pipeline.LLMResponse{RawText: r.text}, r.err
}

type failingSink struct{}

func (failingSink) Write(table.Table, string, int) (string, error) {
	return "", errors.New("disk full")
}

func newGenerator(client pipeline.LLMClient) pipeline.Generator {
	return pipeline.Generator{
		Client:  client,
		Prompts: prompts.NewBuilder([]config.Dataset{{Name: "Customer Records", Template: "Generate ${size} customer records as a JSON array."}}),
		Options: pipeline.Options{TemperatureStep: 0.1, MaxTokens: 512, SystemPrompt: "You generate data."},
	}
}

func request(size, attempts int) pipeline.GenerationRequest {
	return pipeline.GenerationRequest{
		Model:       "openai/gpt-4o-mini",
		DatasetType: "Customer Records",
		Size:        size,
		MaxAttempts: attempts,
		Temperature: 0.4,
	}
}

func TestGenerator_AcceptsFencedResponse(t *testing.T) {
	client := &fakeClient{replies: []reply{{text: twoRecords}}}
	result, err := newGenerator(client).Generate(context.Background(), request(2, 3))
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, result.Table.Columns)
	assert.Equal(t, 2, result.Table.Len())
	assert.Equal(t, 1, result.Attempts)
	assert.Empty(t, result.Path)
	assert.NotEmpty(t, result.RunID)

	require.Len(t, client.requests, 1)
	sent := client.requests[0]
	assert.Equal(t, "Generate 2 customer records as a JSON array.", sent.UserPrompt)
	assert.Equal(t, "You generate data.", sent.SystemPrompt)
	assert.Equal(t, 512, sent.MaxTokens)
	assert.Equal(t, "openai/gpt-4o-mini", sent.Model)
}

func TestGenerator_StopsOnFirstSuccess(t *testing.T) {
	client := &fakeClient{replies: []reply{{text: `[{"a":1}]`}, {text: `[{"a":2}]`}}}
	_, err := newGenerator(client).Generate(context.Background(), request(1, 3))
	require.NoError(t, err)
	assert.Len(t, client.requests, 1)
}

func TestGenerator_RefineAfterUnusableResponse(t *testing.T) {
	client := &fakeClient{replies: []reply{{text: "Sorry, I cannot help with that."}, {text: twoRecords}}}
	result, err := newGenerator(client).Generate(context.Background(), request(2, 3))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)

	require.Len(t, client.requests, 2)
	assert.NotContains(t, client.requests[0].UserPrompt, "REFINE:")
	assert.Contains(t, client.requests[1].UserPrompt, "REFINE:\nThe previous reply contained no JSON array.")
	assert.InDelta(t, 0.4, client.requests[0].Temperature, 1e-9)
	assert.InDelta(t, 0.5, client.requests[1].Temperature, 1e-9)
}

func TestGenerator_ExhaustsAttempts(t *testing.T) {
	client := &fakeClient{replies: []reply{
		{text: "Sorry, I cannot help with that."},
		{text: "Sorry, I cannot help with that."},
		{text: "Sorry, I cannot help with that."},
	}}
	_, err := newGenerator(client).Generate(context.Background(), request(2, 3))
	require.Error(t, err)
	assert.Len(t, client.requests, 3)
	assert.True(t, errors.Is(err, pipeline.ErrGenerationFailed))
	assert.True(t, errors.Is(err, extract.ErrNoArrayFound))

	var generationErr *pipeline.GenerationError
	require.ErrorAs(t, err, &generationErr)
	require.Len(t, generationErr.Attempts, 3)
	for index, attempt := range generationErr.Attempts {
		assert.Equal(t, index+1, attempt.Attempt)
		assert.Equal(t, pipeline.FailureExtraction, attempt.Kind)
	}
	last, ok := generationErr.Last()
	require.True(t, ok)
	assert.Equal(t, "Sorry, I cannot help with that.", last.Response)
	assert.Contains(t, generationErr.Report(), "Attempt 3:")
}

func TestGenerator_UnknownDatasetTypeMakesNoCalls(t *testing.T) {
	client := &fakeClient{replies: []reply{{text: twoRecords}}}
	req := request(5, 3)
	req.DatasetType = "Unknown Type"

	_, err := newGenerator(client).Generate(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, prompts.ErrUnknownDatasetType))
	assert.False(t, errors.Is(err, pipeline.ErrGenerationFailed))
	assert.Empty(t, client.requests)
}

func TestGenerator_InvalidRequestMakesNoCalls(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*pipeline.GenerationRequest)
	}{
		{name: "zero size", mutate: func(r *pipeline.GenerationRequest) { r.Size = 0 }},
		{name: "zero attempts", mutate: func(r *pipeline.GenerationRequest) { r.MaxAttempts = 0 }},
		{name: "temperature too high", mutate: func(r *pipeline.GenerationRequest) { r.Temperature = 2.5 }},
		{name: "negative temperature", mutate: func(r *pipeline.GenerationRequest) { r.Temperature = -0.1 }},
		{name: "blank model", mutate: func(r *pipeline.GenerationRequest) { r.Model = " " }},
		{name: "blank dataset", mutate: func(r *pipeline.GenerationRequest) { r.DatasetType = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{}
			req := request(2, 3)
			tt.mutate(&req)
			_, err := newGenerator(client).Generate(context.Background(), req)
			assert.True(t, errors.Is(err, pipeline.ErrInvalidRequest))
			assert.Empty(t, client.requests)
		})
	}
}

func TestGenerator_BackendErrorKeepsRequest(t *testing.T) {
	client := &fakeClient{replies: []reply{{err: errors.New("502 bad gateway")}, {text: twoRecords}}}
	result, err := newGenerator(client).Generate(context.Background(), request(2, 3))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)
	require.Len(t, client.requests, 2)
	assert.Equal(t, client.requests[0], client.requests[1])
}

func TestGenerator_AttemptTimeoutIsRetried(t *testing.T) {
	client := &fakeClient{replies: []reply{{}, {text: twoRecords}}}
	client.onChat = func(ctx context.Context) error {
		if len(client.requests) == 1 {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}
	generator := newGenerator(client)
	generator.Options.Timeout = 20 * time.Millisecond

	result, err := generator.Generate(context.Background(), request(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)
}

func TestGenerator_ValidationFailureIsRetried(t *testing.T) {
	client := &fakeClient{replies: []reply{{text: `[{"a":{"nested":true}}]`}, {text: `[{"a":1}]`}}}
	result, err := newGenerator(client).Generate(context.Background(), request(1, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)
	assert.Contains(t, client.requests[1].UserPrompt, "flat JSON objects")
}

func TestGenerator_ExactCountPolicy(t *testing.T) {
	client := &fakeClient{replies: []reply{{text: `[{"a":1}]`}, {text: `[{"a":1}]`}}}
	generator := newGenerator(client)
	generator.Validator = records.Validator{Policy: records.CountPolicyExact}

	_, err := generator.Generate(context.Background(), request(2, 2))
	assert.True(t, errors.Is(err, records.ErrInvalidRecords))
	assert.Len(t, client.requests, 2)
}

func TestGenerator_TemperatureIsClamped(t *testing.T) {
	client := &fakeClient{replies: []reply{{text: "[{'a':1}]"}, {text: "[{'a':1}]"}, {text: "[{'a':1}]"}}}
	req := request(1, 3)
	req.Temperature = 1.95

	_, err := newGenerator(client).Generate(context.Background(), req)
	assert.True(t, errors.Is(err, extract.ErrMalformedJSON))
	require.Len(t, client.requests, 3)
	assert.InDelta(t, 1.95, client.requests[0].Temperature, 1e-9)
	assert.InDelta(t, 2.0, client.requests[1].Temperature, 1e-9)
	assert.InDelta(t, 2.0, client.requests[2].Temperature, 1e-9)
}

func TestGenerator_CancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &fakeClient{replies: []reply{{}, {text: twoRecords}}}
	client.onChat = func(context.Context) error {
		cancel()
		return context.Canceled
	}

	_, err := newGenerator(client).Generate(ctx, request(2, 3))
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, client.requests, 1)
}

func TestGenerator_BackoffBetweenAttempts(t *testing.T) {
	client := &fakeClient{replies: []reply{{err: errors.New("timeout")}, {text: twoRecords}}}
	generator := newGenerator(client)
	generator.Options.Backoff = pipeline.BackoffOptions{Initial: time.Millisecond, Max: 5 * time.Millisecond, Multiplier: 2}

	_, err := generator.Generate(context.Background(), request(2, 2))
	require.NoError(t, err)
	assert.Len(t, client.requests, 2)
}

func TestGenerator_PersistsTable(t *testing.T) {
	mem := fsops.NewMem()
	client := &fakeClient{replies: []reply{{text: twoRecords}}}
	generator := newGenerator(client)
	generator.Sink = table.NewWriter(mem, "/out")
	generator.Metrics = metrics.NewCollector("")

	result, err := generator.Generate(context.Background(), request(2, 1))
	require.NoError(t, err)
	assert.Equal(t, "/out/synthetic_customer_records_2.csv", result.Path)

	content, err := mem.ReadFile(result.Path)
	require.NoError(t, err)
	assert.Equal(t, "a\n1\n2\n", string(content))
}

func TestGenerator_PersistFailureIsTerminal(t *testing.T) {
	client := &fakeClient{replies: []reply{{text: twoRecords}, {text: twoRecords}}}
	generator := newGenerator(client)
	generator.Sink = failingSink{}

	_, err := generator.Generate(context.Background(), request(2, 3))
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "persist table: "))
	assert.False(t, errors.Is(err, pipeline.ErrGenerationFailed))
	assert.Len(t, client.requests, 1)
}

func TestProperty_CallsNeverExceedMaxAttempts(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxAttempts := rapid.IntRange(1, 6).Draw(rt, "maxAttempts")
		replies := rapid.SliceOfN(rapid.SampledFrom([]reply{
			{text: "no data"},
			{text: "[{\"a\":1},"},
			{text: "[1, 2]"},
			{err: errors.New("connection reset")},
			{text: `[{"a":1}]`},
		}), 0, 8).Draw(rt, "replies")

		client := &fakeClient{replies: replies}
		result, err := newGenerator(client).Generate(context.Background(), request(1, maxAttempts))

		if len(client.requests) > maxAttempts {
			rt.Fatalf("made %d calls with max attempts %d", len(client.requests), maxAttempts)
		}
		if err == nil {
			if result.Attempts != len(client.requests) {
				rt.Fatalf("result reports %d attempts, client saw %d", result.Attempts, len(client.requests))
			}
			return
		}
		var generationErr *pipeline.GenerationError
		if !errors.As(err, &generationErr) || len(generationErr.Attempts) != maxAttempts {
			rt.Fatalf("expected %d logged attempts, got %v", maxAttempts, err)
		}
	})
}
