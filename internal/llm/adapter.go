package llm

import (
	"context"
	"strings"

	"github.com/temirov/llm-synthdata/internal/pipeline"
)

// Adapter adapts pipeline.LLMRequest to the chat completion client.
type Adapter struct {
	Client        Client
	DefaultModel  string
	DefaultTokens int
	// SupportsTemperature controls whether the sampling temperature is sent;
	// some models only accept the server default.
	SupportsTemperature bool
}

func (a Adapter) Chat(ctx context.Context, req pipeline.LLMRequest) (pipeline.LLMResponse, error) {
	model := req.Model
	if strings.TrimSpace(model) == "" {
		model = a.DefaultModel
	}

	cr := ChatCompletionRequest{
		Model:               model,
		Messages:            buildMessages(req),
		MaxCompletionTokens: chooseInt(req.MaxTokens, a.DefaultTokens),
	}
	if a.SupportsTemperature {
		temperature := req.Temperature
		cr.Temperature = &temperature
	}

	out, err := a.Client.CreateChatCompletion(ctx, cr)
	if err != nil {
		return pipeline.LLMResponse{}, err
	}
	return pipeline.LLMResponse{RawText: out}, nil
}

func buildMessages(req pipeline.LLMRequest) []ChatMessage {
	messages := make([]ChatMessage, 0, 2)
	if system := strings.TrimSpace(req.SystemPrompt); system != "" {
		messages = append(messages, ChatMessage{Role: "system", Content: system})
	}
	return append(messages, ChatMessage{Role: "user", Content: strings.TrimSpace(req.UserPrompt)})
}

func chooseInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
