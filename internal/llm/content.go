package llm

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

const contentPreviewLimit = 240

var textFields = []string{"text", "content", "value"}

// messageText returns the assistant text of a completion message. Content is either a
// plain string or a list of typed parts; parts are joined with newlines.
func messageText(message chatMessageResponse) (string, error) {
	if isEmptyJSON(message.Content) {
		if refusal := refusalText(message.Refusal); refusal != "" {
			return "", fmt.Errorf("chat completion refusal: %s", refusal)
		}
		return "", nil
	}

	var plain string
	if err := json.Unmarshal(message.Content, &plain); err == nil {
		return plain, nil
	}
	if text := partsText(message.Content); text != "" {
		return text, nil
	}
	if refusal := refusalText(message.Refusal); refusal != "" {
		return "", fmt.Errorf("chat completion refusal: %s", refusal)
	}
	if !isEmptyJSON(message.ToolCalls) {
		return "", fmt.Errorf("chat completion produced tool_calls: %s", truncateForLog(string(message.ToolCalls), contentPreviewLimit))
	}
	return "", fmt.Errorf("unsupported message content: %s", truncateForLog(string(message.Content), contentPreviewLimit))
}

func refusalText(raw json.RawMessage) string {
	if isEmptyJSON(raw) {
		return ""
	}
	var plain string
	if err := json.Unmarshal(raw, &plain); err == nil {
		return strings.TrimSpace(plain)
	}
	if text := partsText(raw); text != "" {
		return text
	}
	return strings.TrimSpace(truncateForLog(string(raw), contentPreviewLimit))
}

func partsText(raw json.RawMessage) string {
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return ""
	}
	var fragments []string
	collectText(decoded, &fragments)
	return strings.TrimSpace(strings.Join(fragments, "\n"))
}

// collectText walks content parts depth first. An object contributes its first
// text-like field, or every field in key order when it has none.
func collectText(value any, fragments *[]string) {
	switch typed := value.(type) {
	case string:
		if trimmed := strings.TrimSpace(typed); trimmed != "" {
			*fragments = append(*fragments, trimmed)
		}
	case []any:
		for _, item := range typed {
			collectText(item, fragments)
		}
	case map[string]any:
		for _, field := range textFields {
			if nested, ok := typed[field]; ok {
				collectText(nested, fragments)
				return
			}
		}
		for _, key := range slices.Sorted(maps.Keys(typed)) {
			collectText(typed[key], fragments)
		}
	}
}

func isEmptyJSON(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
