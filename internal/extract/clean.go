package extract

import (
	"strings"
	"unicode"
)

const markdownFence = "```"

// Clean strips markdown fences and prose around the JSON array in raw model output.
// Only a fenced body holding a '[' is adopted; fences around prose are skipped.
// It never fails: text without recognizable boundaries is returned trimmed.
// Clean is idempotent.
func Clean(raw string) string {
	text := strings.TrimSpace(raw)
	if body, ok := fencedArray(text); ok {
		text = body
	}

	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// fencedArray tries every fence that opens before the first '[' and returns the
// first body that contains one. Fences after the first '[' belong to the array.
func fencedArray(text string) (string, bool) {
	arrayIndex := strings.IndexByte(text, '[')
	if arrayIndex < 0 {
		return "", false
	}
	offset := 0
	for {
		fenceIndex := strings.Index(text[offset:], markdownFence)
		if fenceIndex < 0 {
			return "", false
		}
		fenceIndex += offset
		if fenceIndex > arrayIndex {
			return "", false
		}
		body := stripFence(text[fenceIndex+len(markdownFence):])
		if strings.IndexByte(body, '[') >= 0 {
			return body, true
		}
		offset = fenceIndex + len(markdownFence)
	}
}

// stripFence receives the text following an opening fence. It drops the language
// tag and cuts at the closing fence; a missing closing fence keeps the remainder.
func stripFence(afterOpening string) string {
	body := strings.TrimLeftFunc(afterOpening, unicode.IsSpace)
	if newline := strings.IndexByte(afterOpening, '\n'); newline >= 0 && isLanguageTag(afterOpening[:newline]) {
		body = afterOpening[newline+1:]
	} else if tag := leadingTag(body); tag != "" {
		body = body[len(tag):]
	}
	if closing := strings.Index(body, markdownFence); closing >= 0 {
		body = body[:closing]
	}
	return body
}

func isLanguageTag(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == leadingTag(trimmed)
}

// leadingTag returns the run of non-space characters at the start of s that cannot
// belong to a JSON document (no brackets, braces or quotes).
func leadingTag(s string) string {
	for index, r := range s {
		if unicode.IsSpace(r) || strings.ContainsRune("[]{}\"", r) {
			return s[:index]
		}
	}
	return s
}
