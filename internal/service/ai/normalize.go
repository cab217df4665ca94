package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)[ \t]*\r?\n?(.*?)```")

// NormalizeJSON pulls the JSON payload out of a model reply. Precedence:
//  1. the first fenced block tagged json
//  2. the first fenced block with any tag
//  3. the outermost {...} or [...] span
//  4. the trimmed text as-is
func NormalizeJSON(raw string) string {
	text := strings.TrimSpace(raw)

	matches := fencePattern.FindAllStringSubmatch(text, -1)
	for _, m := range matches {
		if strings.EqualFold(m[1], "json") {
			return strings.TrimSpace(m[2])
		}
	}
	if len(matches) > 0 {
		return strings.TrimSpace(matches[0][2])
	}

	if span, ok := outermostSpan(text); ok {
		return span
	}
	return text
}

// outermostSpan 截取第一个左括号到与之同类的最后一个右括号。
func outermostSpan(text string) (string, bool) {
	obj := strings.Index(text, "{")
	arr := strings.Index(text, "[")

	start, closer := obj, "}"
	if obj < 0 || (arr >= 0 && arr < obj) {
		start, closer = arr, "]"
	}
	if start < 0 {
		return "", false
	}
	end := strings.LastIndex(text, closer)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// DecodeJSON normalizes raw and decodes it into out.
func DecodeJSON(raw string, out any) error {
	payload := NormalizeJSON(raw)
	if payload == "" {
		return fmt.Errorf("%w: empty response", ErrGenerationMalformed)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("%w: %v", ErrGenerationMalformed, err)
	}
	return nil
}
