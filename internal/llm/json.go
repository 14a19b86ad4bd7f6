package llm

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// ParseJSONResponse parses a JSON response from an LLM, handling markdown
// code blocks. Endpoints honoring response_format return bare JSON, but
// fenced output still shows up in the wild.
func ParseJSONResponse(text string) map[string]any {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	// Strip markdown code fences
	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		endIdx := len(lines) - 1
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				endIdx = i
				break
			}
		}
		text = strings.Join(lines[1:endIdx], "\n")
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		slog.Warn("failed to parse LLM response as JSON", "error", err)
		return nil
	}

	return result
}
