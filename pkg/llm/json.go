package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var thinkTags = regexp.MustCompile(`(?s)<think>.*?</think>`)

// DecodeJSON unmarshals a model completion into target. Reasoning-model
// think tags and markdown fences are stripped first; if strict parsing
// fails, the content is run through jsonrepair before the final attempt.
// Truncated or mildly malformed completions are common enough that every
// JSON-consuming call site goes through this path.
func DecodeJSON(content string, target any) error {
	cleaned := strings.TrimSpace(thinkTags.ReplaceAllString(content, ""))
	cleaned = stripFences(cleaned)
	if cleaned == "" {
		return fmt.Errorf("llm: empty completion content")
	}

	if err := json.Unmarshal([]byte(cleaned), target); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return fmt.Errorf("llm: completion is not repairable JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return fmt.Errorf("llm: failed to decode repaired completion: %w", err)
	}
	return nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
