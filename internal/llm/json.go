package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CleanJSON strips markdown fences a model may wrap around JSON output.
func CleanJSON(s string) string {
	clean := strings.TrimSpace(s)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```JSON")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

// DecodeJSON unmarshals a model response into v. When the cleaned text does not
// parse, the outermost object or array inside it is tried.
func DecodeJSON(s string, v any) error {
	clean := CleanJSON(s)
	if clean == "" {
		return ErrEmptyResponse
	}
	err := json.Unmarshal([]byte(clean), v)
	if err == nil {
		return nil
	}
	start := strings.IndexAny(clean, "{[")
	if start >= 0 {
		closer := byte('}')
		if clean[start] == '[' {
			closer = ']'
		}
		if end := strings.LastIndexByte(clean, closer); end > start {
			if err2 := json.Unmarshal([]byte(clean[start:end+1]), v); err2 == nil {
				return nil
			}
		}
	}
	return fmt.Errorf("failed to parse JSON from model: %w", err)
}
