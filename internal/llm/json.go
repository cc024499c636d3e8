package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// CleanJSONResponse strips markdown code fences and trims the response down
// to the outermost JSON object.
func CleanJSONResponse(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")

	if start >= 0 && end > start {
		response = response[start : end+1]
	}

	return strings.TrimSpace(response)
}

// Structured requests typed data matching the given JSON schema. Direct
// parsing is tried first; if the model wrapped the object in prose or fences,
// the substring between the first '{' and last '}' is retried. A second
// failure surfaces as ErrInvalidResponse so callers can re-prompt.
func Structured[T any](ctx context.Context, g Generator, prompt, system, schema string) (T, error) {
	var result T

	response, err := g.GenerateJSON(ctx, prompt, system, schema)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(strings.TrimSpace(response)), &result); err == nil {
		return result, nil
	}

	cleaned := CleanJSONResponse(response)
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return result, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return result, nil
}
