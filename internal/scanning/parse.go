package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseRawExtraction decodes the JSON object embedded in a model's text response
func parseRawExtraction(text string) (RawExtraction, error) {
	text = stripCodeFence(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	endIdx := strings.LastIndex(text, "}")
	if endIdx == -1 || endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}

	dec := json.NewDecoder(strings.NewReader(text[startIdx : endIdx+1]))
	dec.UseNumber()

	var data RawExtraction
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("model returned a null object")
	}

	return data, nil
}

// stripCodeFence removes markdown code blocks the model may wrap around its answer
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// resultFromText turns a model's text response into a Result
func resultFromText(text string) Result {
	data, err := parseRawExtraction(text)
	if err != nil {
		return Failure(fmt.Sprintf("failed to parse model output: %v", err), text)
	}
	return Success(data)
}
