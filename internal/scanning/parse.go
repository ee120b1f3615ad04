package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// recognitionResult is the JSON document LLM providers return
type recognitionResult struct {
	Regions []struct {
		Candidates []string `json:"candidates"`
	} `json:"regions"`
}

// parseRecognitionJSON extracts the top candidate of every region from an
// LLM response and joins them with newlines
func parseRecognitionJSON(text string) (string, error) {
	// Remove markdown code blocks if present
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Find the JSON object boundaries - look for first { and last }
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return "", fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return "", fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var result recognitionResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return "", fmt.Errorf("unmarshaling json: %w", err)
	}

	lines := make([]string, 0, len(result.Regions))
	for _, region := range result.Regions {
		if len(region.Candidates) == 0 {
			continue
		}
		lines = append(lines, region.Candidates[0])
	}
	return strings.Join(lines, "\n"), nil
}
