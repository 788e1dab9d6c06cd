package extraction

import (
	"encoding/json"
	"fmt"
	"strings"
)

// providerResponse is the JSON envelope extraction backends are asked to emit.
type providerResponse struct {
	Extractions []providerExtraction `json:"extractions"`
}

type providerExtraction struct {
	Class      string            `json:"class"`
	Text       string            `json:"text"`
	Attributes map[string]string `json:"attributes"`
	Confidence float64           `json:"confidence"`
}

// parseProviderOutput validates raw backend output and converts it into
// typed RawExtractions with window-local offsets. Spans whose text cannot
// be located in the window are dropped; an undecodable envelope is a
// malformed-output error, not a partial result.
func parseProviderOutput(content, windowText string) ([]RawExtraction, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var resp providerResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderMalformedOutput, err)
	}

	raws := make([]RawExtraction, 0, len(resp.Extractions))
	searchFrom := 0
	for _, e := range resp.Extractions {
		if e.Text == "" {
			continue
		}
		start := indexFrom(windowText, e.Text, searchFrom)
		if start < 0 {
			// Backend paraphrased instead of copying; span is unusable.
			continue
		}
		searchFrom = start + 1

		confidence := e.Confidence
		if confidence < 0 || confidence > 1 {
			confidence = 0
		}

		raws = append(raws, RawExtraction{
			Class:      ParseClauseType(e.Class),
			Text:       e.Text,
			Attributes: e.Attributes,
			Start:      start,
			End:        start + len(e.Text),
			Confidence: confidence,
		})
	}
	return raws, nil
}

// indexFrom finds needle at or after from, falling back to the first
// occurrence anywhere so out-of-order backend output still resolves.
func indexFrom(haystack, needle string, from int) int {
	if from < len(haystack) {
		if i := strings.Index(haystack[from:], needle); i >= 0 {
			return from + i
		}
	}
	return strings.Index(haystack, needle)
}
