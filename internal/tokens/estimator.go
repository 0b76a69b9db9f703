// Package tokens provides the token-estimation collaborator consumed by the
// registry for budget reports. The registry treats estimation as a black box;
// this package ships the default character-and-word heuristic implementation.
package tokens

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Estimator is the collaborator contract for token estimation. Implementations
// must be pure (same input → same output) so budget reports are reproducible,
// and should be monotonic under concatenation.
type Estimator interface {
	// Estimate returns the estimated token count for any value.
	Estimate(value any) int

	// EstimateFields returns a per-field token breakdown for a map. Each
	// field's count includes the key itself.
	EstimateFields(data map[string]any) map[string]int
}

// Heuristic is a character-and-word based Estimator. It improves on a naive
// len/4 by accounting for word boundaries and punctuation, which dominate
// tokenizer behavior for both natural language and code.
type Heuristic struct{}

// NewHeuristic returns the default estimator.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Estimate returns the estimated token count for a value. Non-string values
// are rendered as compact JSON before counting, falling back to fmt for
// values JSON cannot encode.
func (h *Heuristic) Estimate(value any) int {
	return estimateText(render(value))
}

// EstimateFields returns a per-field breakdown for a map. The key's own
// tokens are included in each field's count.
func (h *Heuristic) EstimateFields(data map[string]any) map[string]int {
	breakdown := make(map[string]int, len(data))
	for key, value := range data {
		breakdown[key] = h.Estimate(key) + h.Estimate(value)
	}
	return breakdown
}

// render converts a value to the text representation used for counting.
func render(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// estimateText applies the calibrated formula:
//   - each word is roughly 1.3 tokens
//   - punctuation adds ~0.5 tokens each
//   - dense text without separators falls back to ~4 chars per token
//
// The maximum of the word-based and character-based estimates handles both
// prose and code reasonably.
func estimateText(text string) int {
	if text == "" {
		return 0
	}

	wordCount := len(strings.Fields(text))

	punctCount := 0
	for _, r := range text {
		if strings.ContainsRune(".,;:!?()[]{}", r) {
			punctCount++
		}
	}

	charBased := float64(len(text)) / 4.0
	wordBased := float64(wordCount)*1.3 + float64(punctCount)*0.5

	if charBased > wordBased {
		return int(charBased)
	}
	return int(wordBased)
}
