// Package budget provides token budget estimation and context trimming for
// answer generation. Because the generator supports multiple LLM backends
// with different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// messageOverhead is the per-message token cost most chat APIs add.
	messageOverhead = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Fits within 8k-context models while leaving room for the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for a slice of
// schema.Message values, summing role + content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		total += messageOverhead
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// FitPassages drops retrieved passages from the end (lowest ranked first)
// until fixedTokens plus the remaining passages fits within maxTokens.
// Passage order is preserved. A non-positive maxTokens disables trimming.
//
// When fixedTokens alone exceeds the budget every passage is dropped; callers
// should log that case separately.
func FitPassages(fixedTokens int, passages []string, maxTokens int) []string {
	if maxTokens <= 0 || len(passages) == 0 {
		return passages
	}

	total := fixedTokens
	for i, p := range passages {
		// +1 for the newline separator between passages.
		total += Estimate(p) + 1
		if total > maxTokens {
			return passages[:i]
		}
	}
	return passages
}
