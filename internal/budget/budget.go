// Package budget estimates prompt sizes for the query assistant. Because
// docqa supports several model backends with different tokenizers, it uses a
// conservative character heuristic: 1 token ≈ 4 characters of English prose.
// Estimates are only logged; prompts are never truncated.
package budget

import (
	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the prompt size above which the assistant
	// logs a warning. Four 1000-character chunks plus the template and a
	// question sit well below it.
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
		// Each message has a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Usage is the result of checking a rendered prompt against a limit.
type Usage struct {
	// Tokens is the estimated prompt size.
	Tokens int
	// Limit is the budget the prompt was checked against.
	Limit int
}

// Over reports whether the prompt exceeds its budget.
func (u Usage) Over() bool { return u.Limit > 0 && u.Tokens > u.Limit }

// Check estimates msgs and compares the result with limit. A non-positive
// limit means DefaultMaxContextTokens.
func Check(msgs []*schema.Message, limit int) Usage {
	if limit <= 0 {
		limit = DefaultMaxContextTokens
	}
	return Usage{Tokens: EstimateMessages(msgs), Limit: limit}
}
