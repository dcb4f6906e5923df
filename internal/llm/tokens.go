package llm

import "strings"

// CountTokens provides a rough token count for text. It is only used for
// budgeting decisions, never for billing.
func CountTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	// ~4 characters per token, but never fewer tokens than words.
	n := (len(text) + 3) / 4
	if w := len(strings.Fields(text)); w > n {
		n = w
	}
	return n
}
