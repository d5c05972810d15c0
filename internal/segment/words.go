package segment

import "strings"

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// EstimateTokens gives a rough token count from the word count, for sizing
// record bodies handed to downstream consumers.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := int(float64(WordCount(text)) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
