package news

import "strings"

const MinBodyLength = 10

var boilerplatePhrases = []string{"file photo", "file image", "image of", "click here", "read more"}

// IsValid rejects bodies that are too short or carry low-value boilerplate.
func IsValid(body string) bool {
	trimmed := strings.TrimSpace(body)
	if len([]rune(trimmed)) < MinBodyLength {
		return false
	}
	lower := strings.ToLower(trimmed)
	for _, p := range boilerplatePhrases {
		if strings.Contains(lower, p) {
			return false
		}
	}
	return true
}

