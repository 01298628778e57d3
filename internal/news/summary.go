package news

import "strings"

const (
	DefaultSummaryLimit = 3500

	formatBoundaryRatio = 0.6
	clampBoundaryRatio  = 0.7
)

// Format builds a fallback summary of at most limit runes (plus an appended
// period) that ends on a sentence boundary.
func Format(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return "."
	}

	runes := []rune(text)
	if len(runes) <= limit {
		if strings.HasSuffix(text, ".") || strings.HasSuffix(text, "!") {
			return text
		}
		return text + "."
	}

	truncated := string(runes[:limit])
	end := max(strings.LastIndex(truncated, "."), strings.LastIndex(truncated, "!"))
	if end >= 0 && float64(len([]rune(truncated[:end]))) > float64(limit)*formatBoundaryRatio {
		return strings.TrimSpace(truncated[:end+1])
	}
	return strings.TrimSpace(truncated) + "."
}

// Clamp caps an already formatted summary at limit runes, preferring the
// last period when it lies past 70% of the limit.
func Clamp(summary string, limit int) string {
	runes := []rune(summary)
	if len(runes) <= limit {
		return summary
	}
	truncated := string(runes[:limit])
	if end := strings.LastIndex(truncated, "."); end >= 0 &&
		float64(len([]rune(truncated[:end]))) > float64(limit)*clampBoundaryRatio {
		return truncated[:end+1]
	}
	return strings.TrimRight(truncated, " \t\n") + "."
}

// Truncate cuts s to n runes without adding a marker.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
