package news

import "strings"

// harmfulKeywords back the optional pre-ingestion block. This is a coarse
// screen; the AI classification stays authoritative.
var harmfulKeywords = []string{
	"suicide", "murdered", "killing", "blast", "explosion", "massacre",
	"rape", "graphic violence", "corpse", "body count", "died by suicide",
}

// Lists for the degraded keyword classifier.
var (
	traumaKeywords   = []string{"murder", "suicide", "terrorist", "explosion", "bomb"}
	negativeKeywords = []string{"killed", "died", "death", "attack", "injured", "accident", "violence", "crime"}
	positiveKeywords = []string{"launch", "achievement", "success", "award", "innovation", "celebration"}
)

// IsHarmful is the keyword pre-filter applied before any AI call.
func IsHarmful(title, body string) bool {
	return containsAny(strings.ToLower(title+" "+body), harmfulKeywords)
}

// KeywordScreen counts keyword hits used when no AI provider is available.
type KeywordScreen struct {
	Trauma   int
	Negative int
	Positive int
}

func ScreenKeywords(title, body string) KeywordScreen {
	text := strings.ToLower(title + " " + body)
	return KeywordScreen{
		Trauma:   countAny(text, traumaKeywords),
		Negative: countAny(text, negativeKeywords),
		Positive: countAny(text, positiveKeywords),
	}
}

// Verdict maps the hit counts onto a classification and sentiment.
func (s KeywordScreen) Verdict() (Classification, Sentiment) {
	switch {
	case s.Trauma > 0:
		return Harmful, Negative
	case s.Negative > s.Positive:
		return Reframable, Negative
	default:
		return Constructive, Positive
	}
}
