package news

import (
	"regexp"
	"strings"
	"time"
)

// Classification is the terminal state of the two-pass classifier.
type Classification string

const (
	Constructive Classification = "CONSTRUCTIVE"
	Reframable   Classification = "REFRAMABLE"
	Harmful      Classification = "HARMFUL"
)

// ParseClassification reports ok=false for anything outside the three known states.
func ParseClassification(s string) (Classification, bool) {
	switch c := Classification(strings.ToUpper(strings.TrimSpace(s))); c {
	case Constructive, Reframable, Harmful:
		return c, true
	}
	return "", false
}

type Sentiment string

const (
	Positive Sentiment = "POSITIVE"
	Negative Sentiment = "NEGATIVE"
	Neutral  Sentiment = "NEUTRAL"
)

func ParseSentiment(s string) (Sentiment, bool) {
	switch v := Sentiment(strings.ToUpper(strings.TrimSpace(s))); v {
	case Positive, Negative, Neutral:
		return v, true
	}
	return "", false
}

// Entry is a raw candidate yielded by a feed source.
type Entry struct {
	Title         string
	Link          string
	PublishedDate string // raw feed value, part of the fingerprint
	PublishedAt   time.Time
	Summary       string // may contain HTML
	Content       string
	ImageURL      string
}

// Article is a classified content item. It is never mutated after insertion.
type Article struct {
	ID             int64          `json:"id"`
	Fingerprint    string         `json:"fingerprint"`
	Title          string         `json:"title"`
	OriginalBody   string         `json:"original_body"`
	SourceURL      string         `json:"source_url"`
	SourceName     string         `json:"source_name"`
	ImageURL       string         `json:"image_url,omitempty"`
	CategoryID     int            `json:"category_id"`
	PublishedAt    time.Time      `json:"published_at"`
	CreatedAt      time.Time      `json:"created_at"`
	Classification Classification `json:"classification"`
	Headline       string         `json:"headline"`
	Summary        string         `json:"summary"`
	Sentiment      Sentiment      `json:"sentiment"`
	SentimentScore float64        `json:"sentiment_score"`
	IsAIRewritten  bool           `json:"is_ai_rewritten"`
	IsBreaking     bool           `json:"is_breaking"`
	Blocked        bool           `json:"blocked,omitempty"`
}

// Timestamp is the publication time, or the ingestion time for entries without one.
func (a Article) Timestamp() time.Time {
	if !a.PublishedAt.IsZero() {
		return a.PublishedAt
	}
	return a.CreatedAt
}

// DisplayTitle returns the user-facing headline.
func (a Article) DisplayTitle() string {
	if a.Headline != "" {
		return a.Headline
	}
	return a.Title
}

// Body returns the final summary, or the original body when no summary was stored.
func (a Article) Body() string {
	if a.Summary != "" {
		return a.Summary
	}
	return a.OriginalBody
}

// Prefix shortens s for log lines.
func Prefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// containsAny matches keywords as substrings; short keywords (<=3 letters)
// only match on word boundaries so "war" does not hit "software".
func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if len([]rune(k)) <= 3 {
			re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(k) + `\b`)
			if re.MatchString(text) {
				return true
			}
			continue
		}
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// countAny returns how many keywords occur in text.
func countAny(text string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if containsAny(text, []string{k}) {
			n++
		}
	}
	return n
}
