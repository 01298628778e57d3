package classify

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/deusflow/joyfeed/internal/news"
)

// Analysis is the parsed pass-1 verdict.
type Analysis struct {
	Category  news.Classification
	Sentiment news.Sentiment
	Reason    string
}

// Rewrite is the parsed pass-2 output.
type Rewrite struct {
	Headline string
	Summary  string
}

// ParseError reports why a labeled response could not be used.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Field, e.Reason)
}

const defaultReason = "no analysis provided"

var labels = map[string]*regexp.Regexp{}

func init() {
	for _, k := range []string{"CATEGORY", "SENTIMENT", "REASON", "HEADLINE", "SUMMARY"} {
		labels[k] = regexp.MustCompile(`(?im)^` + k + `:[ \t]*(.+)$`)
	}
}

func label(text, key string) (string, bool) {
	m := labels[key].FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	v := strings.TrimSpace(m[1])
	return v, v != ""
}

// ParseAnalysis reads the CATEGORY, SENTIMENT and REASON lines. Extra lines
// are ignored and keys are case-insensitive. A missing or unknown category is
// a *ParseError; the returned Analysis still carries the sentiment and reason
// so callers can build their fallback from it.
func ParseAnalysis(text string) (Analysis, error) {
	a := Analysis{Sentiment: news.Neutral, Reason: defaultReason}

	if v, ok := label(text, "SENTIMENT"); ok {
		if s, ok := news.ParseSentiment(v); ok {
			a.Sentiment = s
		}
	}
	if v, ok := label(text, "REASON"); ok {
		a.Reason = v
	}

	v, ok := label(text, "CATEGORY")
	if !ok {
		return a, &ParseError{Field: "CATEGORY", Reason: "missing"}
	}
	c, ok := news.ParseClassification(v)
	if !ok {
		return a, &ParseError{Field: "CATEGORY", Reason: fmt.Sprintf("unknown value %q", v)}
	}
	a.Category = c
	return a, nil
}

// ParseRewrite requires both HEADLINE and SUMMARY to be present and non-empty.
func ParseRewrite(text string) (Rewrite, error) {
	h, ok := label(text, "HEADLINE")
	if !ok {
		return Rewrite{}, &ParseError{Field: "HEADLINE", Reason: "missing or empty"}
	}
	s, ok := label(text, "SUMMARY")
	if !ok {
		return Rewrite{}, &ParseError{Field: "SUMMARY", Reason: "missing or empty"}
	}
	return Rewrite{Headline: h, Summary: s}, nil
}
