// Package classify runs the two-pass decision: pass 1 labels an entry
// CONSTRUCTIVE, REFRAMABLE or HARMFUL; pass 2 rewrites REFRAMABLE entries.
package classify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/deusflow/joyfeed/internal/llm"
	"github.com/deusflow/joyfeed/internal/news"
)

const (
	TitleLimit = 200
	BodyLimit  = 4000

	ReasonAnalysisFailed = "analysis failed"
	ReasonUnparseable    = "unparseable analysis"

	RewrittenScore     = 0.9
	ConstructiveScore  = 0.8
	FallbackScore      = 0.5
	analysisMaxTokens  = 200
	analysisTemp       = 0.1
	rewriteMaxTokens   = 1000
	rewriteTemperature = 0.3
)

var ErrNoRewriter = errors.New("rewriting unavailable in keyword mode")

type Options struct {
	SummaryLimit int
	// Detailed asks pass 2 for the long-form summary.
	Detailed bool
}

type Input struct {
	Title    string
	Body     string
	Category string
}

// Outcome is the terminal result for one entry.
type Outcome struct {
	Classification news.Classification
	Headline       string
	Summary        string
	Sentiment      news.Sentiment
	SentimentScore float64
	IsAIRewritten  bool
	Reason         string
}

type Classifier struct {
	gen     llm.Generator
	keyword bool
	opts    Options
	log     *slog.Logger
}

func New(gen llm.Generator, opts Options, log *slog.Logger) *Classifier {
	return &Classifier{gen: gen, opts: normalize(opts), log: logOrDefault(log)}
}

// NewKeyword builds the degraded classifier used when no AI provider is
// configured. Its verdicts come from keyword lists and do not match the
// AI prompt semantics; it never rewrites.
func NewKeyword(opts Options, log *slog.Logger) *Classifier {
	return &Classifier{keyword: true, opts: normalize(opts), log: logOrDefault(log)}
}

func (c *Classifier) Degraded() bool { return c.keyword }

// Analyze is pass 1. It never fails: service and parse errors resolve to
// REFRAMABLE so the entry still goes through a rewrite attempt.
func (c *Classifier) Analyze(ctx context.Context, in Input) Analysis {
	if c.keyword {
		cat, sent := news.ScreenKeywords(in.Title, in.Body).Verdict()
		return Analysis{Category: cat, Sentiment: sent, Reason: "keyword screen (degraded mode)"}
	}

	text, err := c.gen.Generate(ctx, llm.Request{
		Prompt:      analysisPrompt(news.Truncate(in.Title, TitleLimit), in.Category, news.Truncate(in.Body, BodyLimit)),
		MaxTokens:   analysisMaxTokens,
		Temperature: analysisTemp,
	})
	if err != nil {
		c.log.Warn("AI analysis failed", "title", news.Prefix(in.Title, 50), "error", err)
		return Analysis{Category: news.Reframable, Sentiment: news.Neutral, Reason: ReasonAnalysisFailed}
	}

	a, err := ParseAnalysis(text)
	if err != nil {
		c.log.Warn("unparseable analysis, defaulting to REFRAMABLE", "title", news.Prefix(in.Title, 50), "error", err)
		a.Category = news.Reframable
		a.Reason = ReasonUnparseable
	}
	return a
}

// Rewrite is pass 2.
func (c *Classifier) Rewrite(ctx context.Context, in Input) (Rewrite, error) {
	if c.keyword {
		return Rewrite{}, ErrNoRewriter
	}
	text, err := c.gen.Generate(ctx, llm.Request{
		Prompt: rewritePrompt(news.Truncate(in.Title, TitleLimit), news.Truncate(in.Body, BodyLimit),
			c.opts.SummaryLimit, c.opts.Detailed),
		MaxTokens:   rewriteMaxTokens,
		Temperature: rewriteTemperature,
	})
	if err != nil {
		return Rewrite{}, err
	}
	return ParseRewrite(text)
}

// Process drives one entry to a terminal state. HARMFUL outcomes carry no
// text and must be dropped by the caller.
func (c *Classifier) Process(ctx context.Context, in Input) Outcome {
	a := c.Analyze(ctx, in)
	c.log.Debug("analysis", "title", news.Prefix(in.Title, 50), "category", a.Category, "sentiment", a.Sentiment, "reason", a.Reason)

	var out Outcome
	switch a.Category {
	case news.Harmful:
		return Outcome{Classification: news.Harmful, Sentiment: a.Sentiment, Reason: a.Reason}

	case news.Constructive:
		out = c.fallback(in, a)
		if a.Sentiment == news.Positive {
			out.SentimentScore = ConstructiveScore
		}

	default:
		rw, err := c.Rewrite(ctx, in)
		if err != nil {
			c.log.Warn("rewrite failed, using original content", "title", news.Prefix(in.Title, 50), "error", err)
			out = c.fallback(in, a)
			break
		}
		out = Outcome{
			Headline:       rw.Headline,
			Summary:        rw.Summary,
			Sentiment:      news.Positive,
			SentimentScore: RewrittenScore,
			IsAIRewritten:  true,
		}
	}

	out.Classification = a.Category
	out.Reason = a.Reason
	out.Summary = news.Clamp(out.Summary, c.opts.SummaryLimit)
	return out
}

func (c *Classifier) fallback(in Input, a Analysis) Outcome {
	return Outcome{
		Headline:       in.Title,
		Summary:        news.Format(in.Body, c.opts.SummaryLimit),
		Sentiment:      a.Sentiment,
		SentimentScore: FallbackScore,
	}
}

func normalize(opts Options) Options {
	if opts.SummaryLimit < 10 {
		opts.SummaryLimit = news.DefaultSummaryLimit
	}
	return opts
}

func logOrDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
