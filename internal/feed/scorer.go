// Package feed ranks stored articles and user posts into a personalized feed.
package feed

import (
	"math"
	"sort"
	"time"
)

type Kind string

const (
	KindArticle Kind = "article"
	KindPost    Kind = "post"
)

// Strategy records which recommender put an item into the feed.
type Strategy string

const (
	StrategyDefault      Strategy = "default"
	StrategyColdStart    Strategy = "cold_start"
	StrategyExploration  Strategy = "exploration"
	StrategyExploitation Strategy = "exploitation"
)

const (
	BreakingScore = 9999

	FreshWindowHours = 6
	FreshWeight      = 2

	DayWindowHours  = 24
	DayBonusBase    = 2
	DayDecayPerHour = 0.1

	RewrittenBonus   = 4
	StaticMatchBonus = 8
	DynamicCap       = 15
	ColdStartBonus   = 2
	PostBonus        = 1

	// StrategyBoost scales the recommender score added to tagged items.
	StrategyBoost = 4
)

// Item is a feed candidate, either an article or a post.
type Item struct {
	Kind          Kind      `json:"type"`
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Author        string    `json:"author"`
	ImageURL      string    `json:"image_url,omitempty"`
	SourceURL     string    `json:"source_url,omitempty"`
	CategoryID    int       `json:"category_id"`
	PublishedAt   time.Time `json:"published_at"`
	IsAIRewritten bool      `json:"is_ai_rewritten"`
	IsBreaking    bool      `json:"is_breaking"`
	Score         float64   `json:"score"`
	Strategy      Strategy  `json:"strategy"`
	StrategyScore float64   `json:"strategy_score,omitempty"`
}

// Prefs are the user's explicit categories and the dynamic affinity per category.
type Prefs struct {
	Static  map[int]struct{}
	Dynamic map[int]float64
}

func (p Prefs) empty() bool {
	return len(p.Static) == 0 && len(p.Dynamic) == 0
}

// Score rates one item for a user. It has no side effects.
func Score(it Item, p Prefs, now time.Time) float64 {
	if it.Kind == KindArticle && it.IsBreaking {
		return BreakingScore
	}

	var score float64
	hours := 0.0
	if !it.PublishedAt.IsZero() {
		hours = math.Max(0, now.Sub(it.PublishedAt).Hours())
	}
	switch {
	case hours <= FreshWindowHours:
		score += (FreshWindowHours - hours) * FreshWeight
	case hours <= DayWindowHours:
		score += math.Max(0, DayBonusBase-(hours-FreshWindowHours)*DayDecayPerHour)
	}

	if it.Kind == KindArticle && it.IsAIRewritten {
		score += RewrittenBonus
	}
	if _, ok := p.Static[it.CategoryID]; ok {
		score += StaticMatchBonus
	}
	if dyn := p.Dynamic[it.CategoryID]; dyn > 0 {
		score += math.Min(dyn, DynamicCap)
	}
	if it.Kind == KindArticle && p.empty() {
		score += ColdStartBonus
	}
	if it.Kind == KindPost {
		score += PostBonus
	}
	return round1(score)
}

// Rank orders items by descending score, keeping input order for ties.
func Rank(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Score > items[j].Score
	})
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
