package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/deusflow/joyfeed/internal/flags"
	"github.com/deusflow/joyfeed/internal/news"
	"github.com/deusflow/joyfeed/internal/storage"
)

const (
	// MinEstablishedPreferences is how many categories need real interest
	// before a user leaves cold start.
	MinEstablishedPreferences = 3
	establishedInterest       = 0.1

	coldStartWindow    = 7 * 24 * time.Hour
	coldStartMinFresh  = 0.3
	positiveMultiplier = 1.2
	rewrittenBoost     = 1.1
	seedFactor         = 0.3
)

// CategorySource lists categories; *cache.Categories satisfies it.
type CategorySource interface {
	All(ctx context.Context) ([]storage.Category, error)
}

// Recommendation is an article picked by a recommender with its strategy score in [0,1].
type Recommendation struct {
	Article  news.Article
	Score    float64
	Strategy Strategy
}

var fallbackWeights = map[int]float64{1: 0.8, 2: 0.6, 3: 0.7, 4: 0.5, 5: 0.4, 6: 0.6, 7: 0.9}

var weightLadder = []struct {
	keywords []string
	weight   float64
}{
	{[]string{"spiritual", "wellness", "health", "meditation"}, 0.9},
	{[]string{"education", "learning", "knowledge"}, 0.7},
	{[]string{"general", "positive", "good"}, 0.8},
	{[]string{"business", "technology", "innovation"}, 0.6},
	{[]string{"sports", "entertainment"}, 0.4},
}

// ColdStart serves users with too little history for personal ranking.
type ColdStart struct {
	content    storage.ContentStore
	prefs      storage.PreferenceStore
	categories CategorySource
	flags      flags.Set
	log        *slog.Logger
	now        func() time.Time
}

func NewColdStart(content storage.ContentStore, prefs storage.PreferenceStore, categories CategorySource, fl flags.Set, log *slog.Logger) *ColdStart {
	if log == nil {
		log = slog.Default()
	}
	return &ColdStart{
		content:    content,
		prefs:      prefs,
		categories: categories,
		flags:      fl,
		log:        log.With("component", "coldstart"),
		now:        time.Now,
	}
}

// IsColdStart is true when the affinity flag is off, the store fails, or
// fewer than MinEstablishedPreferences categories carry interest.
func (c *ColdStart) IsColdStart(ctx context.Context, userID int64) bool {
	if !c.flags.Enabled(flags.CategoryAffinity) {
		return true
	}
	prefs, err := c.prefs.CategoryPreferences(ctx, userID)
	if err != nil {
		c.log.Warn("failed to load preferences, treating user as new", "user", userID, "error", err)
		return true
	}
	n := 0
	for _, p := range prefs {
		if p.InterestScore > establishedInterest {
			n++
		}
	}
	return n < MinEstablishedPreferences
}

// BalancedDefaults weights every known category by its name. The fixed
// fallback map is used when no categories can be loaded.
func (c *ColdStart) BalancedDefaults(ctx context.Context) map[int]float64 {
	cats, err := c.categories.All(ctx)
	if err != nil || len(cats) == 0 {
		if err != nil {
			c.log.Warn("failed to load categories, using fallback weights", "error", err)
		}
		out := make(map[int]float64, len(fallbackWeights))
		for k, v := range fallbackWeights {
			out[k] = v
		}
		return out
	}
	out := make(map[int]float64, len(cats))
	for _, cat := range cats {
		out[cat.ID] = categoryWeight(cat.Name)
	}
	return out
}

func categoryWeight(name string) float64 {
	lower := strings.ToLower(name)
	for _, rung := range weightLadder {
		for _, k := range rung.keywords {
			if strings.Contains(lower, k) {
				return rung.weight
			}
		}
	}
	return 0.5
}

// Recommend returns up to limit recent articles weighted by the default
// category mix, spread across categories.
func (c *ColdStart) Recommend(ctx context.Context, userID int64, limit int) ([]Recommendation, error) {
	if !c.flags.Enabled(flags.CategoryAffinity) || limit <= 0 {
		return nil, nil
	}
	weights := c.BalancedDefaults(ctx)
	ids := make([]int, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	now := c.now()
	arts, err := c.content.RecentArticles(ctx, storage.ArticleQuery{
		CategoryIDs:    ids,
		Since:          now.Add(-coldStartWindow),
		Sentiments:     []news.Sentiment{news.Positive, news.Neutral},
		ExcludeBlocked: true,
		Order:          storage.OrderPositiveFirst,
		Limit:          limit * 2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load cold start articles: %w", err)
	}

	recs := make([]Recommendation, 0, len(arts))
	for _, a := range arts {
		ageDays := math.Floor(now.Sub(a.Timestamp()).Hours() / 24)
		score := weights[a.CategoryID] * math.Max(coldStartMinFresh, 1-ageDays/7)
		if a.Sentiment == news.Positive {
			score *= positiveMultiplier
		}
		if a.IsAIRewritten {
			score *= rewrittenBoost
		}
		recs = append(recs, Recommendation{Article: a, Score: math.Min(score, 1), Strategy: StrategyColdStart})
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })

	out := diversify(recs, limit)
	c.log.Debug("cold start recommendations", "user", userID, "candidates", len(recs), "selected", len(out))
	return out, nil
}

// diversify caps each category at max(2, limit/4). With fewer than limit/2
// candidates the cap is lifted and every candidate is kept. recs must be
// sorted by descending score; the result keeps that order.
func diversify(recs []Recommendation, limit int) []Recommendation {
	if len(recs) < limit/2 {
		return recs
	}
	maxPer := limit / 4
	if maxPer < 2 {
		maxPer = 2
	}

	out := make([]Recommendation, 0, limit)
	perCat := make(map[int]int)
	for _, r := range recs {
		if len(out) >= limit {
			break
		}
		if perCat[r.Article.CategoryID] < maxPer {
			perCat[r.Article.CategoryID]++
			out = append(out, r)
		}
	}
	return out
}

// InitializeUserPreferences seeds dynamic interest from the default weights.
// It reports false when the affinity feature is off.
func (c *ColdStart) InitializeUserPreferences(ctx context.Context, userID int64) (bool, error) {
	if !c.flags.Enabled(flags.CategoryAffinity) {
		return false, nil
	}
	for cat, w := range c.BalancedDefaults(ctx) {
		if err := c.prefs.SeedInterest(ctx, userID, cat, w*seedFactor); err != nil {
			return false, fmt.Errorf("failed to seed category %d: %w", cat, err)
		}
	}
	c.log.Info("initialized preferences", "user", userID)
	return true, nil
}
