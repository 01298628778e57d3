package feed

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/deusflow/joyfeed/internal/flags"
	"github.com/deusflow/joyfeed/internal/news"
	"github.com/deusflow/joyfeed/internal/storage"
)

const (
	DefaultExplorationRate = 0.2
	MaxExplorationRate     = 0.4
	MinExplorationRate     = 0.1

	exploreInterestCeiling = 0.3
	exploitInterestFloor   = 0.3
	exploitTopCategories   = 5
	randomExploreCount     = 3
	explorationScore       = 0.8

	exploreWindow = 14 * 24 * time.Hour
	exploitWindow = 7 * 24 * time.Hour

	exploitPositiveBoost  = 1.1
	exploitRewrittenBoost = 1.05

	outcomeThreshold = 0.7
	outcomeWeight    = 0.2
	outcomeStep      = 0.1
)

// Blender mixes articles from categories the user already likes with
// articles from categories they have not engaged with yet.
type Blender struct {
	content    storage.ContentStore
	prefs      storage.PreferenceStore
	categories CategorySource
	flags      flags.Set
	log        *slog.Logger
	now        func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewBlender uses rng for shuffling and random category picks; nil seeds one from the clock.
func NewBlender(content storage.ContentStore, prefs storage.PreferenceStore, categories CategorySource, fl flags.Set, rng *rand.Rand, log *slog.Logger) *Blender {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = slog.Default()
	}
	return &Blender{
		content:    content,
		prefs:      prefs,
		categories: categories,
		flags:      fl,
		log:        log.With("component", "exploration"),
		now:        time.Now,
		rng:        rng,
	}
}

// ExplorationRate shrinks as the user's history gets broader, longer and
// more confident. A new user gets MaxExplorationRate.
func (b *Blender) ExplorationRate(ctx context.Context, userID int64) float64 {
	prefs, err := b.prefs.CategoryPreferences(ctx, userID)
	if err != nil {
		b.log.Warn("failed to load preferences for exploration rate", "user", userID, "error", err)
		return DefaultExplorationRate
	}

	var (
		n        int
		total    int
		interest float64
	)
	for _, p := range prefs {
		if p.InterestScore <= establishedInterest {
			continue
		}
		n++
		total += p.InteractionCount
		interest += p.InterestScore
	}
	if total == 0 {
		return MaxExplorationRate
	}

	diversity := clamp(float64(n)/5, 0.1, 1)
	maturity := clamp(float64(total)/50, 0.1, 1)
	avg := clamp(interest/float64(n), 0.1, 1)

	rate := DefaultExplorationRate * (2 - diversity) * (2 - maturity) * (2 - avg)
	return clamp(rate, MinExplorationRate, MaxExplorationRate)
}

// Blend returns up to limit recommendations split by the exploration rate,
// shuffled so the strategies interleave.
func (b *Blender) Blend(ctx context.Context, userID int64, limit int) ([]Recommendation, error) {
	if !b.flags.Enabled(flags.Exploration) || limit <= 0 {
		return nil, nil
	}

	rate := b.ExplorationRate(ctx, userID)
	explore := int(float64(limit) * rate)
	exploit := limit - explore

	prefs, err := b.prefs.CategoryPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	var out []Recommendation
	if explore > 0 {
		recs, err := b.explorationCandidates(ctx, prefs, explore*2)
		if err != nil {
			return nil, err
		}
		out = append(out, head(recs, explore)...)
	}
	if exploit > 0 {
		recs, err := b.exploitationCandidates(ctx, prefs, exploit*2)
		if err != nil {
			return nil, err
		}
		out = append(out, head(recs, exploit)...)
	}

	b.mu.Lock()
	b.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	b.mu.Unlock()

	b.log.Debug("blended recommendations", "user", userID, "rate", rate, "explore", explore, "exploit", exploit, "returned", len(out))
	return out, nil
}

func (b *Blender) explorationCandidates(ctx context.Context, prefs []storage.CategoryPreference, n int) ([]Recommendation, error) {
	cats, err := b.categories.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	interest := make(map[int]float64, len(prefs))
	for _, p := range prefs {
		interest[p.CategoryID] = p.InterestScore
	}

	var ids []int
	for _, c := range cats {
		if interest[c.ID] < exploreInterestCeiling {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		ids = b.randomCategories(cats, randomExploreCount)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	arts, err := b.content.RecentArticles(ctx, storage.ArticleQuery{
		CategoryIDs:    ids,
		Since:          b.now().Add(-exploreWindow),
		Sentiments:     []news.Sentiment{news.Positive, news.Neutral},
		ExcludeBlocked: true,
		Order:          storage.OrderPositiveFirst,
		Limit:          n,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load exploration articles: %w", err)
	}
	recs := make([]Recommendation, 0, len(arts))
	for _, a := range arts {
		recs = append(recs, Recommendation{Article: a, Score: explorationScore, Strategy: StrategyExploration})
	}
	return recs, nil
}

func (b *Blender) exploitationCandidates(ctx context.Context, prefs []storage.CategoryPreference, n int) ([]Recommendation, error) {
	top := make([]storage.CategoryPreference, 0, exploitTopCategories)
	for _, p := range prefs {
		if p.InterestScore > exploitInterestFloor {
			top = append(top, p)
		}
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].InterestScore > top[j].InterestScore })
	top = head(top, exploitTopCategories)
	if len(top) == 0 {
		return nil, nil
	}

	interest := make(map[int]float64, len(top))
	ids := make([]int, 0, len(top))
	for _, p := range top {
		interest[p.CategoryID] = p.InterestScore
		ids = append(ids, p.CategoryID)
	}

	arts, err := b.content.RecentArticles(ctx, storage.ArticleQuery{
		CategoryIDs:    ids,
		Since:          b.now().Add(-exploitWindow),
		ExcludeBlocked: true,
		Order:          storage.OrderRecent,
		Limit:          n,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load exploitation articles: %w", err)
	}
	recs := make([]Recommendation, 0, len(arts))
	for _, a := range arts {
		score := interest[a.CategoryID]
		if a.Sentiment == news.Positive {
			score *= exploitPositiveBoost
		}
		if a.IsAIRewritten {
			score *= exploitRewrittenBoost
		}
		recs = append(recs, Recommendation{Article: a, Score: math.Min(score, 1), Strategy: StrategyExploitation})
	}
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Score > recs[j].Score })
	return recs, nil
}

func (b *Blender) randomCategories(cats []storage.Category, n int) []int {
	b.mu.Lock()
	perm := b.rng.Perm(len(cats))
	b.mu.Unlock()
	ids := make([]int, 0, n)
	for _, i := range perm {
		if len(ids) == n {
			break
		}
		ids = append(ids, cats[i].ID)
	}
	return ids
}

// TrackOutcome turns a well-received exploration item into interest in its category.
func (b *Blender) TrackOutcome(ctx context.Context, userID int64, categoryID int, strategy Strategy, engagement float64) error {
	if strategy != StrategyExploration || engagement <= outcomeThreshold {
		return nil
	}
	if err := b.prefs.BoostInterest(ctx, userID, categoryID, engagement*outcomeWeight, outcomeStep); err != nil {
		return fmt.Errorf("failed to record exploration outcome: %w", err)
	}
	b.log.Info("exploration converted", "user", userID, "category", categoryID, "engagement", engagement)
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func head[T any](xs []T, n int) []T {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}
