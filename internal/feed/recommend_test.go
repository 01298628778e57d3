package feed

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/deusflow/joyfeed/internal/cache"
	"github.com/deusflow/joyfeed/internal/flags"
	"github.com/deusflow/joyfeed/internal/logger"
	"github.com/deusflow/joyfeed/internal/news"
	"github.com/deusflow/joyfeed/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var longBody = strings.Repeat("Volunteers planted trees along the river. ", 10)

func addArticle(t *testing.T, s *storage.MemoryStore, fp string, cat int, sent news.Sentiment, published time.Time, opts ...func(*news.Article)) int64 {
	t.Helper()
	a := &news.Article{
		Fingerprint:    fp,
		Title:          "Title " + fp,
		OriginalBody:   longBody,
		SourceURL:      "https://example.com/" + fp,
		CategoryID:     cat,
		PublishedAt:    published,
		Classification: news.Constructive,
		Sentiment:      sent,
	}
	for _, o := range opts {
		o(a)
	}
	id, err := s.Insert(context.Background(), a)
	require.NoError(t, err)
	return id
}

func rewritten(a *news.Article) { a.IsAIRewritten = true }

func addCategories(t *testing.T, s *storage.MemoryStore, names ...string) {
	t.Helper()
	for _, n := range names {
		_, err := s.CategoryID(context.Background(), n)
		require.NoError(t, err)
	}
}

func categorySource(t *testing.T, s *storage.MemoryStore) *cache.Categories {
	c := cache.NewCategories(s, time.Hour)
	t.Cleanup(c.Close)
	return c
}

type failingCategories struct{}

func (failingCategories) All(ctx context.Context) ([]storage.Category, error) {
	return nil, errors.New("db down")
}

// scriptedPrefs returns fixed preferences; other methods are unused.
type scriptedPrefs struct {
	storage.PreferenceStore
	prefs []storage.CategoryPreference
	err   error
}

func (s scriptedPrefs) CategoryPreferences(ctx context.Context, userID int64) ([]storage.CategoryPreference, error) {
	return s.prefs, s.err
}

var affinityOn = flags.New(true, flags.CategoryAffinity)

func TestColdStart_IsColdStart(t *testing.T) {
	ctx := context.Background()
	p := storage.NewMemoryPreferences()
	store := storage.NewMemoryStore()
	cats := categorySource(t, store)

	off := NewColdStart(store, p, cats, flags.New(true), logger.Nop())
	assert.True(t, off.IsColdStart(ctx, 1), "flag off")

	cs := NewColdStart(store, p, cats, affinityOn, logger.Nop())
	require.NoError(t, p.SeedInterest(ctx, 1, 1, 0.5))
	require.NoError(t, p.SeedInterest(ctx, 1, 2, 0.5))
	require.NoError(t, p.SeedInterest(ctx, 1, 3, 0.05))
	assert.True(t, cs.IsColdStart(ctx, 1))

	require.NoError(t, p.SeedInterest(ctx, 1, 4, 0.2))
	assert.False(t, cs.IsColdStart(ctx, 1))

	broken := NewColdStart(store, scriptedPrefs{err: errors.New("timeout")}, cats, affinityOn, logger.Nop())
	assert.True(t, broken.IsColdStart(ctx, 1))
}

func TestColdStart_BalancedDefaults(t *testing.T) {
	store := storage.NewMemoryStore()
	addCategories(t, store, "Wellness & Health", "Education", "General News", "Technology", "Sports", "Travel")
	cs := NewColdStart(store, storage.NewMemoryPreferences(), categorySource(t, store), affinityOn, logger.Nop())

	assert.Equal(t, map[int]float64{1: 0.9, 2: 0.7, 3: 0.8, 4: 0.6, 5: 0.4, 6: 0.5}, cs.BalancedDefaults(context.Background()))

	fallback := NewColdStart(store, storage.NewMemoryPreferences(), failingCategories{}, affinityOn, logger.Nop())
	assert.Equal(t, fallbackWeights, fallback.BalancedDefaults(context.Background()))
}

func TestColdStart_RecommendScores(t *testing.T) {
	now := time.Now()
	store := storage.NewMemoryStore()
	addCategories(t, store, "Wellness", "Sports")
	well := addArticle(t, store, "w", 1, news.Positive, now.Add(-time.Hour), rewritten)
	sport := addArticle(t, store, "s", 2, news.Neutral, now.Add(-73*time.Hour))
	addArticle(t, store, "neg", 1, news.Negative, now)
	addArticle(t, store, "stale", 1, news.Positive, now.Add(-8*24*time.Hour))

	cs := NewColdStart(store, storage.NewMemoryPreferences(), categorySource(t, store), affinityOn, logger.Nop())
	cs.now = func() time.Time { return now }

	recs, err := cs.Recommend(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, well, recs[0].Article.ID)
	assert.Equal(t, 1.0, recs[0].Score, "capped")
	assert.Equal(t, sport, recs[1].Article.ID)
	assert.InDelta(t, 0.4*(1-3.0/7), recs[1].Score, 1e-9)
	assert.Equal(t, StrategyColdStart, recs[1].Strategy)
}

func TestColdStart_FlagOff(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	addCategories(t, store, "Wellness")
	addArticle(t, store, "w", 1, news.Positive, time.Now())
	p := storage.NewMemoryPreferences()
	cs := NewColdStart(store, p, categorySource(t, store), flags.New(false, flags.CategoryAffinity), logger.Nop())

	recs, err := cs.Recommend(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)

	ok, err := cs.InitializeUserPreferences(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	prefs, _ := p.CategoryPreferences(ctx, 1)
	assert.Empty(t, prefs)
}

func TestColdStart_DiversityCap(t *testing.T) {
	now := time.Now()
	store := storage.NewMemoryStore()
	addCategories(t, store, "General", "Education", "Sports", "Technology", "Wellness", "Travel")
	for i := 0; i < 30; i++ {
		addArticle(t, store, fmt.Sprintf("dom-%d", i), 5, news.Positive, now.Add(-time.Duration(i)*time.Minute))
	}
	for cat := 1; cat <= 6; cat++ {
		for i := 0; i < 6; i++ {
			addArticle(t, store, fmt.Sprintf("c%d-%d", cat, i), cat, news.Neutral, now.Add(-time.Duration(i+1)*time.Hour))
		}
	}

	cs := NewColdStart(store, storage.NewMemoryPreferences(), categorySource(t, store), affinityOn, logger.Nop())
	cs.now = func() time.Time { return now }

	const limit = 20
	recs, err := cs.Recommend(context.Background(), 1, limit)
	require.NoError(t, err)
	require.NotEmpty(t, recs)
	assert.LessOrEqual(t, len(recs), limit)

	perCat := map[int]int{}
	for i, r := range recs {
		perCat[r.Article.CategoryID]++
		if i > 0 {
			assert.LessOrEqual(t, r.Score, recs[i-1].Score)
		}
	}
	for cat, n := range perCat {
		assert.LessOrEqual(t, n, limit/4, "category %d", cat)
	}
}

func TestDiversify(t *testing.T) {
	rec := func(cat int, score float64) Recommendation {
		return Recommendation{Article: news.Article{CategoryID: cat}, Score: score}
	}

	t.Run("dominant category capped", func(t *testing.T) {
		var recs []Recommendation
		for i := 0; i < 12; i++ {
			recs = append(recs, rec(1, 1-float64(i)*0.01))
		}
		recs = append(recs, rec(2, 0.5))
		out := diversify(recs, 20)
		require.Len(t, out, 6)
		for i := 1; i < len(out); i++ {
			assert.Less(t, out[i].Score, out[i-1].Score)
		}
		assert.Equal(t, 2, out[5].Article.CategoryID)
	})

	t.Run("cap lifted below half the limit", func(t *testing.T) {
		out := diversify([]Recommendation{rec(1, 0.9), rec(1, 0.8), rec(1, 0.7), rec(1, 0.6)}, 20)
		assert.Len(t, out, 4)
	})

	t.Run("cap holds once half the limit is filled", func(t *testing.T) {
		out := diversify([]Recommendation{rec(1, 0.9), rec(1, 0.8), rec(2, 0.7), rec(1, 0.6)}, 4)
		require.Len(t, out, 3)
		assert.Equal(t, 2, out[2].Article.CategoryID)
	})
}

func TestColdStart_InitializeUserPreferences(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	addCategories(t, store, "Wellness", "Education")
	p := storage.NewMemoryPreferences()
	require.NoError(t, p.SeedInterest(ctx, 1, 1, 0.5))

	cs := NewColdStart(store, p, categorySource(t, store), affinityOn, logger.Nop())
	ok, err := cs.InitializeUserPreferences(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	prefs, _ := p.CategoryPreferences(ctx, 1)
	got := map[int]float64{}
	for _, pr := range prefs {
		got[pr.CategoryID] = pr.InterestScore
	}
	assert.InDelta(t, 0.5, got[1], 1e-9, "existing interest kept")
	assert.InDelta(t, 0.21, got[2], 1e-9)
}

func newBlender(t *testing.T, store *storage.MemoryStore, prefs storage.PreferenceStore, fl flags.Set) *Blender {
	return NewBlender(store, prefs, categorySource(t, store), fl, rand.New(rand.NewSource(42)), logger.Nop())
}

func TestExplorationRate(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	b := newBlender(t, store, scriptedPrefs{}, flags.Set{})
	assert.Equal(t, MaxExplorationRate, b.ExplorationRate(ctx, 1), "no interactions")

	b = newBlender(t, store, scriptedPrefs{err: errors.New("boom")}, flags.Set{})
	assert.Equal(t, DefaultExplorationRate, b.ExplorationRate(ctx, 1))

	var mature []storage.CategoryPreference
	for cat := 1; cat <= 5; cat++ {
		mature = append(mature, storage.CategoryPreference{CategoryID: cat, InterestScore: 1, InteractionCount: 10})
	}
	b = newBlender(t, store, scriptedPrefs{prefs: mature}, flags.Set{})
	assert.InDelta(t, 0.2, b.ExplorationRate(ctx, 1), 1e-9)
}

func TestExplorationRate_AlwaysWithinBounds(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	store := storage.NewMemoryStore()
	for i := 0; i < 300; i++ {
		var prefs []storage.CategoryPreference
		n := rng.Intn(12)
		for cat := 0; cat < n; cat++ {
			prefs = append(prefs, storage.CategoryPreference{
				CategoryID:       cat + 1,
				InterestScore:    rng.Float64(),
				InteractionCount: rng.Intn(200),
			})
		}
		b := NewBlender(store, scriptedPrefs{prefs: prefs}, failingCategories{}, flags.Set{}, rng, logger.Nop())
		rate := b.ExplorationRate(ctx, 1)
		assert.GreaterOrEqual(t, rate, MinExplorationRate)
		assert.LessOrEqual(t, rate, MaxExplorationRate)
	}
}

func TestBlend(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := storage.NewMemoryStore()
	addCategories(t, store, "C1", "C2", "C3", "C4", "C5", "C6")
	for cat := 1; cat <= 6; cat++ {
		for i := 0; i < 10; i++ {
			addArticle(t, store, fmt.Sprintf("c%d-%d", cat, i), cat, news.Neutral, now.Add(-time.Duration(i+1)*time.Hour))
		}
	}

	p := storage.NewMemoryPreferences()
	require.NoError(t, p.SeedInterest(ctx, 1, 1, 0.9))
	require.NoError(t, p.SeedInterest(ctx, 1, 2, 0.8))
	for i := 0; i < 30; i++ {
		require.NoError(t, p.RecordView(ctx, storage.ViewEvent{UserID: 1, ItemType: storage.ItemArticle, ItemID: int64(i), CategoryID: 1}))
	}
	for i := 0; i < 20; i++ {
		require.NoError(t, p.RecordView(ctx, storage.ViewEvent{UserID: 1, ItemType: storage.ItemArticle, ItemID: int64(100 + i), CategoryID: 2}))
	}

	b := newBlender(t, store, p, flags.New(true, flags.Exploration))
	assert.InDelta(t, 0.368, b.ExplorationRate(ctx, 1), 1e-9)

	recs, err := b.Blend(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, recs, 10)

	counts := map[Strategy]int{}
	for _, r := range recs {
		counts[r.Strategy]++
		switch r.Strategy {
		case StrategyExploration:
			assert.GreaterOrEqual(t, r.Article.CategoryID, 3)
			assert.Equal(t, explorationScore, r.Score)
		case StrategyExploitation:
			assert.LessOrEqual(t, r.Article.CategoryID, 2)
			assert.Equal(t, []float64{0.9, 0.8}[r.Article.CategoryID-1], r.Score)
		}
	}
	assert.Equal(t, 3, counts[StrategyExploration])
	assert.Equal(t, 7, counts[StrategyExploitation])

	off := newBlender(t, store, p, flags.New(true))
	recs, err = off.Blend(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestBlend_NewUserOnlyExplores(t *testing.T) {
	store := storage.NewMemoryStore()
	addCategories(t, store, "C1", "C2")
	for i := 0; i < 10; i++ {
		addArticle(t, store, fmt.Sprintf("a%d", i), 1+i%2, news.Positive, time.Now().Add(-time.Hour))
	}
	b := newBlender(t, store, storage.NewMemoryPreferences(), flags.New(true, flags.Exploration))

	recs, err := b.Blend(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	for _, r := range recs {
		assert.Equal(t, StrategyExploration, r.Strategy)
	}
}

func TestTrackOutcome(t *testing.T) {
	ctx := context.Background()
	p := storage.NewMemoryPreferences()
	b := newBlender(t, storage.NewMemoryStore(), p, flags.Set{})

	require.NoError(t, b.TrackOutcome(ctx, 1, 4, StrategyExploitation, 0.95))
	require.NoError(t, b.TrackOutcome(ctx, 1, 4, StrategyExploration, 0.5))
	prefs, _ := p.CategoryPreferences(ctx, 1)
	assert.Empty(t, prefs)

	require.NoError(t, b.TrackOutcome(ctx, 1, 4, StrategyExploration, 0.9))
	prefs, _ = p.CategoryPreferences(ctx, 1)
	require.Len(t, prefs, 1)
	assert.InDelta(t, 0.18, prefs[0].InterestScore, 1e-9)

	require.NoError(t, b.TrackOutcome(ctx, 1, 4, StrategyExploration, 0.8))
	prefs, _ = p.CategoryPreferences(ctx, 1)
	assert.InDelta(t, 0.28, prefs[0].InterestScore, 1e-9)
	assert.Equal(t, 2, prefs[0].InteractionCount)
}
