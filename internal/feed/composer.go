package feed

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/deusflow/joyfeed/internal/news"
	"github.com/deusflow/joyfeed/internal/storage"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultLimit = 20
	MaxLimit     = 50

	// MinArticleBody drops stubs from the feed.
	MinArticleBody  = 300
	candidateFactor = 3

	AINotice = " [This article was rewritten using A.I]"

	feedAuthor  = "News Source"
	degradedMsg = "failed to generate feed"
)

type Request struct {
	UserID     int64
	Limit      int
	Offset     int
	Type       string // "", "article" or "post"
	CategoryID int
}

type Result struct {
	Items    []Item `json:"items"`
	HasMore  bool   `json:"has_more"`
	Total    int    `json:"total"`
	Degraded bool   `json:"degraded,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Observer is notified of every composed feed.
type Observer interface {
	ObserveFeed(degraded bool)
}

type ComposerDeps struct {
	Content   storage.ContentStore
	Prefs     storage.PreferenceStore
	Affinity  *AffinityEstimator
	ColdStart *ColdStart
	Blender   *Blender
	Observer  Observer
	Logger    *slog.Logger
}

// Composer assembles the ranked feed for one request.
type Composer struct {
	deps ComposerDeps
	log  *slog.Logger
	now  func() time.Time
}

func NewComposer(deps ComposerDeps) *Composer {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	if deps.Affinity == nil {
		deps.Affinity = NewAffinityEstimator(deps.Prefs)
	}
	return &Composer{deps: deps, log: log.With("component", "composer"), now: time.Now}
}

// Compose never fails; internal errors yield a degraded empty result.
func (c *Composer) Compose(ctx context.Context, req Request) Result {
	req = normalizeRequest(req)
	res, err := c.compose(ctx, req)
	if err != nil {
		c.log.Error("failed to compose feed", "user", req.UserID, "error", err)
		res = Result{Items: []Item{}, Degraded: true, Error: degradedMsg}
	}
	if c.deps.Observer != nil {
		c.deps.Observer.ObserveFeed(res.Degraded)
	}
	return res
}

func normalizeRequest(req Request) Request {
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	return req
}

func (c *Composer) compose(ctx context.Context, req Request) (Result, error) {
	items, err := c.candidates(ctx, req)
	if err != nil {
		return Result{}, err
	}

	static, err := c.deps.Prefs.StaticPreferences(ctx, req.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load static preferences: %w", err)
	}
	dynamic, err := c.deps.Affinity.Estimate(ctx, req.UserID, DefaultAffinityWindowDays)
	if err != nil {
		return Result{}, err
	}
	prefs := Prefs{Static: static, Dynamic: dynamic}

	items = c.applyStrategies(ctx, req, items)

	now := c.now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range items {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			it := &items[i]
			it.Score = Score(*it, prefs, now)
			if !it.IsBreaking {
				it.Score = round1(it.Score + it.StrategyScore*StrategyBoost)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	Rank(items)

	total := len(items)
	page := []Item{}
	if req.Offset < total {
		end := req.Offset + req.Limit
		if end > total {
			end = total
		}
		page = items[req.Offset:end]
	}
	return Result{
		Items:   page,
		HasMore: total > req.Offset+req.Limit,
		Total:   total,
	}, nil
}

func (c *Composer) candidates(ctx context.Context, req Request) ([]Item, error) {
	n := req.Limit * candidateFactor
	var items []Item

	if req.Type != string(KindArticle) {
		posts, err := c.deps.Content.RecentPosts(ctx, storage.PostQuery{CategoryID: req.CategoryID, Limit: n})
		if err != nil {
			return nil, fmt.Errorf("failed to load posts: %w", err)
		}
		for _, p := range posts {
			items = append(items, postItem(p))
		}
	}

	if req.Type != string(KindPost) {
		q := storage.ArticleQuery{MinBodyLength: MinArticleBody, ExcludeBlocked: true, Order: storage.OrderRecent, Limit: n}
		if req.CategoryID != 0 {
			q.CategoryIDs = []int{req.CategoryID}
		}
		arts, err := c.deps.Content.RecentArticles(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to load articles: %w", err)
		}
		for _, a := range arts {
			items = append(items, articleItem(a))
		}
	}
	return items, nil
}

// applyStrategies tags items picked by the cold start engine or the blender.
// Recommended articles missing from the pool join it when they pass the filters.
// Recommender failures only cost the tags.
func (c *Composer) applyStrategies(ctx context.Context, req Request, items []Item) []Item {
	for i := range items {
		items[i].Strategy = StrategyDefault
	}

	var (
		recs []Recommendation
		err  error
	)
	switch {
	case c.deps.ColdStart != nil && c.deps.ColdStart.IsColdStart(ctx, req.UserID):
		recs, err = c.deps.ColdStart.Recommend(ctx, req.UserID, req.Limit)
	case c.deps.Blender != nil:
		recs, err = c.deps.Blender.Blend(ctx, req.UserID, req.Limit)
	}
	if err != nil {
		c.log.Warn("recommendations unavailable, using default ranking", "user", req.UserID, "error", err)
		return items
	}

	index := make(map[int64]int, len(items))
	for i, it := range items {
		if it.Kind == KindArticle {
			index[it.ID] = i
		}
	}
	for _, r := range recs {
		if i, ok := index[r.Article.ID]; ok {
			items[i].Strategy = r.Strategy
			items[i].StrategyScore = r.Score
			continue
		}
		if req.Type == string(KindPost) || (req.CategoryID != 0 && r.Article.CategoryID != req.CategoryID) {
			continue
		}
		if r.Article.Blocked || len([]rune(r.Article.Body())) < MinArticleBody {
			continue
		}
		it := articleItem(r.Article)
		it.Strategy = r.Strategy
		it.StrategyScore = r.Score
		index[it.ID] = len(items)
		items = append(items, it)
	}
	return items
}

func articleItem(a news.Article) Item {
	content := a.Body()
	if a.IsAIRewritten {
		content += AINotice
	}
	return Item{
		Kind:          KindArticle,
		ID:            a.ID,
		Title:         a.DisplayTitle(),
		Content:       content,
		Author:        feedAuthor,
		ImageURL:      a.ImageURL,
		SourceURL:     a.SourceURL,
		CategoryID:    a.CategoryID,
		PublishedAt:   a.Timestamp(),
		IsAIRewritten: a.IsAIRewritten,
		IsBreaking:    a.IsBreaking,
	}
}

func postItem(p storage.Post) Item {
	return Item{
		Kind:        KindPost,
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Body,
		Author:      fmt.Sprintf("user:%d", p.AuthorID),
		ImageURL:    p.ImageURL,
		CategoryID:  p.CategoryID,
		PublishedAt: p.CreatedAt,
	}
}
