// Package storage holds the content and preference store ports and their
// memory, JSON-file and Postgres implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/deusflow/joyfeed/internal/news"
)

// ErrDuplicate is returned by Insert when the fingerprint is already stored.
var ErrDuplicate = errors.New("article already exists")

type Category struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Order selects the sort applied by RecentArticles.
type Order int

const (
	// OrderRecent sorts newest first.
	OrderRecent Order = iota
	// OrderPositiveFirst sorts POSITIVE first, then AI-rewritten, then newest.
	OrderPositiveFirst
)

// ArticleQuery filters RecentArticles. Zero values disable a filter.
type ArticleQuery struct {
	CategoryIDs    []int
	Since          time.Time
	Sentiments     []news.Sentiment
	MinBodyLength  int
	ExcludeBlocked bool
	Order          Order
	Limit          int
}

// Post is a user-generated item. Posts are written by the social service;
// this module only reads them.
type Post struct {
	ID         int64     `json:"id"`
	AuthorID   int64     `json:"author_id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	ImageURL   string    `json:"image_url,omitempty"`
	CategoryID int       `json:"category_id"`
	Public     bool      `json:"public"`
	CreatedAt  time.Time `json:"created_at"`
}

type PostQuery struct {
	CategoryID int
	Limit      int
}

// ContentStore persists classified articles keyed by fingerprint.
type ContentStore interface {
	// Insert is atomic on the fingerprint and returns ErrDuplicate when it
	// loses a race or the article was stored earlier.
	Insert(ctx context.Context, a *news.Article) (int64, error)
	ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error)
	ExistsByTitleAndURL(ctx context.Context, title, url string) (bool, error)
	CategoryID(ctx context.Context, name string) (int, error)
	Categories(ctx context.Context) ([]Category, error)
	RecentArticles(ctx context.Context, q ArticleQuery) ([]news.Article, error)
	RecentPosts(ctx context.Context, q PostQuery) ([]Post, error)
}

func matchArticle(a *news.Article, q ArticleQuery) bool {
	if q.ExcludeBlocked && a.Blocked {
		return false
	}
	if len(q.CategoryIDs) > 0 && !containsInt(q.CategoryIDs, a.CategoryID) {
		return false
	}
	if !q.Since.IsZero() && a.Timestamp().Before(q.Since) {
		return false
	}
	if len(q.Sentiments) > 0 {
		ok := false
		for _, s := range q.Sentiments {
			if a.Sentiment == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if q.MinBodyLength > 0 && len([]rune(a.Body())) < q.MinBodyLength {
		return false
	}
	return true
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// Cleaner is implemented by stores that support maintenance deletes.
type Cleaner interface {
	// CleanupLegacy removes articles with an empty body or boilerplate text.
	CleanupLegacy(ctx context.Context) (int64, error)
	// PurgeOlderThan removes articles created before now-age.
	PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// legacyBoilerplate lists the phrases CleanupLegacy deletes on.
var legacyBoilerplate = []string{"file photo", "file image", "image of"}
