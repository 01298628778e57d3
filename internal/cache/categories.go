package cache

import (
	"context"
	"time"

	"github.com/deusflow/joyfeed/internal/storage"
)

// CategoryLoader supplies the full category list. storage.ContentStore
// satisfies it through Categories.
type CategoryLoader interface {
	Categories(ctx context.Context) ([]storage.Category, error)
}

const categoriesKey = "categories"

// Categories caches the category list for ttl. Components receive it at
// construction; there is no package-level instance.
type Categories struct {
	loader CategoryLoader
	ttl    time.Duration
	cache  *Cache[[]storage.Category]
}

func NewCategories(loader CategoryLoader, ttl time.Duration) *Categories {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Categories{loader: loader, ttl: ttl, cache: New[[]storage.Category](ttl)}
}

// All returns the cached list, loading it on a miss.
func (c *Categories) All(ctx context.Context) ([]storage.Category, error) {
	if cats, ok := c.cache.Get(categoriesKey); ok {
		return cats, nil
	}
	cats, err := c.loader.Categories(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(categoriesKey, cats, c.ttl)
	return cats, nil
}

// Invalidate forces the next All to reload.
func (c *Categories) Invalidate() {
	c.cache.Invalidate()
}

func (c *Categories) Close() {
	c.cache.Stop()
}
