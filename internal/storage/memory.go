package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/deusflow/joyfeed/internal/news"
)

// MemoryStore is the in-process ContentStore used for tests, previews and
// the file backend.
type MemoryStore struct {
	mu            sync.RWMutex
	articles      []news.Article
	byFingerprint map[string]int
	categories    []Category
	posts         []Post
	nextID        int64
	now           func() time.Time
}

var (
	_ ContentStore = (*MemoryStore)(nil)
	_ Cleaner      = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byFingerprint: make(map[string]int),
		now:           time.Now,
	}
}

func (m *MemoryStore) Insert(ctx context.Context, a *news.Article) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byFingerprint[a.Fingerprint]; ok {
		return 0, ErrDuplicate
	}
	m.nextID++
	stored := *a
	stored.ID = m.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = m.now()
	}
	m.byFingerprint[a.Fingerprint] = len(m.articles)
	m.articles = append(m.articles, stored)
	a.ID = stored.ID
	return stored.ID, nil
}

func (m *MemoryStore) ExistsByFingerprint(ctx context.Context, fingerprint string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byFingerprint[fingerprint]
	return ok, nil
}

func (m *MemoryStore) ExistsByTitleAndURL(ctx context.Context, title, url string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := range m.articles {
		if m.articles[i].Title == title && m.articles[i].SourceURL == url {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) CategoryID(ctx context.Context, name string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.categories {
		if strings.EqualFold(c.Name, name) {
			return c.ID, nil
		}
	}
	id := len(m.categories) + 1
	m.categories = append(m.categories, Category{ID: id, Name: name})
	return id, nil
}

func (m *MemoryStore) Categories(ctx context.Context) ([]Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Category, len(m.categories))
	copy(out, m.categories)
	return out, nil
}

func (m *MemoryStore) RecentArticles(ctx context.Context, q ArticleQuery) ([]news.Article, error) {
	m.mu.RLock()
	var out []news.Article
	for i := range m.articles {
		if matchArticle(&m.articles[i], q) {
			out = append(out, m.articles[i])
		}
	}
	m.mu.RUnlock()

	sortArticles(out, q.Order)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// AddPost stores a post as the social service would.
func (m *MemoryStore) AddPost(p Post) Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == 0 {
		p.ID = int64(len(m.posts) + 1)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now()
	}
	m.posts = append(m.posts, p)
	return p
}

func (m *MemoryStore) RecentPosts(ctx context.Context, q PostQuery) ([]Post, error) {
	m.mu.RLock()
	var out []Post
	for _, p := range m.posts {
		if !p.Public || (q.CategoryID != 0 && p.CategoryID != q.CategoryID) {
			continue
		}
		out = append(out, p)
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Len reports the number of stored articles.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.articles)
}

func sortArticles(arts []news.Article, order Order) {
	sort.SliceStable(arts, func(i, j int) bool {
		a, b := arts[i], arts[j]
		if order == OrderPositiveFirst {
			if pa, pb := a.Sentiment == news.Positive, b.Sentiment == news.Positive; pa != pb {
				return pa
			}
			if a.IsAIRewritten != b.IsAIRewritten {
				return a.IsAIRewritten
			}
		}
		return a.Timestamp().After(b.Timestamp())
	})
}

func (m *MemoryStore) CleanupLegacy(ctx context.Context) (int64, error) {
	return m.deleteWhere(func(a *news.Article) bool {
		body := strings.ToLower(strings.TrimSpace(a.OriginalBody))
		if body == "" {
			return true
		}
		for _, p := range legacyBoilerplate {
			if strings.Contains(body, p) {
				return true
			}
		}
		return false
	}), nil
}

func (m *MemoryStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := m.now().Add(-age)
	return m.deleteWhere(func(a *news.Article) bool { return a.CreatedAt.Before(cutoff) }), nil
}

func (m *MemoryStore) deleteWhere(drop func(*news.Article) bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.articles[:0]
	var removed int64
	for i := range m.articles {
		if drop(&m.articles[i]) {
			removed++
			continue
		}
		kept = append(kept, m.articles[i])
	}
	m.articles = kept
	m.byFingerprint = make(map[string]int, len(kept))
	for i, a := range kept {
		m.byFingerprint[a.Fingerprint] = i
	}
	return removed
}
