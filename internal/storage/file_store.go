package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/deusflow/joyfeed/internal/news"
)

// FileStore is a MemoryStore snapshotted to a JSON file after every write.
// Snapshots are written one at a time and replace the file atomically.
type FileStore struct {
	*MemoryStore
	filePath  string
	retention time.Duration

	saveMu sync.Mutex
}

type fileSnapshot struct {
	Articles   []news.Article `json:"articles"`
	Categories []Category     `json:"categories"`
	Posts      []Post         `json:"posts,omitempty"`
}

// NewFileStore creates a store backed by filePath. Articles older than
// retention are dropped on Load; zero keeps everything.
func NewFileStore(filePath string, retention time.Duration) *FileStore {
	return &FileStore{MemoryStore: NewMemoryStore(), filePath: filePath, retention: retention}
}

// Load reads the snapshot. A missing or empty file starts an empty store.
func (f *FileStore) Load() error {
	data, err := os.ReadFile(f.filePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var snap fileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to unmarshal store: %w", err)
	}

	m := f.MemoryStore
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Time{}
	if f.retention > 0 {
		cutoff = m.now().Add(-f.retention)
	}
	m.articles = m.articles[:0]
	m.byFingerprint = make(map[string]int, len(snap.Articles))
	for _, a := range snap.Articles {
		if !cutoff.IsZero() && a.CreatedAt.Before(cutoff) {
			continue
		}
		if _, dup := m.byFingerprint[a.Fingerprint]; dup {
			continue
		}
		m.byFingerprint[a.Fingerprint] = len(m.articles)
		m.articles = append(m.articles, a)
		m.nextID = max(m.nextID, a.ID)
	}
	m.categories = snap.Categories
	m.posts = snap.Posts
	return nil
}

// Save writes the current snapshot as indented JSON. The snapshot is taken
// under saveMu so a later state never loses the race to an earlier one.
func (f *FileStore) Save() error {
	f.saveMu.Lock()
	defer f.saveMu.Unlock()

	m := f.MemoryStore
	m.mu.RLock()
	snap := fileSnapshot{
		Articles:   append([]news.Article(nil), m.articles...),
		Categories: append([]Category(nil), m.categories...),
		Posts:      append([]Post(nil), m.posts...),
	}
	m.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}
	return writeFileAtomic(f.filePath, data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

// Insert rolls the article back out of memory when the snapshot cannot be
// written, so a failed insert is retried by the next run.
func (f *FileStore) Insert(ctx context.Context, a *news.Article) (int64, error) {
	id, err := f.MemoryStore.Insert(ctx, a)
	if err != nil {
		return 0, err
	}
	if err := f.Save(); err != nil {
		fp := a.Fingerprint
		f.MemoryStore.deleteWhere(func(stored *news.Article) bool { return stored.Fingerprint == fp })
		a.ID = 0
		return 0, err
	}
	return id, nil
}

func (f *FileStore) CategoryID(ctx context.Context, name string) (int, error) {
	f.MemoryStore.mu.RLock()
	before := len(f.MemoryStore.categories)
	f.MemoryStore.mu.RUnlock()
	id, err := f.MemoryStore.CategoryID(ctx, name)
	if err != nil || id <= before {
		return id, err
	}
	return id, f.Save()
}

func (f *FileStore) CleanupLegacy(ctx context.Context) (int64, error) {
	n, _ := f.MemoryStore.CleanupLegacy(ctx)
	if n == 0 {
		return 0, nil
	}
	return n, f.Save()
}

func (f *FileStore) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	n, _ := f.MemoryStore.PurgeOlderThan(ctx, age)
	if n == 0 {
		return 0, nil
	}
	return n, f.Save()
}
