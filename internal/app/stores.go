package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/deusflow/joyfeed/internal/config"
	"github.com/deusflow/joyfeed/internal/storage"
)

// stores bundles the content and preference backends selected by STORE_BACKEND.
type stores struct {
	content storage.ContentStore
	prefs   storage.PreferenceStore
	cleaner storage.Cleaner
	db      *sql.DB
}

func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := storage.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		content, err := storage.NewPostgresStore(ctx, db, log.With("component", "postgres"))
		if err != nil {
			db.Close()
			return nil, err
		}
		prefs, err := storage.NewPostgresPreferences(ctx, db)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize preferences: %w", err)
		}
		log.Info("using PostgreSQL storage")
		return &stores{content: content, prefs: prefs, cleaner: content, db: db}, nil

	case config.BackendFile:
		fs := storage.NewFileStore(cfg.StoreFilePath, cfg.StoreRetention)
		if err := fs.Load(); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", cfg.StoreFilePath, err)
		}
		log.Info("using file storage", "path", cfg.StoreFilePath, "articles", fs.Len(), "retention", cfg.StoreRetention)
		return &stores{content: fs, prefs: storage.NewMemoryPreferences(), cleaner: fs}, nil

	default:
		mem := storage.NewMemoryStore()
		log.Info("using in-memory storage")
		return &stores{content: mem, prefs: storage.NewMemoryPreferences(), cleaner: mem}, nil
	}
}

func (s *stores) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
