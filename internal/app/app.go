// Package app wires configuration, stores, AI providers, the ingestion
// pipeline and the feed composer into one service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/deusflow/joyfeed/internal/cache"
	"github.com/deusflow/joyfeed/internal/classify"
	"github.com/deusflow/joyfeed/internal/config"
	"github.com/deusflow/joyfeed/internal/feed"
	"github.com/deusflow/joyfeed/internal/flags"
	"github.com/deusflow/joyfeed/internal/gemini"
	"github.com/deusflow/joyfeed/internal/llm"
	"github.com/deusflow/joyfeed/internal/metrics"
	"github.com/deusflow/joyfeed/internal/pipeline"
	"github.com/deusflow/joyfeed/internal/ratelimit"
	"github.com/deusflow/joyfeed/internal/retry"
	"github.com/deusflow/joyfeed/internal/rss"
	"github.com/deusflow/joyfeed/internal/scraper"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

const scrapeTimeout = 10 * time.Second

var ErrNoCleaner = errors.New("store does not support cleanup")

// App is the composed service. Build it with New and release it with Close.
type App struct {
	cfg   *config.Config
	log   *slog.Logger
	flags flags.Set

	registry  *prometheus.Registry
	collector *metrics.Collector
	status    *metrics.Status
	limiter   *ratelimit.AIRateLimiter
	guards    []*llm.Guard

	stores      *stores
	categories  *cache.Categories
	redis       *redis.Client
	redisLoader *cache.RedisCategoryLoader

	classifier *classify.Classifier
	pipeline   *pipeline.Pipeline
	composer   *feed.Composer
	coldStart  *feed.ColdStart
	blender    *feed.Blender

	closers []func()
}

// New builds every component from cfg. Flags are resolved by the caller so
// tests can pass their own set.
func New(ctx context.Context, cfg *config.Config, fl flags.Set, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{
		cfg:      cfg,
		log:      log,
		flags:    fl,
		registry: prometheus.NewRegistry(),
		status:   metrics.NewStatus(),
	}
	a.collector = metrics.NewCollector(a.registry)
	a.limiter = ratelimit.NewAIRateLimiter(cfg.MaxAIRequests, nil, log.With("component", "ratelimit"))

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.stores = st
	a.closers = append(a.closers, func() { _ = st.Close() })

	a.categories = cache.NewCategories(a.categoryLoader(ctx), cfg.CategoryCacheTTL)
	a.closers = append(a.closers, a.categories.Close)

	gen, err := a.buildGenerator(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	opts := classify.Options{SummaryLimit: cfg.SummaryLimit, Detailed: fl.Enabled(flags.EnhancedSummaries)}
	if gen == nil {
		log.Warn("no AI provider configured, classifying by keywords only (degraded mode)")
		a.classifier = classify.NewKeyword(opts, log.With("component", "classifier"))
	} else {
		log.Info("AI provider chain ready", "providers", gen.Name())
		a.classifier = classify.New(gen, opts, log.With("component", "classifier"))
	}

	sources, err := loadSources(cfg.SourcesConfigPath, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	var pageScraper pipeline.PageScraper
	if cfg.ScrapeFullArticles {
		pageScraper = scraper.New(scrapeTimeout)
	}
	a.pipeline = pipeline.New(pipeline.Deps{
		Sources: sources,
		Fetcher: rss.NewFetcher(rss.FetcherOptions{
			Timeout:    cfg.FeedTimeout,
			MaxEntries: cfg.MaxEntriesPerFeed,
			Retry:      retry.RetryConfig{MaxAttempts: cfg.FetchRetryAttempts, Delay: time.Second, Backoff: true},
		}, log.With("component", "rss")),
		Scraper:    pageScraper,
		Classifier: a.classifier,
		Store:      st.content,
		Observer:   runObservers{a.collector, statusObserver{a.status}},
		Logger:     log,
	}, pipeline.Options{
		Workers:              cfg.IngestWorkers,
		EntryDelay:           cfg.EntryDelay,
		ScrapeFullArticles:   cfg.ScrapeFullArticles,
		BlockHarmfulKeywords: fl.Enabled(flags.ContentBlocking),
	})

	a.coldStart = feed.NewColdStart(st.content, st.prefs, a.categories, fl, log)
	a.blender = feed.NewBlender(st.content, st.prefs, a.categories, fl, rand.New(rand.NewSource(time.Now().UnixNano())), log)
	a.composer = feed.NewComposer(feed.ComposerDeps{
		Content:   st.content,
		Prefs:     st.prefs,
		ColdStart: a.coldStart,
		Blender:   a.blender,
		Observer:  a.collector,
		Logger:    log,
	})
	return a, nil
}

// categoryLoader puts Redis in front of the store when REDIS_URL is set.
// An unreachable Redis is logged and skipped.
func (a *App) categoryLoader(ctx context.Context) cache.CategoryLoader {
	if a.cfg.RedisURL == "" {
		return a.stores.content
	}
	client, err := cache.ConnectRedis(ctx, a.cfg.RedisURL)
	if err != nil {
		a.log.Warn("redis unavailable, caching categories in process only", "error", err)
		return a.stores.content
	}
	a.redis = client
	a.closers = append(a.closers, func() { _ = client.Close() })
	a.redisLoader = cache.NewRedisCategoryLoader(client, a.stores.content, a.cfg.CategoryCacheTTL, a.log.With("component", "redis"))
	return a.redisLoader
}

// invalidateCategories drops the cached category list in process and in Redis.
func (a *App) invalidateCategories(ctx context.Context) {
	a.categories.Invalidate()
	if a.redisLoader == nil {
		return
	}
	if err := a.redisLoader.Invalidate(ctx); err != nil {
		a.log.Warn("failed to invalidate shared categories", "error", err)
	}
}

// buildGenerator returns the guarded provider chain, or nil for keyword mode.
func (a *App) buildGenerator(ctx context.Context) (llm.Generator, error) {
	cfg := a.cfg
	var providers []llm.Generator

	useGemini := cfg.AIProvider == config.ProviderGemini || (cfg.AIProvider == config.ProviderAuto && cfg.GeminiAPIKey != "")
	useOpenAI := cfg.AIProvider == config.ProviderOpenAI || (cfg.AIProvider == config.ProviderAuto && cfg.OpenAIAPIKey != "")

	if useGemini {
		g, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		providers = append(providers, g)
	}
	if useOpenAI {
		providers = append(providers, llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel))
	}
	if len(providers) == 0 {
		return nil, nil
	}

	guarded := make([]llm.Generator, 0, len(providers))
	for _, p := range providers {
		g := llm.NewGuard(p, llm.GuardOptions{
			Limiter:  a.limiter,
			Timeout:  cfg.AITimeout,
			Observer: a.collector,
			Logger:   a.log.With("component", "ai"),
		})
		a.guards = append(a.guards, g)
		guarded = append(guarded, g)
	}
	if len(guarded) == 1 {
		return guarded[0], nil
	}
	return llm.NewChain(a.log.With("component", "ai"), guarded...), nil
}

func loadSources(path string, log *slog.Logger) ([]rss.Source, error) {
	reg, err := rss.LoadSources(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	sources := reg.Active(log)
	if len(sources) == 0 {
		return nil, fmt.Errorf("no active sources in %s", path)
	}
	log.Info("sources loaded", "active", len(sources))
	return sources, nil
}

// RunIngest runs the pipeline once. Sources may add categories, so the
// category cache is dropped afterwards.
func (a *App) RunIngest(ctx context.Context) (metrics.Snapshot, error) {
	run, err := a.pipeline.Run(ctx)
	snap := run.Snapshot()
	a.invalidateCategories(context.WithoutCancel(ctx))
	if err != nil {
		a.status.SetError(err.Error())
		return snap, err
	}
	if a.classifier.Degraded() {
		a.log.Warn("run classified in keyword mode", "run_id", snap.RunID)
	}
	return snap, nil
}

// Schedule runs the pipeline on a cron spec until ctx is done. A run still
// in progress when the next tick fires makes that tick a no-op.
func (a *App) Schedule(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err := c.AddFunc(spec, func() {
		if _, err := a.RunIngest(ctx); err != nil {
			a.log.Error("scheduled ingestion failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid INGEST_SCHEDULE %q: %w", spec, err)
	}

	a.log.Info("ingestion scheduled", "spec", spec)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// Feed composes one page of the personalized feed.
func (a *App) Feed(ctx context.Context, req feed.Request) feed.Result {
	return a.composer.Compose(ctx, req)
}

// Cleanup removes legacy rows and, when olderThan is positive, articles
// ingested before now-olderThan.
func (a *App) Cleanup(ctx context.Context, olderThan time.Duration) (legacy, purged int64, err error) {
	if a.stores.cleaner == nil {
		return 0, 0, ErrNoCleaner
	}
	legacy, err = a.stores.cleaner.CleanupLegacy(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("legacy cleanup: %w", err)
	}
	if olderThan > 0 {
		purged, err = a.stores.cleaner.PurgeOlderThan(ctx, olderThan)
		if err != nil {
			return legacy, 0, fmt.Errorf("purge: %w", err)
		}
	}
	a.log.Info("cleanup finished", "legacy", legacy, "purged", purged)
	return legacy, purged, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

type runObservers []pipeline.RunObserver

func (o runObservers) ObserveRun(s metrics.Snapshot) {
	for _, obs := range o {
		obs.ObserveRun(s)
	}
}

type statusObserver struct{ status *metrics.Status }

func (s statusObserver) ObserveRun(snap metrics.Snapshot) { s.status.RecordRun(snap) }
