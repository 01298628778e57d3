// Package pipeline runs one ingestion pass: fetch every active source,
// deduplicate, validate, classify and store each entry.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/deusflow/joyfeed/internal/classify"
	"github.com/deusflow/joyfeed/internal/metrics"
	"github.com/deusflow/joyfeed/internal/news"
	"github.com/deusflow/joyfeed/internal/rss"
	"github.com/deusflow/joyfeed/internal/scraper"
	"github.com/deusflow/joyfeed/internal/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers    = 4
	DefaultEntryDelay = 500 * time.Millisecond

	// MinScrapedLength is the shortest scrape preferred over the feed summary.
	MinScrapedLength = 200

	titleLogPrefix = 50
)

type Fetcher interface {
	Fetch(ctx context.Context, src rss.Source) ([]news.Entry, error)
}

type PageScraper interface {
	Extract(ctx context.Context, url string) (*scraper.ArticleContent, error)
}

type Classifier interface {
	Process(ctx context.Context, in classify.Input) classify.Outcome
}

// RunObserver receives the counters of every finished run.
type RunObserver interface {
	ObserveRun(s metrics.Snapshot)
}

type Options struct {
	Workers    int
	EntryDelay time.Duration
	// ScrapeFullArticles enables the full-page fallback.
	ScrapeFullArticles bool
	// BlockHarmfulKeywords drops entries hitting the keyword screen before any AI call.
	BlockHarmfulKeywords bool
}

type Deps struct {
	Sources    []rss.Source
	Fetcher    Fetcher
	Scraper    PageScraper
	Classifier Classifier
	Store      storage.ContentStore
	Observer   RunObserver
	Logger     *slog.Logger
}

type Pipeline struct {
	deps Deps
	opts Options
	log  *slog.Logger
}

func New(deps Deps, opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.EntryDelay < 0 {
		opts.EntryDelay = 0
	}
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{deps: deps, opts: opts, log: log.With("component", "pipeline")}
}

// Run processes every source once. Source and entry failures are counted,
// never returned; only a cancelled context ends the run early.
func (p *Pipeline) Run(ctx context.Context) (*metrics.Run, error) {
	run := metrics.NewRun(uuid.NewString())
	log := p.log.With("run_id", run.ID)
	log.Info("ingestion started", "sources", len(p.deps.Sources), "workers", p.opts.Workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for _, src := range p.deps.Sources {
		if gctx.Err() != nil {
			break
		}
		src := src
		g.Go(func() error {
			p.processSource(gctx, log, run, src)
			return nil
		})
	}
	_ = g.Wait()
	run.Finish()

	snap := run.Snapshot()
	if p.deps.Observer != nil {
		p.deps.Observer.ObserveRun(snap)
	}
	log.Info("ingestion finished",
		"processed", snap.Processed, "skipped", snap.Skipped, "failed", snap.Failed,
		"blocked", snap.Blocked, "invalid", snap.Invalid,
		"sources_ok", snap.SourcesOK, "sources_failed", snap.SourcesFailed,
		"duration", snap.Duration)

	if err := ctx.Err(); err != nil {
		return run, err
	}
	return run, nil
}

func (p *Pipeline) processSource(ctx context.Context, log *slog.Logger, run *metrics.Run, src rss.Source) {
	log = log.With("source", src.SourceName)

	categoryID, err := p.deps.Store.CategoryID(ctx, src.Category)
	if err != nil {
		log.Error("failed to resolve category", "category", src.Category, "error", err)
		run.SourceFailed()
		return
	}

	entries, err := p.deps.Fetcher.Fetch(ctx, src)
	if err != nil {
		log.Warn("skipping source", "error", err)
		run.SourceFailed()
		return
	}
	run.SourceOK()

	for i, e := range entries {
		if i > 0 && !sleep(ctx, p.opts.EntryDelay) {
			return
		}
		if ctx.Err() != nil {
			return
		}
		p.processEntry(ctx, log, run, src, categoryID, e)
	}
}

func (p *Pipeline) processEntry(ctx context.Context, log *slog.Logger, run *metrics.Run, src rss.Source, categoryID int, e news.Entry) {
	if e.Title == "" {
		log.Debug("entry without title")
		run.Skipped()
		return
	}
	log = log.With("title", news.Prefix(e.Title, titleLogPrefix))

	fp := news.Fingerprint(e.Title, e.Link, e.PublishedDate)
	seen, err := p.seen(ctx, fp, e)
	if err != nil {
		log.Error("duplicate check failed", "error", err)
		run.Failed()
		return
	}
	if seen {
		log.Debug("already stored")
		run.Skipped()
		return
	}

	body, pageImage := p.content(ctx, log, e)

	if p.opts.BlockHarmfulKeywords && news.IsHarmful(e.Title, body) {
		log.Info("blocked by keyword screen")
		run.Blocked()
		return
	}
	if !news.IsValid(body) {
		log.Debug("invalid content")
		run.Invalid()
		return
	}

	image := e.ImageURL
	if image == "" {
		image = pageImage
	}

	out := p.deps.Classifier.Process(ctx, classify.Input{Title: e.Title, Body: body, Category: src.Category})
	if out.Classification == news.Harmful {
		log.Info("discarded as harmful", "reason", out.Reason)
		run.Blocked()
		return
	}

	a := &news.Article{
		Fingerprint:    fp,
		Title:          e.Title,
		OriginalBody:   body,
		SourceURL:      e.Link,
		SourceName:     src.SourceName,
		ImageURL:       image,
		CategoryID:     categoryID,
		PublishedAt:    e.PublishedAt,
		Classification: out.Classification,
		Headline:       out.Headline,
		Summary:        out.Summary,
		Sentiment:      out.Sentiment,
		SentimentScore: out.SentimentScore,
		IsAIRewritten:  out.IsAIRewritten,
	}
	id, err := p.deps.Store.Insert(ctx, a)
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		log.Debug("stored concurrently by another worker")
		run.Skipped()
	case err != nil:
		log.Error("failed to store article", "error", err)
		run.Failed()
	default:
		log.Info("article stored", "id", id, "classification", out.Classification, "rewritten", out.IsAIRewritten)
		run.Processed()
	}
}

func (p *Pipeline) seen(ctx context.Context, fp string, e news.Entry) (bool, error) {
	ok, err := p.deps.Store.ExistsByFingerprint(ctx, fp)
	if err != nil || ok {
		return ok, err
	}
	return p.deps.Store.ExistsByTitleAndURL(ctx, e.Title, e.Link)
}

// content prefers a long enough page scrape over the sanitized feed summary.
// The page image is returned even when the scraped text is not used.
func (p *Pipeline) content(ctx context.Context, log *slog.Logger, e news.Entry) (string, string) {
	summary := scraper.SanitizeHTML(e.Summary)
	if !p.opts.ScrapeFullArticles || p.deps.Scraper == nil || e.Link == "" {
		return summary, ""
	}
	page, err := p.deps.Scraper.Extract(ctx, e.Link)
	if err != nil {
		log.Debug("scrape failed, using feed summary", "error", err)
		return summary, ""
	}
	if len([]rune(page.Content)) > MinScrapedLength {
		return page.Content, page.ImageURL
	}
	return summary, page.ImageURL
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
