// Package rss loads the feed source registry and fetches feed entries.
package rss

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/deusflow/joyfeed/internal/news"
	"github.com/deusflow/joyfeed/internal/retry"
	"github.com/deusflow/joyfeed/internal/scraper"
	"github.com/mmcdole/gofeed"
)

const (
	DefaultMaxEntries = 10
	DefaultTimeout    = 15 * time.Second
)

// FetchError marks a network or parse failure for a whole source.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

type FetcherOptions struct {
	Timeout    time.Duration
	MaxEntries int
	Retry      retry.RetryConfig
	Client     *http.Client
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	opts FetcherOptions
	log  *slog.Logger
}

func NewFetcher(opts FetcherOptions, log *slog.Logger) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = DefaultMaxEntries
	}
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry = retry.RetryConfig{MaxAttempts: 2, Delay: time.Second, Backoff: true}
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{opts: opts, log: log}
}

// Fetch returns at most MaxEntries entries of src. Every attempt is bounded
// by the fetch timeout and attempts are bounded by the retry policy.
func (f *Fetcher) Fetch(ctx context.Context, src Source) ([]news.Entry, error) {
	var feed *gofeed.Feed
	err := retry.WithRetry(ctx, f.opts.Retry, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
		defer cancel()

		parser := gofeed.NewParser()
		parser.Client = f.opts.Client
		parsed, err := parser.ParseURLWithContext(src.URL, attemptCtx)
		if err != nil {
			if permanent(err) {
				return retry.Permanent(err)
			}
			return err
		}
		feed = parsed
		return nil
	})
	if err != nil {
		return nil, &FetchError{Source: src.SourceName, Err: err}
	}

	items := feed.Items
	if len(items) > f.opts.MaxEntries {
		items = items[:f.opts.MaxEntries]
	}
	entries := make([]news.Entry, 0, len(items))
	for _, it := range items {
		entries = append(entries, toEntry(it))
	}
	f.log.Info("feed loaded", "source", src.SourceName, "entries", len(entries), "available", len(feed.Items))
	return entries, nil
}

// permanent reports errors a retry cannot fix: unparseable feeds and 4xx responses.
func permanent(err error) bool {
	if errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		return true
	}
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500
	}
	return false
}

func toEntry(it *gofeed.Item) news.Entry {
	e := news.Entry{
		Title:         strings.TrimSpace(it.Title),
		Link:          strings.TrimSpace(it.Link),
		PublishedDate: it.Published,
		Summary:       it.Description,
		Content:       it.Content,
		ImageURL:      ItemImage(it),
	}
	if e.PublishedDate == "" {
		e.PublishedDate = it.Updated
	}
	switch {
	case it.PublishedParsed != nil:
		e.PublishedAt = *it.PublishedParsed
	case it.UpdatedParsed != nil:
		e.PublishedAt = *it.UpdatedParsed
	}
	if e.Summary == "" {
		e.Summary = it.Content
	}
	return e
}

// ItemImage picks the entry image: media:content with an image type,
// media:thumbnail, the item image, an image enclosure, then the first <img>
// in the summary.
func ItemImage(it *gofeed.Item) string {
	if media, ok := it.Extensions["media"]; ok {
		for _, c := range media["content"] {
			typ, medium := c.Attrs["type"], c.Attrs["medium"]
			if c.Attrs["url"] != "" && (strings.HasPrefix(typ, "image/") || medium == "image") {
				return c.Attrs["url"]
			}
		}
		for _, th := range media["thumbnail"] {
			if th.Attrs["url"] != "" {
				return th.Attrs["url"]
			}
		}
	}
	if it.Image != nil && it.Image.URL != "" {
		return it.Image.URL
	}
	for _, enc := range it.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	if img := scraper.FirstImage(it.Description); img != "" {
		return img
	}
	return scraper.FirstImage(it.Content)
}
