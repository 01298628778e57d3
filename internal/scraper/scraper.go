// Package scraper fetches article pages as a fallback when a feed entry
// carries too little text.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	// ContentLimit caps scraped text.
	ContentLimit = 8000
	// MinContentLength is the shortest scrape treated as real content.
	MinContentLength = 100

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// ArticleContent is what a page scrape yields. Content is empty when the
// page had no usable text; ImageURL may still be set.
type ArticleContent struct {
	Title    string
	Content  string
	URL      string
	ImageURL string
}

type Scraper struct {
	client *http.Client
}

func New(timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scraper{client: &http.Client{Timeout: timeout}}
}

// NewWithClient is used by tests to point at an httptest server.
func NewWithClient(client *http.Client) *Scraper {
	return &Scraper{client: client}
}

// Extract downloads pageURL and pulls the article text and lead image.
func (s *Scraper) Extract(ctx context.Context, pageURL string) (*ArticleContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}

	out := &ArticleContent{
		Title:    extractTitle(doc),
		URL:      pageURL,
		ImageURL: extractImage(doc, pageURL),
	}
	doc.Find("script, style, nav, header, footer, aside, form").Remove()
	if text := extractContent(doc); len([]rune(text)) > MinContentLength {
		out.Content = truncate(text, ContentLimit)
	}
	return out, nil
}

var contentSelectors = []string{
	"article", `[role="main"]`, ".article-content", ".post-content",
	".entry-content", ".content", ".story-body", ".article-body",
	"main", ".main-content", "#content", ".post",
}

// extractContent joins the paragraphs of the first matching container,
// falling back to body.
func extractContent(doc *goquery.Document) string {
	container := doc.Find("body")
	for _, sel := range contentSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			container = found
			break
		}
	}

	var paragraphs []string
	container.Find("p").Each(func(i int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return normalizeSpace(container.Text())
	}
	return normalizeSpace(strings.Join(paragraphs, " "))
}

func extractTitle(doc *goquery.Document) string {
	for _, sel := range []string{"h1", "title", ".article-title", ".headline", ".entry-title"} {
		if title := strings.TrimSpace(doc.Find(sel).First().Text()); title != "" {
			return title
		}
	}
	return ""
}

var imageSelectors = []string{
	`meta[property="og:image"]`,
	`meta[name="twitter:image"]`,
	"article img",
	".article-content img",
	".story-body img",
	"main img",
	"figure img",
	".featured-image img",
}

// extractImage returns the lead image resolved against pageURL.
func extractImage(doc *goquery.Document, pageURL string) string {
	for _, sel := range imageSelectors {
		el := doc.Find(sel).First()
		if el.Length() == 0 {
			continue
		}
		src, ok := el.Attr("content")
		if !ok || src == "" {
			src, ok = el.Attr("src")
		}
		if ok && src != "" {
			return resolve(pageURL, src)
		}
	}
	return ""
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// SanitizeHTML strips markup from a feed summary and normalizes whitespace.
func SanitizeHTML(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return normalizeSpace(html)
	}
	return normalizeSpace(doc.Text())
}

// FirstImage returns the src of the first <img> in an HTML fragment.
func FirstImage(html string) string {
	if !strings.Contains(html, "<img") {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	src, _ := doc.Find("img[src]").First().Attr("src")
	return strings.TrimSpace(src)
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
