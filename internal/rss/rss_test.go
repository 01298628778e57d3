package rss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deusflow/joyfeed/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
<title>Example</title>
<item>
  <title>City opens new park</title>
  <link>https://x/1</link>
  <pubDate>Wed, 01 Jan 2025 10:00:00 GMT</pubDate>
  <description>&lt;p&gt;A new park opened today.&lt;/p&gt;</description>
  <media:content url="https://img.example.com/park.jpg" type="image/jpeg"/>
</item>
<item>
  <title>Library extends hours</title>
  <link>https://x/2</link>
  <pubDate>Wed, 01 Jan 2025 09:00:00 GMT</pubDate>
  <description>&lt;img src="https://img.example.com/lib.png"&gt; Longer opening times.</description>
</item>
<item>
  <title>Third</title>
  <link>https://x/3</link>
  <description>No image here.</description>
  <enclosure url="https://img.example.com/third.jpg" type="image/jpeg" length="1"/>
</item>
</channel>
</rss>`

func fastRetry() retry.RetryConfig {
	return retry.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, feedXML)
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{MaxEntries: 2, Retry: fastRetry()}, nil)
	entries, err := f.Fetch(context.Background(), Source{URL: srv.URL, SourceName: "Example"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "City opens new park", entries[0].Title)
	assert.Equal(t, "https://x/1", entries[0].Link)
	assert.Equal(t, "Wed, 01 Jan 2025 10:00:00 GMT", entries[0].PublishedDate)
	assert.Equal(t, 2025, entries[0].PublishedAt.Year())
	assert.Equal(t, "https://img.example.com/park.jpg", entries[0].ImageURL)
	assert.Equal(t, "https://img.example.com/lib.png", entries[1].ImageURL)
}

func TestFetch_EnclosureImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML)
	}))
	defer srv.Close()

	entries, err := NewFetcher(FetcherOptions{Retry: fastRetry()}, nil).Fetch(context.Background(), Source{URL: srv.URL})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "https://img.example.com/third.jpg", entries[2].ImageURL)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, feedXML)
	}))
	defer srv.Close()

	entries, err := NewFetcher(FetcherOptions{Retry: fastRetry()}, nil).Fetch(context.Background(), Source{URL: srv.URL})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(FetcherOptions{Retry: fastRetry()}, nil).Fetch(context.Background(), Source{URL: srv.URL, SourceName: "gone"})
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "gone", fe.Source)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	f := NewFetcher(FetcherOptions{Timeout: 20 * time.Millisecond, Retry: retry.RetryConfig{MaxAttempts: 1}}, nil)
	_, err := f.Fetch(context.Background(), Source{URL: srv.URL})
	var fe *FetchError
	assert.ErrorAs(t, err, &fe)
}

func TestSourceValidate(t *testing.T) {
	tests := []struct {
		name string
		src  Source
		ok   bool
	}{
		{"valid", Source{URL: "https://a/rss", Category: "General", SourceName: "A"}, true},
		{"missing url", Source{Category: "General", SourceName: "A"}, false},
		{"ftp url", Source{URL: "ftp://a/rss", Category: "General", SourceName: "A"}, false},
		{"missing category", Source{URL: "https://a/rss", SourceName: "A"}, false},
		{"missing name", Source{URL: "https://a/rss", Category: "General"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.src.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidSource)
			}
		})
	}
}

func TestLoadSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
general:
  - url: https://a/rss
    category: General
    source_name: A
  - url: https://b/rss
    category: General
    source_name: B
    enabled: false
  - url: not-a-url
    category: General
    source_name: C
    enabled: true
education:
  - url: https://d/rss
    category: Education
    source_name: D
    enabled: true
`), 0o644))

	reg, err := LoadSources(path)
	require.NoError(t, err)
	active := reg.Active(nil)
	require.Len(t, active, 2)
	assert.Equal(t, "A", active[0].SourceName)
	assert.Equal(t, "D", active[1].SourceName)
}

func TestLoadSources_Errors(t *testing.T) {
	_, err := LoadSources(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("general: [unclosed"), 0o644))
	_, err = LoadSources(path)
	assert.Error(t, err)
}

func TestShippedSourcesFile(t *testing.T) {
	reg, err := LoadSources(filepath.Join("..", "..", "configs", "sources.yaml"))
	require.NoError(t, err)
	active := reg.Active(nil)
	assert.NotEmpty(t, active)
	for _, s := range active {
		assert.NoError(t, s.Validate())
	}
}
