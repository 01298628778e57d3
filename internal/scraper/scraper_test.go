package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<html><head>
<title>Page title</title>
<meta property="og:image" content="/img/lead.jpg">
<script>var tracking = "should never appear";</script>
</head><body>
<nav><p>Home | World | Sport</p></nav>
<article>
<h1>Volunteers restore river bank</h1>
<p>More than two hundred volunteers gathered on Saturday to replant the eroded river bank.</p>
<p>The project, funded by local businesses, will protect nearby homes from seasonal flooding for years.</p>
</article>
<footer><p>Subscribe to our newsletter</p></footer>
</body></html>`

func TestExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.UserAgent(), "Mozilla")
		fmt.Fprint(w, page)
	}))
	defer srv.Close()

	s := NewWithClient(srv.Client())
	got, err := s.Extract(context.Background(), srv.URL+"/news/1")
	require.NoError(t, err)

	assert.Equal(t, "Volunteers restore river bank", got.Title)
	assert.Equal(t, srv.URL+"/img/lead.jpg", got.ImageURL)
	assert.True(t, strings.HasPrefix(got.Content, "More than two hundred volunteers"))
	assert.Contains(t, got.Content, "seasonal flooding")
	assert.NotContains(t, got.Content, "Subscribe")
	assert.NotContains(t, got.Content, "tracking")
	assert.NotContains(t, got.Content, "  ")
}

func TestExtract_ShortContentIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><article><p>Too short.</p><img src="https://cdn.example.com/a.png"></article></body></html>`)
	}))
	defer srv.Close()

	got, err := NewWithClient(srv.Client()).Extract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, got.Content)
	assert.Equal(t, "https://cdn.example.com/a.png", got.ImageURL)
}

func TestExtract_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewWithClient(srv.Client()).Extract(context.Background(), srv.URL)
	assert.ErrorContains(t, err, "403")
}

func TestExtract_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := New(20 * time.Millisecond).Extract(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestSanitizeHTML(t *testing.T) {
	assert.Equal(t, "Hello world, again.", SanitizeHTML("<p>Hello <b>world</b>,</p>\n<p>again.</p>"))
	assert.Equal(t, "", SanitizeHTML("   "))
	assert.Equal(t, "plain text", SanitizeHTML("plain   text"))
}

func TestFirstImage(t *testing.T) {
	assert.Equal(t, "https://x/img.png", FirstImage(`<p>hi</p><img alt="" src=" https://x/img.png "><img src="second">`))
	assert.Empty(t, FirstImage("<p>no image</p>"))
}
