package httpfetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragcrawld/ragcrawld/internal/crawl/httpfetch"
	"github.com/ragcrawld/ragcrawld/internal/crawl/orchestrate"
)

func TestFetchRendersTextAndLinks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Title</h1><p>Hello <b>world</b></p><a href="/next">Next</a></body></html>`))
	}))
	defer srv.Close()

	factory := httpfetch.NewFactory(httpfetch.Config{})
	fetcher := factory.NewFetcher(orchestrate.StealthConfig{})

	page, err := fetcher.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Contains(t, page.Markdown, "Title")
	assert.Contains(t, page.Markdown, "Hello world")
	require.Len(t, page.Links, 1)
	assert.Contains(t, page.Links[0], "/next")
}

func TestFetchReturnsErrorOnHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	factory := httpfetch.NewFactory(httpfetch.Config{})
	fetcher := factory.NewFetcher(orchestrate.StealthConfig{})

	_, err := fetcher.Fetch(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}

func TestNewFetcherAppliesStealthUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`<html><body>ok</body></html>`))
	}))
	defer srv.Close()

	factory := httpfetch.NewFactory(httpfetch.Config{})
	fetcher := factory.NewFetcher(orchestrate.StealthConfig{Enabled: true})

	_, err := fetcher.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Contains(t, gotUA, "Chrome")
}
