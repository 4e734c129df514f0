package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func wikiServer(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "query", q.Get("action"))
		assert.Equal(t, "extracts", q.Get("prop"))
		assert.Equal(t, "1", q.Get("explaintext"))
		assert.Equal(t, "chunky-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		switch q.Get("titles") {
		case "Go":
			_, _ = w.Write([]byte(`{"query":{"pages":[{"pageid":1,"title":"Go","extract":"Go is a language."}]}}`))
		case "Rust":
			_, _ = w.Write([]byte(`{"query":{"pages":[{"pageid":2,"title":"Rust","extract":"Rust is a language."}]}}`))
		default:
			_, _ = w.Write([]byte(`{"query":{"pages":[{"ns":0,"title":"Nope","missing":true}]}}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestWikipedia_LoadAndCache(t *testing.T) {
	srv, calls := wikiServer(t)
	cache := filepath.Join(t.TempDir(), "data", "wiki.txt")
	w := NewWikipedia(Config{UserAgent: "chunky-test", WikipediaCache: cache, WikipediaEndpoint: srv.URL}, srv.Client(), zap.NewNop())

	text, err := w.Load(context.Background(), []string{"Go", "Nope", "Rust"})
	require.NoError(t, err)
	assert.Equal(t, "Go is a language.\n\nRust is a language.", text)
	assert.Equal(t, int32(3), calls.Load())

	data, err := os.ReadFile(cache)
	require.NoError(t, err)
	assert.Equal(t, text, string(data))

	again, err := w.Load(context.Background(), []string{"Go", "Nope", "Rust"})
	require.NoError(t, err)
	assert.Equal(t, text, again)
	assert.Equal(t, int32(3), calls.Load(), "cached load must not hit the API")
}

func TestWikipedia_CacheKeyedOnTopics(t *testing.T) {
	srv, calls := wikiServer(t)
	cache := filepath.Join(t.TempDir(), "wiki.txt")
	w := NewWikipedia(Config{UserAgent: "chunky-test", WikipediaCache: cache, WikipediaEndpoint: srv.URL}, srv.Client(), zap.NewNop())

	text, err := w.Load(context.Background(), []string{"Go"})
	require.NoError(t, err)
	assert.Equal(t, "Go is a language.", text)

	text, err = w.Load(context.Background(), []string{"Rust"})
	require.NoError(t, err)
	assert.Equal(t, "Rust is a language.", text)
	assert.Equal(t, int32(2), calls.Load())

	data, err := os.ReadFile(cache)
	require.NoError(t, err)
	assert.Equal(t, "Rust is a language.", string(data))
}

func TestWikipedia_UnkeyedCacheIsRefetched(t *testing.T) {
	srv, calls := wikiServer(t)
	cache := filepath.Join(t.TempDir(), "wiki.txt")
	require.NoError(t, os.WriteFile(cache, []byte("stale text"), 0o644))
	w := NewWikipedia(Config{UserAgent: "chunky-test", WikipediaCache: cache, WikipediaEndpoint: srv.URL}, srv.Client(), zap.NewNop())

	text, err := w.Load(context.Background(), []string{"Go"})
	require.NoError(t, err)
	assert.Equal(t, "Go is a language.", text)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWikipedia_NoArticles(t *testing.T) {
	srv, _ := wikiServer(t)
	cache := filepath.Join(t.TempDir(), "wiki.txt")
	w := NewWikipedia(Config{UserAgent: "chunky-test", WikipediaCache: cache, WikipediaEndpoint: srv.URL}, srv.Client(), zap.NewNop())

	_, err := w.Load(context.Background(), []string{"Nope"})
	assert.ErrorIs(t, err, ErrNoArticles)
	assert.NoFileExists(t, cache)
}

func TestLoadText_HTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><style>p{}</style></head><body>
<nav><p>menu</p></nav>
<main><h1>Title</h1><p>First   paragraph.</p><script>var x;</script><p>Second paragraph.</p></main>
</body></html>`))
	}))
	defer srv.Close()

	text, err := LoadText(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Title\n\nFirst paragraph.\n\nSecond paragraph.", text)
}

func TestLoadText_PlainAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("raw text"))
		case "/bin":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write([]byte{0, 1})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	text, err := LoadText(ctx, srv.Client(), srv.URL+"/plain")
	require.NoError(t, err)
	assert.Equal(t, "raw text", text)

	_, err = LoadText(ctx, srv.Client(), srv.URL+"/bin")
	assert.ErrorContains(t, err, "unsupported content type")

	_, err = LoadText(ctx, srv.Client(), srv.URL+"/missing")
	assert.ErrorContains(t, err, "404")
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("beta"), 0o644))
	srv, _ := wikiServer(t)

	l := New(Config{UserAgent: "chunky-test", WikipediaEndpoint: srv.URL}, nil)
	docs, err := l.Load(context.Background(), Sources{
		Topics: []string{"Go"},
		Files:  []string{filepath.Join(dir, "*.txt")},
	})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "wikipedia:Go", docs[0].Source)
	assert.Equal(t, "Go is a language.", docs[0].Content)
	assert.Equal(t, "alpha", docs[1].Content)
	assert.Equal(t, "beta", docs[2].Content)
	assert.NotEqual(t, docs[1].ID, docs[2].ID)

	_, err = l.Load(context.Background(), Sources{Files: []string{filepath.Join(dir, "missing.txt")}})
	assert.Error(t, err)
}

func TestLoader_LoadChangedTopics(t *testing.T) {
	srv, _ := wikiServer(t)
	cache := filepath.Join(t.TempDir(), "wiki.txt")
	l := New(Config{UserAgent: "chunky-test", WikipediaEndpoint: srv.URL, WikipediaCache: cache}, nil)

	_, err := l.Load(context.Background(), Sources{Topics: []string{"Go"}})
	require.NoError(t, err)
	docs, err := l.Load(context.Background(), Sources{Topics: []string{"Rust"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "wikipedia:Rust", docs[0].Source)
	assert.Equal(t, "Rust is a language.", docs[0].Content)
}

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.md"), nil, 0o644))

	got := Files([]string{filepath.Join(dir, "*.md"), "https://example.com/page", "nothing-*.txt"})
	assert.Equal(t, []string{filepath.Join(dir, "x.md"), "https://example.com/page", "nothing-*.txt"}, got)
}
