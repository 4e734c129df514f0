package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunky/internal/vectorstore"
)

// fakeQdrant keeps a set of collections with their point counts.
type fakeQdrant struct {
	mu          sync.Mutex
	requests    []string
	collections map[string]int
	apiKey      string
	failUpsert  bool
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{collections: map[string]int{}}
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.apiKey = r.Header.Get("api-key")

	rest, ok := strings.CutPrefix(r.URL.Path, "/collections/")
	if !ok {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	name, sub, _ := strings.Cut(rest, "/")
	_, exists := f.collections[name]

	switch {
	case sub == "" && r.Method == http.MethodDelete:
		if !exists {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.collections, name)
		_, _ = w.Write([]byte(`{"result":true}`))
	case sub == "" && r.Method == http.MethodPut:
		f.collections[name] = 0
		_, _ = w.Write([]byte(`{"result":true}`))
	case !exists:
		w.WriteHeader(http.StatusNotFound)
	case sub == "points" && r.Method == http.MethodPut:
		if f.failUpsert {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var body struct {
			Points []map[string]any `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.collections[name] += len(body.Points)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	case sub == "points/search" && r.Method == http.MethodPost:
		_, _ = w.Write([]byte(`{"result":[{"id":2,"score":0.97},{"id":0,"score":0.4}]}`))
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *fakeQdrant) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for name := range f.collections {
		out = append(out, name)
	}
	return out
}

func TestStorage_BuildAndSearch(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL + "/", APIKey: "secret", Collection: "test"})
	ctx := context.Background()

	ix, err := s.Build(ctx, [][]float32{{1, 0}, {0, 1}, {1, 1}})
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, "secret", fake.apiKey)

	name := ix.(*index).collection
	assert.True(t, strings.HasPrefix(name, "test-"), name)
	assert.Equal(t, map[string]int{name: 3}, fake.collections)

	got, err := ix.Search(ctx, []float32{2, 2}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Position)
	assert.InDelta(t, 0.97, got[0].Score, 1e-9)

	assert.Equal(t, []string{
		"PUT /collections/" + name,
		"PUT /collections/" + name + "/points",
		"POST /collections/" + name + "/points/search",
	}, fake.requests)
}

func TestStorage_RebuildDropsPreviousCollection(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "test"})
	ctx := context.Background()

	first, err := s.Build(ctx, [][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)
	second, err := s.Build(ctx, [][]float32{{1, 0}, {0, 1}, {1, 1}})
	require.NoError(t, err)

	assert.NotEqual(t, first.(*index).collection, second.(*index).collection)
	assert.Equal(t, []string{second.(*index).collection}, fake.names())
	assert.Equal(t, 2, first.Len())
	assert.Equal(t, 3, second.Len())
}

func TestStorage_FailedRebuildKeepsPreviousIndex(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "test"})
	ctx := context.Background()

	old, err := s.Build(ctx, [][]float32{{1, 0}, {0, 1}, {1, 1}})
	require.NoError(t, err)
	oldName := old.(*index).collection

	fake.mu.Lock()
	fake.failUpsert = true
	fake.mu.Unlock()

	_, err = s.Build(ctx, [][]float32{{1, 0, 0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")

	// the unfinished collection is removed, the old one untouched
	assert.Equal(t, []string{oldName}, fake.names())
	assert.Equal(t, 3, old.Len())
	got, err := old.Search(ctx, []float32{1, 1}, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	fake.mu.Lock()
	fake.failUpsert = false
	fake.mu.Unlock()

	next, err := s.Build(ctx, [][]float32{{1}})
	require.NoError(t, err)
	assert.Equal(t, []string{next.(*index).collection}, fake.names())
}

func TestStorage_Validation(t *testing.T) {
	s := NewStorage(Config{URL: "http://127.0.0.1:1", Collection: "test"})
	ctx := context.Background()

	_, err := s.Build(ctx, [][]float32{{1, 0}, {1}})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	_, err = s.Build(ctx, nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyIndex)

	ix := &index{storage: s, collection: "test-x", dimension: 2, size: 2}
	_, err = ix.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
	_, err = ix.Search(ctx, []float32{0, 0}, 1)
	assert.ErrorIs(t, err, vectorstore.ErrDegenerateVector)

	empty := &index{storage: s, collection: "test-y"}
	_, err = empty.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyIndex)
}

func TestStorage_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewStorage(Config{URL: srv.URL, Collection: "test"}).Build(context.Background(), [][]float32{{1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
