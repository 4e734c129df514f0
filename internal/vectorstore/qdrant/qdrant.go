package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"chunky/internal/domain"
	"chunky/internal/vectorstore"
)

const upsertBatchSize = 256

// Storage is a minimal REST client to Qdrant and the Builder for Qdrant
// backed indexes. Every Build uploads into a fresh collection named
// "<collection>-<id>", so an index handed out earlier keeps answering until
// a later Build has fully succeeded. Point IDs are chunk positions and the
// distance is cosine.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu      sync.Mutex
	current string
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "chunky"
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Build validates the vectors, uploads them into a new collection and only
// then drops the collection of the previous Build. On failure the new
// collection is removed and the previous index stays intact.
func (s *Storage) Build(ctx context.Context, vectors [][]float32) (vectorstore.Index, error) {
	dim, err := vectorstore.Validate(vectors)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	name := s.collection + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	if err := s.upload(ctx, name, dim, vectors); err != nil {
		if derr := s.drop(context.WithoutCancel(ctx), name); derr != nil {
			err = errors.Join(err, fmt.Errorf("drop unfinished collection: %w", derr))
		}
		return nil, err
	}

	s.mu.Lock()
	previous := s.current
	s.current = name
	s.mu.Unlock()
	if previous != "" {
		// A leftover collection wastes space but does not affect results.
		_ = s.drop(ctx, previous)
	}
	return &index{storage: s, collection: name, dimension: dim, size: len(vectors)}, nil
}

func (s *Storage) upload(ctx context.Context, name string, dim int, vectors [][]float32) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(name, ""), body, nil); err != nil {
		return err
	}
	for start := 0; start < len(vectors); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(vectors) {
			end = len(vectors)
		}
		points := make([]map[string]any, 0, end-start)
		for pos := start; pos < end; pos++ {
			points = append(points, map[string]any{
				"id":      pos,
				"vector":  vectors[pos],
				"payload": map[string]any{"position": pos},
			})
		}
		body := map[string]any{"points": points}
		if err := s.do(ctx, http.MethodPut, s.collectionURL(name, "/points?wait=true"), body, nil); err != nil {
			return fmt.Errorf("upsert points %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

// index is one uploaded collection. It is never modified after Build.
type index struct {
	storage    *Storage
	collection string
	dimension  int
	size       int
}

func (ix *index) Len() int { return ix.size }

// Search queries the collection for the k nearest positions.
func (ix *index) Search(ctx context.Context, query []float32, k int) ([]domain.Candidate, error) {
	if ix.size == 0 {
		return nil, vectorstore.ErrEmptyIndex
	}
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("query has %d components, index has %d: %w", len(query), ix.dimension, vectorstore.ErrDimensionMismatch)
	}
	q, err := vectorstore.Normalize(query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	k = vectorstore.ClampK(k, ix.size)
	if k == 0 {
		return []domain.Candidate{}, nil
	}

	req := map[string]any{
		"vector":       q,
		"limit":        k,
		"with_payload": false,
	}
	var resp struct {
		Result []struct {
			ID    int     `json:"id"`
			Score float64 `json:"score"`
		} `json:"result"`
	}
	if err := ix.storage.do(ctx, http.MethodPost, ix.storage.collectionURL(ix.collection, "/points/search"), req, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Candidate, 0, len(resp.Result))
	for _, r := range resp.Result {
		out = append(out, domain.Candidate{Position: r.ID, Score: r.Score})
	}
	return out, nil
}

func (s *Storage) drop(ctx context.Context, name string) error {
	err := s.do(ctx, http.MethodDelete, s.collectionURL(name, ""), nil, nil)
	var se *statusError
	if errors.As(err, &se) && se.code == http.StatusNotFound {
		return nil
	}
	return err
}

type statusError struct {
	method, url, status string
	code                int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.status)
}

func (s *Storage) collectionURL(name, suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, name, suffix)
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return &statusError{method: method, url: url, status: resp.Status, code: resp.StatusCode}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
