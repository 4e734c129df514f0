// Package embedding holds embedder decorators shared by the backends in its
// subpackages.
package embedding

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"chunky/internal/domain"
)

// Cached wraps an embedder and memoizes single-text embeddings, so repeated
// queries do not hit the backend again. Batch calls pass through.
type Cached struct {
	domain.Embedder
	cache *lru.Cache[string, []float32]
}

// NewCached returns next unchanged when size is not positive.
func NewCached(next domain.Embedder, size int) domain.Embedder {
	if size <= 0 {
		return next
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return next
	}
	return &Cached{Embedder: next, cache: cache}
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}

// Prepare drops cached vectors, which belong to the previous model state.
func (c *Cached) Prepare(ctx context.Context, corpus []string) error {
	c.cache.Purge()
	return c.Embedder.Prepare(ctx, corpus)
}
