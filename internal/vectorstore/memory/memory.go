package memory

import (
	"container/heap"
	"context"
	"fmt"

	"chunky/internal/domain"
	"chunky/internal/vectorstore"
)

// Index is an immutable flat inner-product index over unit vectors.
// Search is safe for concurrent use once Build has returned.
type Index struct {
	dimension int
	vectors   [][]float32
}

// Build normalizes every vector and returns an index whose positions follow
// the input order. The input slices are not modified.
func Build(vectors [][]float32) (*Index, error) {
	dim, err := vectorstore.Validate(vectors)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}
	normalized := make([][]float32, len(vectors))
	for i, v := range vectors {
		n, err := vectorstore.Normalize(v)
		if err != nil {
			return nil, fmt.Errorf("build index: vector %d: %w", i, err)
		}
		normalized[i] = n
	}
	return &Index{dimension: dim, vectors: normalized}, nil
}

// Len returns the number of indexed vectors.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.vectors)
}

// Dimension returns the shared vector dimension.
func (ix *Index) Dimension() int { return ix.dimension }

// Search returns up to k candidates ordered by descending cosine similarity,
// ties broken by ascending position. The query is normalized internally.
func (ix *Index) Search(_ context.Context, query []float32, k int) ([]domain.Candidate, error) {
	if ix.Len() == 0 {
		return nil, vectorstore.ErrEmptyIndex
	}
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("query has %d components, index has %d: %w", len(query), ix.dimension, vectorstore.ErrDimensionMismatch)
	}
	q, err := vectorstore.Normalize(query)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	k = vectorstore.ClampK(k, len(ix.vectors))
	if k == 0 {
		return []domain.Candidate{}, nil
	}

	pq := make(candidateQueue, 0, k+1)
	for pos, v := range ix.vectors {
		score, _ := vectorstore.Dot(q, v)
		pq.pushWithLimit(domain.Candidate{Position: pos, Score: clamp(score)}, k)
	}

	results := make([]domain.Candidate, pq.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(&pq).(domain.Candidate)
	}
	return results, nil
}

// clamp keeps rounding error from pushing a cosine outside [-1, 1].
func clamp(s float64) float64 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// Builder builds in-memory indexes.
type Builder struct{}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Build(_ context.Context, vectors [][]float32) (vectorstore.Index, error) {
	ix, err := Build(vectors)
	if err != nil {
		return nil, err
	}
	return ix, nil
}
