package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"

	"chunky/internal/domain"
)

var (
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	ErrDegenerateVector  = errors.New("zero-norm vector")
	ErrEmptyIndex        = errors.New("index is empty")
)

// Index answers k-nearest-neighbour queries over vectors whose positions
// match the chunk sequence they were built from.
type Index interface {
	Search(ctx context.Context, query []float32, k int) ([]domain.Candidate, error)
	Len() int
}

// Builder creates an Index from an ordered sequence of embedding vectors.
type Builder interface {
	Build(ctx context.Context, vectors [][]float32) (Index, error)
}

// Validate checks that vectors is non-empty, uniformly sized and free of
// zero vectors. It returns the shared dimension.
func Validate(vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, ErrEmptyIndex
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, fmt.Errorf("vector 0: %w", ErrDegenerateVector)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, fmt.Errorf("vector %d has %d components, want %d: %w", i, len(v), dim, ErrDimensionMismatch)
		}
		if Norm(v) == 0 {
			return 0, fmt.Errorf("vector %d: %w", i, ErrDegenerateVector)
		}
	}
	return dim, nil
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Normalize returns a unit-length copy of v.
func Normalize(v []float32) ([]float32, error) {
	n := Norm(v)
	if n == 0 || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, ErrDegenerateVector
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / n)
	}
	return out, nil
}

// Dot returns the inner product of two equally sized vectors.
func Dot(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, nil
}

// ClampK bounds k to [0, size].
func ClampK(k, size int) int {
	if k < 0 {
		return 0
	}
	if k > size {
		return size
	}
	return k
}
