package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunky/internal/vectorstore"
)

const eps = 1e-6

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		vectors [][]float32
		want    error
	}{
		{name: "no vectors", vectors: nil, want: vectorstore.ErrEmptyIndex},
		{name: "dimension mismatch", vectors: [][]float32{{1, 0}, {1, 0, 0}}, want: vectorstore.ErrDimensionMismatch},
		{name: "zero vector", vectors: [][]float32{{1, 0}, {0, 0}}, want: vectorstore.ErrDegenerateVector},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.vectors)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuild_DoesNotMutateInput(t *testing.T) {
	in := [][]float32{{3, 4}}
	ix, err := Build(in)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, in[0])
	assert.Equal(t, 1, ix.Len())
	assert.Equal(t, 2, ix.Dimension())
}

func TestSearch_IdenticalVectorFirst(t *testing.T) {
	vectors := [][]float32{
		{1, 0, 1},
		{0, 1, 0},
		{0, 3, 4},
		{0, 1, 1},
	}
	ix, err := Build(vectors)
	require.NoError(t, err)

	for pos, v := range vectors {
		got, err := ix.Search(context.Background(), v, 2)
		require.NoError(t, err)
		require.NotEmpty(t, got)
		assert.Equal(t, pos, got[0].Position)
		assert.InDelta(t, 1.0, got[0].Score, eps)
	}
}

func TestSearch_Ordering(t *testing.T) {
	ix, err := Build([][]float32{
		{1, 0, 1},
		{0, 1, 0},
		{0, 3, 4},
		{0, 1, 1},
	})
	require.NoError(t, err)

	got, err := ix.Search(context.Background(), []float32{0, 1, 1}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].Position)
	assert.Equal(t, 2, got[1].Position)
	assert.GreaterOrEqual(t, got[0].Score, got[1].Score)
}

func TestSearch_QueryNotNormalized(t *testing.T) {
	ix, err := Build([][]float32{{1, 0}, {0, 1}})
	require.NoError(t, err)

	got, err := ix.Search(context.Background(), []float32{0, 250}, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Position)
	assert.InDelta(t, 1.0, got[0].Score, eps)
}

func TestSearch_KClamped(t *testing.T) {
	ix, err := Build([][]float32{{1, 0}, {0, 1}, {1, 1}})
	require.NoError(t, err)
	ctx := context.Background()

	for _, k := range []int{-1, 0, 1, 2, 3, 10} {
		got, err := ix.Search(ctx, []float32{1, 0}, k)
		require.NoError(t, err)
		want := vectorstore.ClampK(k, 3)
		assert.Len(t, got, want, "k=%d", k)
		for _, c := range got {
			assert.True(t, c.Position >= 0 && c.Position < ix.Len())
			assert.True(t, c.Score >= -1 && c.Score <= 1)
		}
	}
}

func TestSearch_TiesByPosition(t *testing.T) {
	ix, err := Build([][]float32{{0, 1}, {1, 0}, {2, 0}, {3, 0}})
	require.NoError(t, err)

	got, err := ix.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{got[0].Position, got[1].Position, got[2].Position})
}

func TestSearch_Errors(t *testing.T) {
	ctx := context.Background()

	var empty *Index
	_, err := empty.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyIndex)

	ix, err := Build([][]float32{{1, 0}})
	require.NoError(t, err)

	_, err = ix.Search(ctx, []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	_, err = ix.Search(ctx, []float32{0, 0}, 1)
	assert.ErrorIs(t, err, vectorstore.ErrDegenerateVector)
}

func TestSearch_Concurrent(t *testing.T) {
	ix, err := Build([][]float32{{1, 0}, {0, 1}, {1, 1}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := ix.Search(context.Background(), []float32{0, 1}, 1)
			assert.NoError(t, err)
			assert.Equal(t, 1, got[0].Position)
		}()
	}
	wg.Wait()
}

func TestBuilder(t *testing.T) {
	ix, err := NewBuilder().Build(context.Background(), [][]float32{{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Len())

	_, err = NewBuilder().Build(context.Background(), nil)
	assert.ErrorIs(t, err, vectorstore.ErrEmptyIndex)
}
