package tfidf

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func TestEmbedder_NotPrepared(t *testing.T) {
	_, err := NewEmbedder().Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestEmbedder_PrepareEmpty(t *testing.T) {
	assert.Error(t, NewEmbedder().Prepare(context.Background(), nil))
	assert.Error(t, NewEmbedder().Prepare(context.Background(), []string{"the and of"}))
}

func TestEmbedder_Embed(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()
	require.NoError(t, e.Prepare(ctx, []string{"the cat sat", "the dog ran", "a bird flew"}))

	// vocabulary: bird cat dog flew ran sat
	assert.Equal(t, 6, e.Dimension())
	assert.Equal(t, "tfidf", e.Name())

	v, err := e.Embed(ctx, "Cat!")
	require.NoError(t, err)
	require.Len(t, v, 6)
	assert.InDelta(t, 1.0, norm(v), 1e-6)
	assert.InDelta(t, 1.0, v[1], 1e-6)

	zero, err := e.Embed(ctx, "the unknown")
	require.NoError(t, err)
	assert.Zero(t, norm(zero))
}

func TestEmbedder_EmbedBatch(t *testing.T) {
	ctx := context.Background()
	e := NewEmbedder()
	require.NoError(t, e.Prepare(ctx, []string{"alpha beta", "beta gamma"}))

	out, err := e.EmbedBatch(ctx, []string{"alpha", "gamma", "beta"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, v := range out {
		assert.Len(t, v, e.Dimension())
	}
}
