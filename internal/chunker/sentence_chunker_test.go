package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunky/internal/domain"
)

func TestSentenceChunker_Overlap(t *testing.T) {
	c := NewSentenceChunker(2, 1)
	chunks, err := c.Chunk(domain.Document{Source: "s", Content: "One. Two! Three? Four."})
	require.NoError(t, err)

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		texts[i] = ch.Text
	}
	assert.Equal(t, []string{"One. Two!", "Two! Three?", "Three? Four."}, texts)
}

func TestSentenceChunker_NoPunctuation(t *testing.T) {
	chunks, err := NewSentenceChunker(3, 0).Chunk(domain.Document{Content: "  no terminal mark  "})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "no terminal mark", chunks[0].Text)
}

func TestSentenceChunker_Empty(t *testing.T) {
	chunks, err := NewSentenceChunker(3, 1).Chunk(domain.Document{Content: " \n "})
	require.NoError(t, err)
	assert.Nil(t, chunks)
}

func TestSentenceChunker_OverlapClamped(t *testing.T) {
	c := NewSentenceChunker(2, 5)
	chunks, err := c.Chunk(domain.Document{Content: "A. B. C."})
	require.NoError(t, err)
	assert.Len(t, chunks, 2)
}
