package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunky/internal/domain"
)

type stubRetriever struct {
	results []domain.SearchResult
	err     error
	asked   []string
}

func (s *stubRetriever) Search(_ context.Context, query string, k int) ([]domain.SearchResult, error) {
	return s.results, s.err
}

func (s *stubRetriever) Respond(_ context.Context, question string, results []domain.SearchResult) (string, error) {
	s.asked = append(s.asked, question)
	return "cats sit on mats", nil
}

func ready(t *testing.T, svc Retriever, opts Options) Model {
	t.Helper()
	m := New(context.Background(), svc, "3 chunks", opts)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	return next.(Model)
}

func enter(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return next.(Model), cmd
}

func TestModel_SearchThenAnswer(t *testing.T) {
	svc := &stubRetriever{results: []domain.SearchResult{
		{Chunk: domain.Chunk{Text: "the cat sat. the dog ran."}, Score: 0.9},
		{Chunk: domain.Chunk{Text: "a bird flew."}, Score: 0.1},
	}}
	m := ready(t, svc, Options{TopK: 2})

	m, cmd := enter(t, m, "cat")
	require.NotNil(t, cmd)
	assert.True(t, m.busy)
	assert.Equal(t, "cat", m.lastQuery)

	next, cmd := m.Update(m.search("cat")())
	m = next.(Model)
	require.Len(t, m.results, 2)
	require.NotNil(t, cmd)

	next, _ = m.Update(cmd())
	m = next.(Model)
	assert.False(t, m.busy)
	assert.Equal(t, "cats sit on mats", m.answer)
	assert.Equal(t, []string{"cat"}, svc.asked)
	assert.Contains(t, m.renderContent(), "Match 1/2")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, next.(Model).cursor)
}

func TestModel_NoAnswerAndErrors(t *testing.T) {
	svc := &stubRetriever{results: []domain.SearchResult{{Chunk: domain.Chunk{Text: "x."}, Score: 1}}}
	m := ready(t, svc, Options{NoAnswer: true})

	m, _ = enter(t, m, "x")
	next, cmd := m.Update(m.search("x")())
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.False(t, m.busy)
	assert.Empty(t, svc.asked)

	svc.err = errors.New("index is empty")
	m, _ = enter(t, m, "y")
	next, _ = m.Update(m.search("y")())
	m = next.(Model)
	assert.Contains(t, m.status, "index is empty")
	assert.Nil(t, m.results)
}

func TestModel_StaleResultsIgnored(t *testing.T) {
	m := ready(t, &stubRetriever{}, Options{})
	m.lastQuery = "new"
	next, cmd := m.Update(resultsMsg{query: "old", results: []domain.SearchResult{{}}})
	assert.Nil(t, cmd)
	assert.Nil(t, next.(Model).results)
}

func TestModel_ExitQuits(t *testing.T) {
	m := ready(t, &stubRetriever{}, Options{})
	_, cmd := enter(t, m, "exit")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestHighlightBestSentence(t *testing.T) {
	out := highlightBestSentence("The dog ran. The cat sat.", "cat")
	assert.Contains(t, out, "The dog ran.")
	assert.Contains(t, out, "The cat sat.")
	assert.Equal(t, "", highlightBestSentence("", "cat"))
}

func TestHighlightBestSentence_KeepsUnterminatedTail(t *testing.T) {
	out := highlightBestSentence("First sentence. and the tail cut mid wo", "tail")
	assert.Contains(t, out, "First sentence.")
	assert.Contains(t, out, "and the tail cut mid wo")

	out = highlightBestSentence("First sentence. and the tail cut mid wo", "first")
	assert.Contains(t, out, "and the tail cut mid wo")

	assert.Equal(t, "no terminator at all", highlightBestSentence("  no terminator at all ", ""))
	assert.Equal(t, "A. B.", highlightBestSentence("A. B. ", ""))
}
