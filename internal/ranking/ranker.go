// Package ranking turns nearest-neighbour candidates into ordered results.
package ranking

import (
	"errors"

	"go.uber.org/zap"

	"chunky/internal/domain"
)

// ErrNoValidResults is returned when no candidate refers to a known chunk.
var ErrNoValidResults = errors.New("no valid search results")

// Ranker resolves candidates against the chunk sequence and optionally
// replaces their similarity score with a booster score.
type Ranker struct {
	booster Booster
	logger  *zap.Logger
}

// NewRanker creates a ranker. A nil booster keeps the similarity scores.
func NewRanker(booster Booster, logger *zap.Logger) *Ranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{booster: booster, logger: logger}
}

// Rank emits one result per valid candidate, in candidate order.
//
// Out-of-range positions are skipped with a warning. When a booster is set
// its score overwrites the similarity score and the order is left untouched.
func (r *Ranker) Rank(candidates []domain.Candidate, chunks []domain.Chunk, query string) ([]domain.SearchResult, error) {
	results := make([]domain.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		if c.Position < 0 || c.Position >= len(chunks) {
			r.logger.Warn("skipping out-of-range candidate",
				zap.Int("position", c.Position),
				zap.Int("chunks", len(chunks)))
			continue
		}
		chunk := chunks[c.Position]
		score := c.Score
		if r.booster != nil {
			score = r.booster(chunk.Text, query)
		}
		results = append(results, domain.SearchResult{Chunk: chunk, Score: score})
	}
	if len(results) == 0 {
		return nil, ErrNoValidResults
	}
	return results, nil
}
