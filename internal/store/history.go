package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Interaction is one answered question.
type Interaction struct {
	ID        string
	Question  string
	Answer    string
	Matches   int
	CreatedAt time.Time
}

// RecordInteraction stores a question with its answer and returns the entry.
func (s *Store) RecordInteraction(ctx context.Context, question, answer string, matches int) (Interaction, error) {
	it := Interaction{
		ID:        uuid.NewString(),
		Question:  question,
		Answer:    answer,
		Matches:   matches,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO interactions (id, question, answer, matches, created_at) VALUES (?, ?, ?, ?, ?)",
		it.ID, it.Question, it.Answer, it.Matches, it.CreatedAt.UnixMilli())
	if err != nil {
		return Interaction{}, err
	}
	return it, nil
}

// ListInteractions returns the most recent interactions first. limit <= 0
// returns all of them.
func (s *Store) ListInteractions(ctx context.Context, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, question, answer, matches, created_at FROM interactions ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var it Interaction
		var ms int64
		if err := rows.Scan(&it.ID, &it.Question, &it.Answer, &it.Matches, &ms); err != nil {
			return nil, err
		}
		it.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, it)
	}
	return out, rows.Err()
}
