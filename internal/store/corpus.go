package store

import (
	"context"
	"fmt"
	"time"

	"chunky/internal/domain"
)

// SaveCorpus replaces the corpus stored under fingerprint. Chunks and vectors
// are written in one transaction so positions stay aligned.
func (s *Store) SaveCorpus(ctx context.Context, fingerprint, model string, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("corpus has %d chunks but %d vectors", len(chunks), len(vectors))
	}
	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE fingerprint = ?", fingerprint); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM corpora WHERE fingerprint = ?", fingerprint); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO corpora (fingerprint, model, dimension, created_at) VALUES (?, ?, ?, ?)",
		fingerprint, model, dim, time.Now().UnixMilli()); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO chunks (fingerprint, position, source, text, embedding) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range chunks {
		if _, err := stmt.ExecContext(ctx, fingerprint, i, c.Source, c.Text, encodeFloat32Slice(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LoadCorpus returns the chunks and vectors stored under fingerprint. ok is
// false when nothing is stored.
func (s *Store) LoadCorpus(ctx context.Context, fingerprint string) (chunks []domain.Chunk, vectors [][]float32, ok bool, err error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM corpora WHERE fingerprint = ?", fingerprint).Scan(&count); err != nil {
		return nil, nil, false, err
	}
	if count == 0 {
		return nil, nil, false, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT position, source, text, embedding FROM chunks WHERE fingerprint = ? ORDER BY position", fingerprint)
	if err != nil {
		return nil, nil, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.Chunk
		var blob []byte
		if err := rows.Scan(&c.Index, &c.Source, &c.Text, &blob); err != nil {
			return nil, nil, false, err
		}
		v, err := decodeFloat32Slice(blob)
		if err != nil {
			return nil, nil, false, fmt.Errorf("chunk %d: %w", c.Index, err)
		}
		chunks = append(chunks, c)
		vectors = append(vectors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, false, err
	}
	return chunks, vectors, true, nil
}

// PruneCorpora deletes every stored corpus except keep.
func (s *Store) PruneCorpora(ctx context.Context, keep string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE fingerprint <> ?", keep); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM corpora WHERE fingerprint <> ?", keep)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}
