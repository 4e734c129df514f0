// Package service composes chunking, embedding, indexing, ranking and
// answering into the retrieval pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"chunky/internal/domain"
	"chunky/internal/ranking"
	"chunky/internal/store"
	"chunky/internal/vectorstore"
)

var (
	ErrNotIngested = errors.New("no corpus has been ingested")
	ErrNoDocuments = errors.New("no documents to ingest")
)

// DegeneratePolicy decides what happens to chunks whose embedding is a zero
// vector.
type DegeneratePolicy string

const (
	DegenerateAbort DegeneratePolicy = "abort"
	DegenerateSkip  DegeneratePolicy = "skip"
)

// Store is the persistence the service uses for cached embeddings and the
// question history. *store.Store implements it.
type Store interface {
	LoadCorpus(ctx context.Context, fingerprint string) ([]domain.Chunk, [][]float32, bool, error)
	SaveCorpus(ctx context.Context, fingerprint, model string, chunks []domain.Chunk, vectors [][]float32) error
	RecordInteraction(ctx context.Context, question, answer string, matches int) (store.Interaction, error)
}

type Deps struct {
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Builder    vectorstore.Builder
	Ranker     *ranking.Ranker
	Answerer   domain.Answerer
	Summarizer domain.Summarizer
	Store      Store
	Logger     *zap.Logger
}

type Options struct {
	Lowercase           bool
	OnDegenerate        DegeneratePolicy
	TopK                int
	SummaryMaxSentences int
	// LexicalFallback ranks chunks by token overlap when the query embeds to
	// a zero vector, which TF-IDF does for out-of-vocabulary queries.
	LexicalFallback bool
}

// IngestReport describes the corpus built by Ingest.
type IngestReport struct {
	Documents   int
	Chunks      int
	Skipped     int
	Cached      bool
	Fingerprint string
	Summary     string
}

// Answer is the result of Ask.
type Answer struct {
	Question string
	Results  []domain.SearchResult
	Text     string
}

type RAGService struct {
	deps Deps
	opts Options

	mu     sync.RWMutex
	chunks []domain.Chunk
	index  vectorstore.Index
}

func NewRAGService(deps Deps, opts Options) *RAGService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Ranker == nil {
		deps.Ranker = ranking.NewRanker(nil, deps.Logger)
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.OnDegenerate == "" {
		opts.OnDegenerate = DegenerateAbort
	}
	return &RAGService{deps: deps, opts: opts}
}

// Ingest chunks and embeds docs and replaces the current index.
func (s *RAGService) Ingest(ctx context.Context, docs []domain.Document) (IngestReport, error) {
	if len(docs) == 0 {
		return IngestReport{}, ErrNoDocuments
	}
	log := s.deps.Logger

	var chunks []domain.Chunk
	for _, d := range docs {
		docChunks, err := s.deps.Chunker.Chunk(d)
		if err != nil {
			return IngestReport{}, fmt.Errorf("chunk %s: %w", d.Source, err)
		}
		for _, c := range docChunks {
			c.Index = len(chunks)
			if s.opts.Lowercase {
				c.Text = strings.ToLower(c.Text)
			}
			chunks = append(chunks, c)
		}
	}
	if len(chunks) == 0 {
		return IngestReport{}, fmt.Errorf("%w: documents produced no chunks", ErrNoDocuments)
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	if err := s.deps.Embedder.Prepare(ctx, texts); err != nil {
		return IngestReport{}, fmt.Errorf("prepare embedder: %w", err)
	}
	fingerprint := store.Fingerprint(s.deps.Embedder.Name(), chunks)
	vectors, cached, err := s.embedCorpus(ctx, fingerprint, chunks, texts)
	if err != nil {
		return IngestReport{}, err
	}

	kept, keptVectors, skipped, err := s.applyDegeneratePolicy(chunks, vectors)
	if err != nil {
		return IngestReport{}, err
	}
	index, err := s.deps.Builder.Build(ctx, keptVectors)
	if err != nil {
		return IngestReport{}, fmt.Errorf("build index: %w", err)
	}

	s.mu.Lock()
	s.chunks = kept
	s.index = index
	s.mu.Unlock()

	report := IngestReport{
		Documents:   len(docs),
		Chunks:      len(kept),
		Skipped:     skipped,
		Cached:      cached,
		Fingerprint: fingerprint,
	}
	if s.deps.Summarizer != nil && s.opts.SummaryMaxSentences > 0 {
		var all strings.Builder
		for _, d := range docs {
			all.WriteString(d.Content)
			all.WriteString("\n")
		}
		summary, err := s.deps.Summarizer.Summarize(all.String(), s.opts.SummaryMaxSentences)
		if err != nil {
			return report, fmt.Errorf("summarize: %w", err)
		}
		report.Summary = summary
	}
	log.Info("corpus ingested",
		zap.Int("documents", report.Documents),
		zap.Int("chunks", report.Chunks),
		zap.Int("skipped", report.Skipped),
		zap.Bool("cached", report.Cached),
		zap.String("embedder", s.deps.Embedder.Name()))
	return report, nil
}

// embedCorpus returns the stored vectors for this exact corpus when
// available, otherwise embeds the texts and stores the result.
func (s *RAGService) embedCorpus(ctx context.Context, fingerprint string, chunks []domain.Chunk, texts []string) ([][]float32, bool, error) {
	model := s.deps.Embedder.Name()
	log := s.deps.Logger.With(zap.String("fingerprint", fingerprint[:12]))

	if s.deps.Store != nil {
		_, vectors, ok, err := s.deps.Store.LoadCorpus(ctx, fingerprint)
		switch {
		case err != nil:
			log.Warn("failed to load cached embeddings", zap.Error(err))
		case ok && len(vectors) == len(chunks):
			log.Debug("using cached embeddings", zap.Int("vectors", len(vectors)))
			return vectors, true, nil
		}
	}

	vectors, err := s.deps.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, false, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, false, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if s.deps.Store != nil {
		if err := s.deps.Store.SaveCorpus(ctx, fingerprint, model, chunks, vectors); err != nil {
			log.Warn("failed to cache embeddings", zap.Error(err))
		}
	}
	return vectors, false, nil
}

// applyDegeneratePolicy drops or rejects zero vectors. Kept chunks are
// renumbered so chunk indexes keep matching index positions.
func (s *RAGService) applyDegeneratePolicy(chunks []domain.Chunk, vectors [][]float32) ([]domain.Chunk, [][]float32, int, error) {
	kept := make([]domain.Chunk, 0, len(chunks))
	keptVectors := make([][]float32, 0, len(vectors))
	for i, v := range vectors {
		if _, err := vectorstore.Normalize(v); err != nil {
			if s.opts.OnDegenerate != DegenerateSkip {
				return nil, nil, 0, fmt.Errorf("chunk %d: %w", i, err)
			}
			s.deps.Logger.Warn("skipping chunk with degenerate embedding",
				zap.Int("chunk", i),
				zap.String("source", chunks[i].Source))
			continue
		}
		c := chunks[i]
		c.Index = len(kept)
		kept = append(kept, c)
		keptVectors = append(keptVectors, v)
	}
	return kept, keptVectors, len(chunks) - len(kept), nil
}

// Search returns up to k chunks supporting query. k <= 0 uses the
// configured default.
func (s *RAGService) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	chunks, index := s.chunks, s.index
	s.mu.RUnlock()
	if index == nil {
		return nil, ErrNotIngested
	}
	if k <= 0 {
		k = s.opts.TopK
	}

	vec, err := s.deps.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	candidates, err := index.Search(ctx, vec, k)
	if errors.Is(err, vectorstore.ErrDegenerateVector) && s.opts.LexicalFallback {
		s.deps.Logger.Debug("query embedding is degenerate, using lexical ranking", zap.String("query", query))
		candidates, err = lexicalCandidates(chunks, query, k), nil
	}
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	return s.deps.Ranker.Rank(candidates, chunks, query)
}

// Ask retrieves context for question and answers it.
func (s *RAGService) Ask(ctx context.Context, question string, k int) (Answer, error) {
	results, err := s.Search(ctx, question, k)
	if err != nil {
		return Answer{}, err
	}
	text, err := s.Respond(ctx, question, results)
	if err != nil {
		return Answer{Question: question, Results: results}, err
	}
	return Answer{Question: question, Results: results, Text: text}, nil
}

// Respond asks the answerer about question using results as context. The
// exchange is recorded in the history when a store is configured.
func (s *RAGService) Respond(ctx context.Context, question string, results []domain.SearchResult) (string, error) {
	if s.deps.Answerer == nil {
		return "", errors.New("no answerer configured")
	}
	text, err := s.deps.Answerer.Answer(ctx, question, FormatContext(results))
	if err != nil {
		return "", fmt.Errorf("answer: %w", err)
	}
	if s.deps.Store != nil {
		if _, err := s.deps.Store.RecordInteraction(ctx, question, text, len(results)); err != nil {
			s.deps.Logger.Warn("failed to record interaction", zap.Error(err))
		}
	}
	return text, nil
}

// Chunks returns the indexed chunk sequence.
func (s *RAGService) Chunks() []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunks
}

// FormatContext renders results as a numbered list, one trimmed chunk per
// line.
func FormatContext(results []domain.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(strings.TrimSpace(r.Chunk.Text))
	}
	return b.String()
}

// lexicalCandidates scores every chunk by token overlap with query and
// returns the best k, ties by position.
func lexicalCandidates(chunks []domain.Chunk, query string, k int) []domain.Candidate {
	candidates := make([]domain.Candidate, len(chunks))
	for i, c := range chunks {
		candidates[i] = domain.Candidate{Position: i, Score: ranking.OchiaiBoost(c.Text, query)}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	return candidates[:vectorstore.ClampK(k, len(candidates))]
}
