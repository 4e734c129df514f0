package domain

import "context"

// Document represents a single body of source text loaded into the system.
type Document struct {
	ID      string
	Source  string
	Content string
}

// Chunk is the atomic retrievable unit. Index is its position in the ordered
// chunk sequence and doubles as its position in the vector index.
type Chunk struct {
	Index  int
	Text   string
	Source string
}

// Candidate is a raw nearest-neighbour hit as returned by a vector index.
type Candidate struct {
	Position int
	Score    float64
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(ctx context.Context, corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Answerer produces a free-form answer to a question given formatted context.
type Answerer interface {
	Answer(ctx context.Context, question, contextText string) (string, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
// Returned chunks carry indexes local to the document; the caller renumbers
// them when concatenating documents.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
