package chunker

import (
	"regexp"
	"strings"

	"chunky/internal/domain"
)

// DefaultChunkSize is the maximum chunk length, in characters, used when no
// positive size is configured.
const DefaultChunkSize = 1000

var (
	// Separator lines may hold any Unicode whitespace, not only RE2's \s.
	blankLineRe = regexp.MustCompile(`\n[\s\v\x1c-\x1f\x85\p{Z}]*\n`)
	lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")
	// Inside a paragraph these also end a line.
	lineBreaks = strings.NewReplacer(
		"\v", "\n", "\f", "\n",
		"\x1c", "\n", "\x1d", "\n", "\x1e", "\n",
		"\u0085", "\n", "\u2028", "\n", "\u2029", "\n",
	)
)

// Paragraphs splits text into blank-line separated paragraphs, joins the lines
// of each paragraph with single spaces and cuts paragraphs longer than
// chunkSize characters into consecutive fixed-width slices.
//
// Lengths are counted in runes. Empty input yields a single empty chunk.
func Paragraphs(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	text = strings.TrimSpace(lineEndings.Replace(text))
	blocks := blankLineRe.Split(text, -1)

	chunks := make([]string, 0, len(blocks))
	for _, block := range blocks {
		paragraph := strings.Join(splitLines(block), " ")
		chunks = append(chunks, cut(paragraph, chunkSize)...)
	}
	return chunks
}

// splitLines breaks a block on every line boundary. A trailing boundary does
// not produce an empty last line.
func splitLines(block string) []string {
	lines := strings.Split(lineBreaks.Replace(block), "\n")
	if n := len(lines); n > 1 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

func cut(paragraph string, size int) []string {
	runes := []rune(paragraph)
	if len(runes) <= size {
		return []string{paragraph}
	}
	out := make([]string, 0, (len(runes)+size-1)/size)
	for i := 0; i < len(runes); i += size {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[i:end]))
	}
	return out
}

// ParagraphChunker adapts Paragraphs to the domain.Chunker interface.
type ParagraphChunker struct {
	chunkSize int
}

func NewParagraphChunker(chunkSize int) *ParagraphChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &ParagraphChunker{chunkSize: chunkSize}
}

// Chunk splits the document into paragraph chunks. Empty paragraphs are
// dropped, so a blank document produces no chunks.
func (c *ParagraphChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, text := range Paragraphs(document.Content, c.chunkSize) {
		if text == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Index:  len(chunks),
			Text:   text,
			Source: document.Source,
		})
	}
	return chunks, nil
}
