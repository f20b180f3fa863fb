// Package indexer splits source documents into chunks and builds the persisted search artifacts.
package indexer

import (
	"fmt"

	"github.com/MariusDragic/RailwayRAG/internal/models"
)

// defaultSeparators are tried in order when looking for a cut point: paragraph, line, word.
// A hard cut at the size limit is the last resort.
var defaultSeparators = []string{"\n\n", "\n", " "}

// Chunker splits page text into overlapping windows of at most chunkSize characters.
// Lengths are counted in runes. Text is never trimmed, so with zero overlap the chunks
// of a page concatenate back to the page text.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   [][]rune
}

// NewChunker creates a chunker with the given size and overlap (in characters).
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", models.ErrConfig, chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk overlap must not be negative, got %d", models.ErrConfig, chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			models.ErrConfig, chunkOverlap, chunkSize)
	}
	seps := make([][]rune, len(defaultSeparators))
	for i, s := range defaultSeparators {
		seps[i] = []rune(s)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap, separators: seps}, nil
}

// Size returns the maximum chunk length.
func (c *Chunker) Size() int { return c.chunkSize }

// Overlap returns the number of characters shared by consecutive chunks.
func (c *Chunker) Overlap() int { return c.chunkOverlap }

// Split chunks every non-blank page of a document, in page order.
// Chunk IDs have the form {source}_p{page}_c{seq} with seq restarting at 0 on each page.
func (c *Chunker) Split(source string, pages []models.Page) []*models.Chunk {
	var chunks []*models.Chunk
	for _, page := range FilterPages(pages) {
		for seq, text := range c.SplitText(page.Text) {
			chunks = append(chunks, &models.Chunk{
				ID:   ChunkID(source, page.Number, seq),
				Text: text,
				Metadata: models.ChunkMetadata{
					Page:    page.Number,
					ChunkID: seq,
					Source:  source,
				},
			})
		}
	}
	return chunks
}

// SplitText returns the ordered windows of text. Each window after the first starts
// exactly chunkOverlap characters before the end of the previous one.
func (c *Chunker) SplitText(text string) []string {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	var out []string
	start := 0
	for {
		if n-start <= c.chunkSize {
			return append(out, string(runes[start:]))
		}
		end := c.cutPoint(runes, start)
		out = append(out, string(runes[start:end]))
		start = end - c.chunkOverlap
	}
}

// cutPoint returns the exclusive end of the window starting at start. The separator is kept
// with the chunk it closes. The window must be longer than the overlap so the next start advances.
func (c *Chunker) cutPoint(runes []rune, start int) int {
	limit := start + c.chunkSize
	minEnd := start + c.chunkOverlap + 1
	for _, sep := range c.separators {
		i := lastIndex(runes[start:limit], sep)
		if i < 0 {
			continue
		}
		if end := start + i + len(sep); end >= minEnd {
			return end
		}
	}
	return limit
}

func lastIndex(haystack, sep []rune) int {
	for i := len(haystack) - len(sep); i >= 0; i-- {
		match := true
		for j, r := range sep {
			if haystack[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// ChunkID formats the stable identifier of a chunk.
func ChunkID(source string, page, seq int) string {
	return fmt.Sprintf("%s_p%d_c%d", source, page, seq)
}
