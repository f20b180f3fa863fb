package embedding

import (
	"context"
	"strings"

	"github.com/MariusDragic/RailwayRAG/pkg/utils"
)

const defaultHashDimensions = 384

// HashEmbedder is a deterministic embedder that needs no model. Each lowercased word is
// hashed into a signed bucket (feature hashing), so texts sharing words score higher.
// Identical texts always get identical vectors.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hash embedder of the given dimensions (384 when not positive).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = defaultHashDimensions
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the normalized word-hash vector of text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	for _, word := range SplitWords(strings.ToLower(text)) {
		h := HashString(word)
		bucket := h % e.dimensions
		if (h/e.dimensions)%2 == 0 {
			emb[bucket]++
		} else {
			emb[bucket]--
		}
	}
	if utils.NormalizeL2(emb) == 0 {
		// No words: a fixed unit vector keeps the output on the unit sphere.
		emb[0] = 1
	}
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}
