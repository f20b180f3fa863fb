package vector

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/MariusDragic/RailwayRAG/internal/models"
	"github.com/MariusDragic/RailwayRAG/pkg/utils"
)

// UnitTolerance bounds how far a stored vector's norm may drift from 1.
const UnitTolerance = 1e-3

// cancelCheckEvery is how many vectors are scored between context checks.
const cancelCheckEvery = 4096

// FlatIndex scores every stored vector against the query (brute force), so results are exact.
// It is immutable once built and safe for concurrent searches.
type FlatIndex struct {
	dimensions int
	vectors    [][]float32
}

var _ Index = (*FlatIndex)(nil)

// Build creates an index over vectors in the given order. Every vector must have the same
// dimension and unit L2 norm. The input is copied.
func Build(vectors [][]float32) (*FlatIndex, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no vectors to index", models.ErrConfig)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: vectors must not be empty", models.ErrConfig)
	}
	stored := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d dimension mismatch: got %d, expected %d",
				models.ErrConfig, i, len(v), dim)
		}
		if !utils.IsUnit(v, UnitTolerance) {
			return nil, fmt.Errorf("%w: vector %d is not unit length (norm %.4f)",
				models.ErrConfig, i, utils.L2Norm(v))
		}
		stored[i] = slices.Clone(v)
	}
	return &FlatIndex{dimensions: dim, vectors: stored}, nil
}

// Search returns the min(k, Size()) positions with the highest inner product to query,
// ordered by descending score and then ascending position.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrConfig, k)
	}
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("%w: query dimension mismatch: got %d, expected %d",
			models.ErrConfig, len(query), f.dimensions)
	}
	scores := make([]Result, len(f.vectors))
	for i, vec := range f.vectors {
		if i%cancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		scores[i] = Result{Position: i, Score: InnerProduct(query, vec)}
	}
	slices.SortFunc(scores, func(a, b Result) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Position, b.Position)
	})
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// Vector returns a copy of the vector at position.
func (f *FlatIndex) Vector(position int) ([]float32, bool) {
	if position < 0 || position >= len(f.vectors) {
		return nil, false
	}
	return slices.Clone(f.vectors[position]), true
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	return len(f.vectors)
}

// Dimensions returns the vector dimension.
func (f *FlatIndex) Dimensions() int {
	return f.dimensions
}
