// Package vector provides an exact inner-product index over unit vectors.
package vector

import "context"

// Index is a read-only vector index addressed by dense positions 0..Size()-1.
type Index interface {
	Search(ctx context.Context, query []float32, k int) ([]Result, error)
	Vector(position int) ([]float32, bool)
	Size() int
	Dimensions() int
}

// Result is one search hit. Position is the index of the matching vector in build order;
// a negative position means "no result" and callers must drop it.
type Result struct {
	Position int
	Score    float64
}
