package utils

import "math"

// L2Norm returns the Euclidean norm of x, accumulated in float64.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// NormalizeL2 normalizes the slice in place to unit L2 norm and returns the original norm.
// If the norm is zero, the slice is unchanged.
func NormalizeL2(x []float32) float64 {
	norm := L2Norm(x)
	if norm == 0 {
		return 0
	}
	inv := 1 / norm
	for i := range x {
		x[i] = float32(float64(x[i]) * inv)
	}
	return norm
}

// IsUnit reports whether x has L2 norm within tol of 1.
func IsUnit(x []float32, tol float64) bool {
	return math.Abs(L2Norm(x)-1) <= tol
}
