package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	x := []float32{3, 4}
	if norm := NormalizeL2(x); norm != 5 {
		t.Errorf("NormalizeL2 returned %v, want 5", norm)
	}
	if math.Abs(float64(x[0])-0.6) > 1e-6 || math.Abs(float64(x[1])-0.8) > 1e-6 {
		t.Errorf("normalized = %v", x)
	}
	if !IsUnit(x, 1e-6) {
		t.Error("normalized vector should be unit")
	}

	zero := []float32{0, 0}
	if NormalizeL2(zero) != 0 || zero[0] != 0 {
		t.Error("zero vector should be unchanged")
	}
	if IsUnit(zero, 1e-3) {
		t.Error("zero vector is not unit")
	}
}
