package testutil

import (
	"math"
	"testing"
)

// Tolerance for floating-point balance comparisons in tests.
const Tolerance = 1e-9

// ApproxEqual reports whether two values agree within Tolerance.
func ApproxEqual(a, b float64) bool {
	return math.Abs(a-b) <= Tolerance
}

// AssertApprox fails the test when got differs from want beyond Tolerance.
func AssertApprox(t *testing.T, name string, got, want float64) {
	t.Helper()
	if !ApproxEqual(got, want) {
		t.Errorf("%s: got %v, want %v", name, got, want)
	}
}
