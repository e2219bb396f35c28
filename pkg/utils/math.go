package utils

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// MinSlice returns the smallest value in values, or 0 for an empty slice.
func MinSlice(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return floats.Min(values)
}

// ArgMax returns the index of the largest value, or -1 for an empty slice.
func ArgMax(values []float64) int {
	if len(values) == 0 {
		return -1
	}
	return floats.MaxIdx(values)
}

// Sum calculates the sum of a slice of float64 values
func Sum(values []float64) float64 {
	return floats.Sum(values)
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
