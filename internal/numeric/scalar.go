// Package numeric holds the scalar scoring helpers shared by the
// evaluation pipeline.
package numeric

import "math"

// RMSE returns the root-mean-square error between a target and an actual
// scalar, the single-sample degenerate case of the vector form:
// sqrt((target-actual)^2).
func RMSE(target, actual float64) float64 {
	d := target - actual
	return math.Sqrt(d * d)
}

// ReplaceNaN returns a copy of vals with every NaN element replaced by
// sentinel. Order and length are preserved and non-NaN elements are left
// untouched, so applying it twice yields the same result as once.
func ReplaceNaN(vals []float64, sentinel float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		if math.IsNaN(v) {
			out[i] = sentinel
			continue
		}
		out[i] = v
	}
	return out
}
