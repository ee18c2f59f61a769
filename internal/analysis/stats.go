package analysis

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// mean returns 0 for an empty sample instead of NaN.
func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// popStdDev is the population standard deviation (n denominator), 0 for an empty sample.
func popStdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	// rounding in the compensated variance can leave a tiny negative value
	v := stat.PopVariance(xs, nil)
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	return math.Sqrt(v)
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
