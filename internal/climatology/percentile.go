// Package climatology computes per-cell, per-bin baselines (quantile
// thresholds, mean and standard deviation) over a reference period.
package climatology

import (
	"math"
	"sort"
)

// Percentile returns the q-quantile of sorted using linear interpolation
// between order statistics at h = (n-1)q. It returns NaN for an empty slice
// or q outside [0, 1].
func Percentile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 || q < 0 || q > 1 || math.IsNaN(q) {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	h := float64(n-1) * q
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// Quantiles sorts values in place and evaluates every q.
func Quantiles(values []float64, qs []float64) []float64 {
	sort.Float64s(values)
	out := make([]float64, len(qs))
	for k, q := range qs {
		out[k] = Percentile(values, q)
	}
	return out
}

// Rank returns where v falls on the piecewise-linear curve through
// (thresholds[k], qs[k]), clamped to the first and last quantile. NaN
// thresholds are ignored.
func Rank(v float64, qs, thresholds []float64) float64 {
	if math.IsNaN(v) {
		return math.NaN()
	}
	var xs, ys []float64
	for k, t := range thresholds {
		if !math.IsNaN(t) {
			xs = append(xs, t)
			ys = append(ys, qs[k])
		}
	}
	switch {
	case len(xs) == 0:
		return math.NaN()
	case v <= xs[0]:
		return ys[0]
	case v >= xs[len(xs)-1]:
		return ys[len(ys)-1]
	}
	for k := 1; k < len(xs); k++ {
		if v > xs[k] {
			continue
		}
		if xs[k] == xs[k-1] {
			return ys[k]
		}
		f := (v - xs[k-1]) / (xs[k] - xs[k-1])
		return ys[k-1] + f*(ys[k]-ys[k-1])
	}
	return ys[len(ys)-1]
}
