package sealevel

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/AsociacionCA/aca-indice-climatico/internal/climatology"
)

// Significance is the two-sided level used to call a Mann-Kendall trend.
const Significance = 0.05

// MannKendall holds the Mann-Kendall test statistics.
type MannKendall struct {
	S     float64
	VarS  float64
	Z     float64
	P     float64
	Tau   float64
	Trend string // "increasing", "decreasing" or "no trend"
}

// MannKendallTest runs the test on values in time order, correcting the
// variance for ties.
func MannKendallTest(values []float64) MannKendall {
	n := len(values)
	if n < 3 {
		return MannKendall{S: 0, Z: 0, P: math.NaN(), Tau: math.NaN(), VarS: math.NaN(), Trend: "no trend"}
	}
	s := 0.0
	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			switch d := values[j] - values[i]; {
			case d > 0:
				s++
			case d < 0:
				s--
			}
		}
	}

	ties := make(map[float64]int)
	for _, v := range values {
		ties[v]++
	}
	fn := float64(n)
	varS := fn * (fn - 1) * (2*fn + 5)
	for _, t := range ties {
		if t > 1 {
			ft := float64(t)
			varS -= ft * (ft - 1) * (2*ft + 5)
		}
	}
	varS /= 18

	var z float64
	switch {
	case varS <= 0:
		z = 0
	case s > 0:
		z = (s - 1) / math.Sqrt(varS)
	case s < 0:
		z = (s + 1) / math.Sqrt(varS)
	}
	p := 2 * (1 - distuv.UnitNormal.CDF(math.Abs(z)))

	trend := "no trend"
	if p < Significance {
		if z > 0 {
			trend = "increasing"
		} else {
			trend = "decreasing"
		}
	}
	return MannKendall{S: s, VarS: varS, Z: z, P: p, Tau: s / (fn * (fn - 1) / 2), Trend: trend}
}

// SenSlope returns the median of pairwise slopes (y[j]-y[i])/(x[j]-x[i]).
// Pairs with equal x are skipped.
func SenSlope(x, y []float64) float64 {
	var slopes []float64
	for i := 0; i < len(x)-1; i++ {
		for j := i + 1; j < len(x); j++ {
			if dx := x[j] - x[i]; dx != 0 {
				slopes = append(slopes, (y[j]-y[i])/dx)
			}
		}
	}
	if len(slopes) == 0 {
		return math.NaN()
	}
	sort.Float64s(slopes)
	return climatology.Percentile(slopes, 0.5)
}

// LeastSquares returns the ordinary least-squares intercept, slope and R².
func LeastSquares(x, y []float64) (alpha, beta, r2 float64) {
	if len(x) < 2 {
		return math.NaN(), math.NaN(), math.NaN()
	}
	alpha, beta = stat.LinearRegression(x, y, nil, false)
	return alpha, beta, stat.RSquared(x, y, nil, alpha, beta)
}
