package domain

import (
	"fmt"
	"math"
)

// Baseline is a per-cell, per-bin climatology computed over a reference
// period.
type Baseline struct {
	Variable  string
	Units     string
	Grid      Grid
	Binning   Binning
	Reference Period
	Quantiles []float64
	// Thresholds is (bin, quantile, lat, lon).
	Thresholds []float64
	// Mean, Std and Count are (bin, lat, lon).
	Mean  []float64
	Std   []float64
	Count []int
}

// NewBaseline allocates a NaN-filled baseline.
func NewBaseline(variable, units string, grid Grid, binning Binning, ref Period, quantiles []float64) *Baseline {
	nb, nq, nc := binning.Bins(), len(quantiles), grid.Cells()
	b := &Baseline{
		Variable:   variable,
		Units:      units,
		Grid:       grid,
		Binning:    binning,
		Reference:  ref,
		Quantiles:  append([]float64(nil), quantiles...),
		Thresholds: nanSlice(nb * nq * nc),
		Mean:       nanSlice(nb * nc),
		Std:        nanSlice(nb * nc),
		Count:      make([]int, nb*nc),
	}
	return b
}

// QuantileIndex returns the position of q in Quantiles.
func (b *Baseline) QuantileIndex(q float64) (int, error) {
	for k, v := range b.Quantiles {
		if math.Abs(v-q) < 1e-9 {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: quantile %g not in baseline %s", ErrMalformedInput, q, b.Variable)
}

// Threshold returns the stored threshold for bin, quantile index and cell.
func (b *Baseline) Threshold(bin, qi, cell int) float64 {
	nc := b.Grid.Cells()
	return b.Thresholds[(bin*len(b.Quantiles)+qi)*nc+cell]
}

// SetThreshold stores a threshold.
func (b *Baseline) SetThreshold(bin, qi, cell int, v float64) {
	nc := b.Grid.Cells()
	b.Thresholds[(bin*len(b.Quantiles)+qi)*nc+cell] = v
}

// StatIndex returns the offset of (bin, cell) in Mean, Std and Count.
func (b *Baseline) StatIndex(bin, cell int) int {
	return bin*b.Grid.Cells() + cell
}

// Validate checks array sizes against the grid, binning and quantiles.
func (b *Baseline) Validate() error {
	if err := b.Grid.Validate(); err != nil {
		return err
	}
	nb, nq, nc := b.Binning.Bins(), len(b.Quantiles), b.Grid.Cells()
	if len(b.Thresholds) != nb*nq*nc {
		return fmt.Errorf("%w: %s thresholds have %d values, want %d", ErrMalformedInput, b.Variable, len(b.Thresholds), nb*nq*nc)
	}
	if len(b.Mean) != nb*nc || len(b.Std) != nb*nc || len(b.Count) != nb*nc {
		return fmt.Errorf("%w: %s statistics sized for a different grid", ErrMalformedInput, b.Variable)
	}
	return nil
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for k := range s {
		s[k] = math.NaN()
	}
	return s
}
