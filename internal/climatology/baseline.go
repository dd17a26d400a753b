package climatology

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// DefaultQuantiles are the thresholds stored for every series.
var DefaultQuantiles = []float64{0.1, 0.5, 0.9}

// DefaultMinSamples is the fewest valid values a bin needs.
const DefaultMinSamples = 10

// DefaultReference is the WMO 1961-1990 normal.
var DefaultReference = domain.MustPeriod("1961:1990")

// Options configures Compute.
type Options struct {
	Reference  domain.Period
	Binning    domain.Binning
	Quantiles  []float64
	MinSamples int
}

func (o Options) withDefaults() Options {
	if o.Reference.IsZero() {
		o.Reference = DefaultReference
	}
	if o.Binning == "" {
		o.Binning = domain.BinMonth
	}
	if len(o.Quantiles) == 0 {
		o.Quantiles = DefaultQuantiles
	}
	if o.MinSamples <= 0 {
		o.MinSamples = DefaultMinSamples
	}
	return o
}

// Compute builds the baseline of f. Only time steps inside the reference
// period contribute; NaN values are dropped. Bins with fewer than
// MinSamples values keep NaN thresholds, mean and std, and their Count
// records how many values were seen.
func Compute(f *domain.Field, opts Options) (*domain.Baseline, error) {
	opts = opts.withDefaults()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	for _, q := range opts.Quantiles {
		if q < 0 || q > 1 {
			return nil, fmt.Errorf("%w: quantile %g outside [0, 1]", domain.ErrMalformedInput, q)
		}
	}

	bins := make([]int, len(f.Times))
	inRef := 0
	for t, ts := range f.Times {
		bins[t] = -1
		if opts.Reference.Contains(ts) {
			bins[t] = opts.Binning.Bin(ts)
			inRef++
		}
	}
	if inRef == 0 {
		return nil, fmt.Errorf("%w: %s has no time steps in reference %s", domain.ErrMissingPeriod, f.Variable, opts.Reference)
	}

	b := domain.NewBaseline(f.Variable, f.Units, f.Grid, opts.Binning, opts.Reference, opts.Quantiles)
	nb, nc := opts.Binning.Bins(), f.Grid.Cells()
	buckets := make([][]float64, nb)
	for cell := 0; cell < nc; cell++ {
		for k := range buckets {
			buckets[k] = buckets[k][:0]
		}
		for t, bin := range bins {
			if bin < 0 {
				continue
			}
			if v := f.Data[t*nc+cell]; !math.IsNaN(v) {
				buckets[bin] = append(buckets[bin], v)
			}
		}
		for bin, vals := range buckets {
			idx := b.StatIndex(bin, cell)
			b.Count[idx] = len(vals)
			if len(vals) < opts.MinSamples {
				continue
			}
			b.Mean[idx], b.Std[idx] = stat.PopMeanStdDev(vals, nil)
			for qi, v := range Quantiles(vals, opts.Quantiles) {
				b.SetThreshold(bin, qi, cell, v)
			}
		}
	}
	return b, nil
}

// Insufficient counts (bin, cell) pairs that saw at least one value but
// fewer than minSamples. Bins never observed, such as day 366 in a
// reference without leap years, are not counted.
func Insufficient(b *domain.Baseline, minSamples int) int {
	n := 0
	for _, c := range b.Count {
		if c > 0 && c < minSamples {
			n++
		}
	}
	return n
}
