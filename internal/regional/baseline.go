package regional

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// Baseline statistics besides quantiles, which are named "p<percent>".
const (
	StatMean = "mean"
	StatStd  = "std"
)

// BaselineField lays one statistic of a baseline out as a field whose time
// axis is the bins, dated in domain.ClimatologyYear.
func BaselineField(b *domain.Baseline, stat string) (*domain.Field, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	values, err := statValues(b, stat)
	if err != nil {
		return nil, err
	}
	nb := b.Binning.Bins()
	times := make([]time.Time, nb)
	for k := range times {
		times[k] = b.Binning.BinTime(k)
	}
	f := domain.NewField(b.Variable+"_"+stat, b.Units, b.Grid, times)
	for bin := 0; bin < nb; bin++ {
		copy(f.Step(bin), values(bin))
	}
	f.SetAttr("binning", string(b.Binning))
	f.SetAttr("reference_period", b.Reference.String())
	return f, nil
}

// ParseStat validates a statistic name. For "p<percent>" it returns the
// quantile and true.
func ParseStat(stat string) (float64, bool, error) {
	if stat == StatMean || stat == StatStd {
		return 0, false, nil
	}
	pct, ok := strings.CutPrefix(stat, "p")
	v, err := strconv.ParseFloat(pct, 64)
	if !ok || err != nil || v <= 0 || v >= 100 {
		return 0, false, fmt.Errorf("%w: baseline statistic %q (want mean, std or p<percent>)", domain.ErrMalformedInput, stat)
	}
	return v / 100, true, nil
}

// HasStat reports whether b stores stat.
func HasStat(b *domain.Baseline, stat string) bool {
	q, isQuantile, err := ParseStat(stat)
	if err != nil {
		return false
	}
	if !isQuantile {
		return true
	}
	_, err = b.QuantileIndex(q)
	return err == nil
}

// statValues returns a per-bin accessor of the cells of stat.
func statValues(b *domain.Baseline, stat string) (func(bin int) []float64, error) {
	q, isQuantile, err := ParseStat(stat)
	if err != nil {
		return nil, err
	}
	nc := b.Grid.Cells()
	if !isQuantile {
		src := b.Mean
		if stat == StatStd {
			src = b.Std
		}
		return func(bin int) []float64 { return src[bin*nc : (bin+1)*nc] }, nil
	}
	qi, err := b.QuantileIndex(q)
	if err != nil {
		return nil, err
	}
	nq := len(b.Quantiles)
	return func(bin int) []float64 {
		off := (bin*nq + qi) * nc
		return b.Thresholds[off : off+nc]
	}, nil
}

// AggregateBaseline reduces one statistic of a baseline over regions, one
// row per region and bin.
func (a *Aggregator) AggregateBaseline(b *domain.Baseline, stat string, regions []domain.Region) ([]domain.RegionalSummary, error) {
	f, err := BaselineField(b, stat)
	if err != nil {
		return nil, err
	}
	return a.Aggregate(f, regions)
}
