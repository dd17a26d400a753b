// Package anomaly expresses observed fields relative to a baseline.
package anomaly

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/AsociacionCA/aca-indice-climatico/internal/climatology"
	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// Kind selects the anomaly formula.
type Kind string

const (
	Difference   Kind = "difference"
	Percentile   Kind = "percentile"
	Standardized Kind = "standardized"
	Rank         Kind = "rank"
)

// Mode is a Kind plus the quantile used by Percentile.
type Mode struct {
	Kind     Kind
	Quantile float64
}

// ParseMode parses "difference", "standardized", "rank" or
// "percentile:<q>".
func ParseMode(s string) (Mode, error) {
	name, arg, hasArg := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")
	switch Kind(name) {
	case Difference, Standardized, Rank:
		if hasArg {
			return Mode{}, fmt.Errorf("%w: anomaly mode %q takes no argument", domain.ErrMalformedInput, s)
		}
		return Mode{Kind: Kind(name)}, nil
	case Percentile:
		q, err := strconv.ParseFloat(arg, 64)
		if !hasArg || err != nil || q < 0 || q > 1 {
			return Mode{}, fmt.Errorf("%w: anomaly mode %q: want percentile:<q> with q in [0, 1]", domain.ErrMalformedInput, s)
		}
		return Mode{Kind: Percentile, Quantile: q}, nil
	}
	return Mode{}, fmt.Errorf("%w: anomaly mode %q", domain.ErrMalformedInput, s)
}

func (m Mode) String() string {
	if m.Kind == Percentile {
		return fmt.Sprintf("p%02.0f", m.Quantile*100)
	}
	return string(m.Kind)
}

// Compute returns f relative to base, bin by bin. The grids must match
// exactly. Cells whose baseline statistic is NaN yield NaN.
func Compute(f *domain.Field, base *domain.Baseline, mode Mode) (*domain.Field, error) {
	if err := base.Grid.Mismatch(f.Grid); err != nil {
		return nil, fmt.Errorf("%s against %s baseline: %w", f.Variable, base.Variable, err)
	}
	qi := 0
	if mode.Kind == Percentile {
		var err error
		if qi, err = base.QuantileIndex(mode.Quantile); err != nil {
			return nil, err
		}
	}

	out := domain.NewField(f.Variable+"_"+mode.String(), f.Units, f.Grid, f.Times)
	if mode.Kind == Standardized || mode.Kind == Rank {
		out.Units = "1"
	}
	th := make([]float64, len(base.Quantiles))
	for t, ts := range f.Times {
		bin := base.Binning.Bin(ts)
		src, dst := f.Step(t), out.Step(t)
		for c, v := range src {
			si := base.StatIndex(bin, c)
			switch mode.Kind {
			case Difference:
				dst[c] = v - base.Mean[si]
			case Percentile:
				dst[c] = v - base.Threshold(bin, qi, c)
			case Standardized:
				dst[c] = standardize(v, base.Mean[si], base.Std[si])
			case Rank:
				for k := range th {
					th[k] = base.Threshold(bin, k, c)
				}
				dst[c] = climatology.Rank(v, base.Quantiles, th)
			default:
				return nil, fmt.Errorf("%w: anomaly mode %q", domain.ErrMalformedInput, mode.Kind)
			}
		}
	}
	for k, v := range f.Attrs {
		out.SetAttr(k, v)
	}
	out.SetAttr("anomaly_mode", mode.String())
	out.SetAttr("reference_period", base.Reference.String())
	return out, nil
}

func standardize(v, mean, std float64) float64 {
	if std == 0 || math.IsNaN(std) {
		return math.NaN()
	}
	return (v - mean) / std
}

// CheckReference warns when the evaluated period overlaps the reference
// period, and refuses when strict is set.
func CheckReference(eval, ref domain.Period, strict bool, logger *slog.Logger) error {
	if eval.IsZero() || !eval.Overlaps(ref) {
		return nil
	}
	if strict {
		return fmt.Errorf("%w: evaluation period %s overlaps reference %s", domain.ErrMalformedInput, eval, ref)
	}
	logger.Warn("evaluation period overlaps the reference period", "period", eval.String(), "reference", ref.String())
	return nil
}

// Reconstruct inverts a difference anomaly: observed = anomaly + mean.
func Reconstruct(anom *domain.Field, base *domain.Baseline) (*domain.Field, error) {
	if err := base.Grid.Mismatch(anom.Grid); err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(anom.Variable, "_"+string(Difference))
	out := domain.NewField(name, anom.Units, anom.Grid, anom.Times)
	for t, ts := range anom.Times {
		bin := base.Binning.Bin(ts)
		src, dst := anom.Step(t), out.Step(t)
		for c, v := range src {
			dst[c] = v + base.Mean[base.StatIndex(bin, c)]
		}
	}
	return out, nil
}
