package regional

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/observability"
)

// Aggregator reduces fields over a fixed set of regions.
type Aggregator struct {
	masker  Masker
	mode    MaskMode
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewAggregator returns an Aggregator. A nil masker uses a cached
// GridMasker.
func NewAggregator(masker Masker, mode MaskMode, logger *slog.Logger, metrics *observability.Metrics) *Aggregator {
	if masker == nil {
		masker = NewCachedMasker(GridMasker{}, 256)
	}
	return &Aggregator{masker: masker, mode: mode, logger: logger, metrics: metrics}
}

// Aggregate returns one summary per region and time step, regions in the
// given order. A region whose mask is empty still gets NaN rows.
func (a *Aggregator) Aggregate(f *domain.Field, regions []domain.Region) ([]domain.RegionalSummary, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	out := make([]domain.RegionalSummary, 0, len(regions)*len(f.Times))
	for _, reg := range regions {
		m, err := a.masker.Mask(reg, f.Grid, a.mode)
		if err != nil {
			return nil, fmt.Errorf("mask %s: %w", reg.ID, err)
		}
		if m.Empty() {
			a.logger.Warn("region selects no grid cells", "region", reg.ID, "variable", f.Variable, "mode", string(a.mode))
			a.metrics.EmptyRegions.Inc()
		}
		out = append(out, Summarize(f, reg, m)...)
	}
	return out, nil
}

// Summarize computes the weighted mean of the masked non-NaN cells of every
// time step.
func Summarize(f *domain.Field, reg domain.Region, m Mask) []domain.RegionalSummary {
	out := make([]domain.RegionalSummary, len(f.Times))
	for t, ts := range f.Times {
		step := f.Step(t)
		sum, wsum, n := 0.0, 0.0, 0
		for k, c := range m.Cells {
			v := step[c]
			if math.IsNaN(v) {
				continue
			}
			sum += m.Weights[k] * v
			wsum += m.Weights[k]
			n++
		}
		value := math.NaN()
		if wsum > 0 {
			value = sum / wsum
		}
		out[t] = domain.RegionalSummary{
			RegionID:   reg.ID,
			RegionName: reg.Name,
			Time:       ts,
			Value:      value,
			Cells:      n,
		}
	}
	return out
}
