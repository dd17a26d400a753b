package anomaly

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/indices"
	"github.com/AsociacionCA/aca-indice-climatico/internal/ncio"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

// RunOptions configures Run.
type RunOptions struct {
	Mode Mode
	// Period restricts the evaluated steps; zero keeps everything.
	Period   domain.Period
	TZOffset time.Duration
	// Strict refuses an evaluation period overlapping the reference.
	Strict bool
}

// Run reads the consolidated file and stored baselines of one variable and
// writes the anomalies of its daily series (in opts.Mode) and of its
// monthly indices (standardized).
func Run(layout storage.Layout, p indices.Profile, opts RunOptions, logger *slog.Logger) ([]indices.Output, error) {
	raw, err := ncio.ReadFields(layout.ConsolidatedFile(p.Variable), p.Components...)
	if err != nil {
		return nil, err
	}
	base, err := p.Load(layout)
	if err != nil {
		return nil, err
	}
	daily, err := p.Daily(raw, indices.Options{TZOffset: opts.TZOffset})
	if err != nil {
		return nil, err
	}
	if err := CheckReference(evalPeriod(opts.Period, daily[0]), base.Series[p.Series[0]].Reference, opts.Strict, logger); err != nil {
		return nil, err
	}

	var out []indices.Output
	byName := make(map[string]*domain.Field, len(daily))
	for _, d := range daily {
		byName[d.Variable] = d
		a, err := Compute(d.Within(opts.Period), base.Series[d.Variable], opts.Mode)
		if err != nil {
			return out, err
		}
		o, err := write(layout, p.Variable, a.Variable, a)
		if err != nil {
			return out, err
		}
		out = append(out, o)
		logger.Info("series anomalies written", "series", d.Variable, "mode", opts.Mode.String(), "steps", len(a.Times))
	}

	for _, idx := range p.Indices {
		m, err := p.Monthly(idx, byName[idx.Series], base.Series[idx.Series])
		if err != nil {
			return out, err
		}
		a, err := Compute(m.Within(opts.Period), base.Indices[idx.Name], Mode{Kind: Standardized})
		if err != nil {
			return out, err
		}
		o, err := write(layout, p.Variable, idx.Name, a)
		if err != nil {
			return out, err
		}
		out = append(out, o)
		logger.Info("index anomalies written", "index", idx.Name, "months", len(a.Times))
	}
	return out, nil
}

// evalPeriod is p, or the days covered by f when p is zero.
func evalPeriod(p domain.Period, f *domain.Field) domain.Period {
	if !p.IsZero() || len(f.Times) == 0 {
		return p
	}
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	return domain.Period{Start: day(f.Times[0]), End: day(f.Times[len(f.Times)-1])}
}

func write(layout storage.Layout, variable, name string, f *domain.Field) (indices.Output, error) {
	if len(f.Times) == 0 {
		return indices.Output{}, fmt.Errorf("%w: %s has no steps in the evaluation period", domain.ErrMissingPeriod, name)
	}
	path := layout.AnomalyFile(variable, name)
	if err := ncio.WriteFields(path, f); err != nil {
		return indices.Output{}, err
	}
	return indices.Output{Name: name, Path: path}, nil
}
