package indices

import (
	"fmt"
	"sort"
	"time"

	"github.com/AsociacionCA/aca-indice-climatico/internal/climatology"
	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// DefaultTZOffset shifts precipitation to Colombian local days.
const DefaultTZOffset = -5 * time.Hour

type indexKind int

const (
	kindFrequency indexKind = iota
	kindRx5Day
	kindCDD
)

// Index is a monthly extreme index derived from one daily series.
type Index struct {
	Name     string
	Series   string
	kind     indexKind
	quantile float64
	above    bool
}

// Profile describes how a variable becomes daily series and indices.
type Profile struct {
	Variable   string
	Components []string
	Series     []string
	Indices    []Index
	daily      func(raw []*domain.Field, opts Options) ([]*domain.Field, error)
}

// Options configures the daily derivation and the baselines.
type Options struct {
	Reference  domain.Period
	Binning    domain.Binning
	Quantiles  []float64
	MinSamples int
	TZOffset   time.Duration
}

var profiles = map[string]Profile{
	"temperature": {
		Variable:   "temperature",
		Components: []string{"t2m"},
		Series:     []string{"tmax", "tmin"},
		Indices: []Index{
			{Name: "tx90", Series: "tmax", kind: kindFrequency, quantile: 0.9, above: true},
			{Name: "tx10", Series: "tmax", kind: kindFrequency, quantile: 0.1},
			{Name: "tn90", Series: "tmin", kind: kindFrequency, quantile: 0.9, above: true},
			{Name: "tn10", Series: "tmin", kind: kindFrequency, quantile: 0.1},
		},
		daily: func(raw []*domain.Field, _ Options) ([]*domain.Field, error) {
			c := KelvinToCelsius(raw[0])
			return []*domain.Field{Daily(c, "tmax", Max, 0), Daily(c, "tmin", Min, 0)}, nil
		},
	},
	"precipitation": {
		Variable:   "precipitation",
		Components: []string{"tp"},
		Series:     []string{"pr"},
		Indices: []Index{
			{Name: "rx5day", Series: "pr", kind: kindRx5Day},
			{Name: "cdd", Series: "pr", kind: kindCDD},
		},
		daily: func(raw []*domain.Field, opts Options) ([]*domain.Field, error) {
			mm := MetresToMillimetres(raw[0])
			return []*domain.Field{Daily(mm, "pr", Sum, opts.TZOffset)}, nil
		},
	},
	"wind": {
		Variable:   "wind",
		Components: []string{"u10", "v10"},
		Series:     []string{"wp"},
		Indices: []Index{
			{Name: "wp90", Series: "wp", kind: kindFrequency, quantile: 0.9, above: true},
		},
		daily: func(raw []*domain.Field, _ Options) ([]*domain.Field, error) {
			wp, err := WindPower(raw[0], raw[1])
			if err != nil {
				return nil, err
			}
			return []*domain.Field{Daily(wp, "wp", Mean, 0)}, nil
		},
	},
}

// Lookup returns the profile of a variable.
func Lookup(variable string) (Profile, error) {
	p, ok := profiles[variable]
	if !ok {
		return Profile{}, fmt.Errorf("%w: unknown variable %q (want one of %v)", domain.ErrMalformedInput, variable, Variables())
	}
	return p, nil
}

// Variables lists the variables with a profile.
func Variables() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Daily derives the daily series from the consolidated components, in
// Series order.
func (p Profile) Daily(raw []*domain.Field, opts Options) ([]*domain.Field, error) {
	if len(raw) != len(p.Components) {
		return nil, fmt.Errorf("%w: %s needs components %v, got %d fields", domain.ErrMalformedInput, p.Variable, p.Components, len(raw))
	}
	return p.daily(raw, opts)
}

// Monthly computes index. Frequency indices need thresholds, the baseline
// of the index's daily series.
func (p Profile) Monthly(index Index, daily *domain.Field, thresholds *domain.Baseline) (*domain.Field, error) {
	var out *domain.Field
	switch index.kind {
	case kindRx5Day:
		out = Rx5Day(daily)
	case kindCDD:
		out = CDD(daily)
	default:
		if thresholds == nil {
			return nil, fmt.Errorf("%w: %s needs the %s thresholds", domain.ErrMalformedInput, index.Name, index.Series)
		}
		f, err := Frequency(daily, thresholds, index.quantile, index.above, index.Name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", index.Name, err)
		}
		out = f
	}
	out.Variable = index.Name
	out.SetAttr("series", index.Series)
	return out, nil
}

// Baselines holds the daily-series thresholds and the monthly index
// climatologies of one variable.
type Baselines struct {
	Series  map[string]*domain.Baseline
	Indices map[string]*domain.Baseline
}

// Build derives the daily series, their threshold baselines, and the
// monthly index baselines, all over opts.Reference.
func (p Profile) Build(raw []*domain.Field, opts Options) (*Baselines, error) {
	daily, err := p.Daily(raw, opts)
	if err != nil {
		return nil, err
	}
	copts := climatology.Options{
		Reference:  opts.Reference,
		Binning:    opts.Binning,
		Quantiles:  opts.Quantiles,
		MinSamples: opts.MinSamples,
	}
	out := &Baselines{Series: make(map[string]*domain.Baseline), Indices: make(map[string]*domain.Baseline)}
	byName := make(map[string]*domain.Field, len(daily))
	for _, f := range daily {
		b, err := climatology.Compute(f, copts)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Variable, err)
		}
		out.Series[f.Variable] = b
		byName[f.Variable] = f
	}

	monthly := copts
	monthly.Binning = domain.BinMonth
	for _, idx := range p.Indices {
		m, err := p.Monthly(idx, byName[idx.Series], out.Series[idx.Series])
		if err != nil {
			return nil, err
		}
		b, err := climatology.Compute(m, monthly)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", idx.Name, err)
		}
		out.Indices[idx.Name] = b
	}
	return out, nil
}
