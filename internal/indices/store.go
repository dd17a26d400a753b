package indices

import (
	"fmt"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/ncio"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

// Output is a file written for one series or index.
type Output struct {
	Name string
	Path string
}

// Save writes every baseline of b to its percentile file, series first.
func (p Profile) Save(layout storage.Layout, b *Baselines) ([]Output, error) {
	var out []Output
	for _, name := range p.names() {
		base := b.lookup(name)
		if base == nil {
			return out, fmt.Errorf("%w: %s has no %s baseline", domain.ErrMalformedInput, p.Variable, name)
		}
		path := layout.PercentileFile(p.Variable, name)
		if err := ncio.WriteBaseline(path, base); err != nil {
			return out, err
		}
		out = append(out, Output{Name: name, Path: path})
	}
	return out, nil
}

// Load reads the baselines written by Save.
func (p Profile) Load(layout storage.Layout) (*Baselines, error) {
	b := &Baselines{Series: make(map[string]*domain.Baseline), Indices: make(map[string]*domain.Baseline)}
	for _, s := range p.Series {
		base, err := ncio.ReadBaseline(layout.PercentileFile(p.Variable, s))
		if err != nil {
			return nil, fmt.Errorf("%s thresholds: %w", s, err)
		}
		b.Series[s] = base
	}
	for _, idx := range p.Indices {
		base, err := ncio.ReadBaseline(layout.PercentileFile(p.Variable, idx.Name))
		if err != nil {
			return nil, fmt.Errorf("%s climatology: %w", idx.Name, err)
		}
		b.Indices[idx.Name] = base
	}
	return b, nil
}

func (p Profile) names() []string {
	names := append([]string(nil), p.Series...)
	for _, idx := range p.Indices {
		names = append(names, idx.Name)
	}
	return names
}

func (b *Baselines) lookup(name string) *domain.Baseline {
	if base, ok := b.Series[name]; ok {
		return base
	}
	return b.Indices[name]
}

// VariableOf returns the variable whose profile defines the index.
func VariableOf(index string) (string, bool) {
	for _, v := range Variables() {
		for _, idx := range profiles[v].Indices {
			if idx.Name == index {
				return v, true
			}
		}
	}
	return "", false
}
