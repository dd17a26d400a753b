package regional

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/indices"
	"github.com/AsociacionCA/aca-indice-climatico/internal/ncio"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

// Run aggregates every anomaly file of variable over regions and writes
// one regional CSV per file, named after it.
func (a *Aggregator) Run(layout storage.Layout, variable string, regions []domain.Region) ([]indices.Output, error) {
	paths, err := filepath.Glob(filepath.Join(layout.ProductDir(variable, storage.Anomaly), "*.nc"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no anomaly files for %s", domain.ErrMissingPeriod, variable)
	}
	sort.Strings(paths)

	var out []indices.Output
	for _, path := range paths {
		fields, err := ncio.ReadFields(path)
		if err != nil {
			return out, err
		}
		product := strings.TrimSuffix(filepath.Base(path), ".nc")
		rows, err := a.Aggregate(fields[0], regions)
		if err != nil {
			return out, fmt.Errorf("%s: %w", product, err)
		}
		dst := layout.RegionalFile(variable, product)
		if err := WriteSummaries(dst, rows); err != nil {
			return out, err
		}
		a.logger.Info("regional series written", "variable", variable, "product", product, "regions", len(regions), "rows", len(rows))
		out = append(out, indices.Output{Name: product, Path: dst})
	}
	return out, nil
}

// BaselineProduct names the regional CSV of one baseline statistic.
func BaselineProduct(series, stat string) string {
	return series + "_" + stat + "_climatology"
}

// RunBaselines aggregates the requested statistics of every stored baseline
// of variable over regions. Quantile statistics skip baselines that do not
// store that quantile; a statistic no baseline provides is an error.
func (a *Aggregator) RunBaselines(layout storage.Layout, variable string, stats []string, regions []domain.Region) ([]indices.Output, error) {
	for _, stat := range stats {
		if _, _, err := ParseStat(stat); err != nil {
			return nil, err
		}
	}
	paths, err := filepath.Glob(filepath.Join(layout.ProductDir(variable, storage.Percentile), "*.nc"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no baselines for %s", domain.ErrMissingPeriod, variable)
	}
	sort.Strings(paths)

	used := make(map[string]bool)
	var out []indices.Output
	for _, path := range paths {
		b, err := ncio.ReadBaseline(path)
		if err != nil {
			return out, err
		}
		series := strings.TrimSuffix(filepath.Base(path), ".nc")
		for _, stat := range stats {
			if !HasStat(b, stat) {
				a.logger.Debug("baseline lacks quantile, skipping", "series", series, "stat", stat)
				continue
			}
			f, err := BaselineField(b, stat)
			if err != nil {
				return out, fmt.Errorf("%s: %w", series, err)
			}
			rows, err := a.Aggregate(f, regions)
			if err != nil {
				return out, fmt.Errorf("%s: %w", series, err)
			}
			product := BaselineProduct(series, stat)
			dst := layout.RegionalFile(variable, product)
			if err := WriteSummaries(dst, rows); err != nil {
				return out, err
			}
			used[stat] = true
			a.logger.Info("regional climatology written", "variable", variable, "product", product, "bins", len(f.Times))
			out = append(out, indices.Output{Name: product, Path: dst})
		}
	}
	for _, stat := range stats {
		if !used[stat] {
			return out, fmt.Errorf("%w: no %s baseline stores %s", domain.ErrMalformedInput, variable, stat)
		}
	}
	return out, nil
}

// LoadIndexSeries reads the regional CSV of every index the composite
// needs.
func LoadIndexSeries(layout storage.Layout) (map[string][]domain.RegionalSummary, error) {
	series := make(map[string][]domain.RegionalSummary)
	for _, name := range IndexNames() {
		variable, ok := indices.VariableOf(name)
		if !ok {
			return nil, fmt.Errorf("%w: no variable defines index %s", domain.ErrMalformedInput, name)
		}
		rows, err := ReadSummaries(layout.RegionalFile(variable, name))
		if err != nil {
			return nil, err
		}
		series[name] = rows
	}
	return series, nil
}

// RegionIDs lists the regions present in any series, sorted.
func RegionIDs(series map[string][]domain.RegionalSummary) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, rows := range series {
		for _, r := range rows {
			if !seen[r.RegionID] {
				seen[r.RegionID] = true
				ids = append(ids, r.RegionID)
			}
		}
	}
	sort.Strings(ids)
	return ids
}
