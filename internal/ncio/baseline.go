package ncio

import (
	"fmt"
	"math"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

// WriteBaseline writes thresholds (bin, quantile, latitude, longitude) and
// mean/std/count (bin, latitude, longitude) to path atomically.
func WriteBaseline(path string, b *domain.Baseline) error {
	if err := b.Validate(); err != nil {
		return err
	}
	return storage.WriteAtomicFile(path, func(tmp string) error {
		cw, err := cdf.OpenWriter(tmp)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := writeBaselineVars(cw, b); err != nil {
			_ = cw.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		if err := cw.Close(); err != nil {
			return fmt.Errorf("close %s: %w", path, err)
		}
		return nil
	})
}

func writeBaselineVars(cw *cdf.CDFWriter, b *domain.Baseline) error {
	nb, nq := b.Binning.Bins(), len(b.Quantiles)
	nlat, nlon := len(b.Grid.Lat), len(b.Grid.Lon)

	bins := make([]int32, nb)
	for k := range bins {
		bins[k] = int32(k + 1)
	}
	if err := addVar(cw, "bin", bins, []string{"bin"}, "long_name", string(b.Binning)); err != nil {
		return err
	}
	if err := addVar(cw, "quantile", b.Quantiles, []string{"quantile"}, "units", "1"); err != nil {
		return err
	}
	if err := addCoords(cw, b.Grid); err != nil {
		return err
	}
	if err := addVar(cw, "threshold", nest4(b.Thresholds, nb, nq, nlat, nlon),
		[]string{"bin", "quantile", "latitude", "longitude"}, "units", b.Units); err != nil {
		return err
	}
	statDims := []string{"bin", "latitude", "longitude"}
	if err := addVar(cw, "mean", nest3(b.Mean, nb, nlat, nlon), statDims, "units", b.Units); err != nil {
		return err
	}
	if err := addVar(cw, "std", nest3(b.Std, nb, nlat, nlon), statDims, "units", b.Units); err != nil {
		return err
	}
	if err := addVar(cw, "count", nest3Int(b.Count, nb, nlat, nlon), statDims, "long_name", "samples in reference period"); err != nil {
		return err
	}
	keys := []string{"Conventions", "variable", "units", "binning", "reference_period"}
	return addGlobals(cw, keys, map[string]interface{}{
		"Conventions":      "CF-1.8",
		"variable":         b.Variable,
		"units":            b.Units,
		"binning":          string(b.Binning),
		"reference_period": b.Reference.String(),
	})
}

// ReadBaseline reads a file written by WriteBaseline.
func ReadBaseline(path string) (*domain.Baseline, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer nc.Close()

	globals := globalAttrs(nc.Attributes())
	binning, err := domain.ParseBinning(globals["binning"])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ref, err := domain.ParsePeriod(globals["reference_period"])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	_, lat, err := readAxis(nc, latNames)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	_, lon, err := readAxis(nc, lonNames)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	_, quantiles, err := readAxis(nc, []string{"quantile"})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	b := &domain.Baseline{
		Variable:  globals["variable"],
		Units:     globals["units"],
		Grid:      domain.Grid{Lat: lat, Lon: lon},
		Binning:   binning,
		Reference: ref,
		Quantiles: quantiles,
	}
	for name, dst := range map[string]*[]float64{"threshold": &b.Thresholds, "mean": &b.Mean, "std": &b.Std} {
		v, err := nc.GetVariable(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: variable %q: %v", domain.ErrMalformedInput, path, name, err)
		}
		data, _, err := flatten(v.Values)
		if err != nil {
			return nil, fmt.Errorf("%s: %s: %w", path, name, err)
		}
		*dst = data
	}
	v, err := nc.GetVariable("count")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: variable \"count\": %v", domain.ErrMalformedInput, path, err)
	}
	counts, _, err := flatten(v.Values)
	if err != nil {
		return nil, fmt.Errorf("%s: count: %w", path, err)
	}
	b.Count = make([]int, len(counts))
	for k, c := range counts {
		if !math.IsNaN(c) {
			b.Count[k] = int(c)
		}
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}
