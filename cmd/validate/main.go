// Command validate checks the integrity of a pipeline data tree: raw batches
// against the catalog, consolidated and climatology files, anomaly grids,
// composite arithmetic and recorded artifact checksums. Stages that have not
// produced output yet are skipped.
//
// Usage:
//
//	go run ./cmd/validate -data-dir data
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/AsociacionCA/aca-indice-climatico/internal/acquisition"
	"github.com/AsociacionCA/aca-indice-climatico/internal/catalog"
	"github.com/AsociacionCA/aca-indice-climatico/internal/config"
	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/indices"
	"github.com/AsociacionCA/aca-indice-climatico/internal/ncio"
	"github.com/AsociacionCA/aca-indice-climatico/internal/regional"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name    string
	checked int
	errors  []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataDir := flag.String("data-dir", "", "data root (default DATA_DIR)")
	catalogPath := flag.String("catalog", "", "catalog database (default CATALOG_PATH)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
		if *catalogPath == "" {
			cfg.CatalogPath = storage.NewLayout(*dataDir).CatalogFile()
		}
	}
	if *catalogPath != "" {
		cfg.CatalogPath = *catalogPath
	}

	if code := run(context.Background(), storage.NewLayout(cfg.DataDir), cfg.CatalogPath); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, layout storage.Layout, catalogPath string) int {
	fmt.Println("=== Climate Index Data Integrity Validation ===")
	fmt.Println()

	cat, err := catalog.Open(catalogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open catalog: %v\n", err)
		return 1
	}
	defer cat.Close()

	grids := make(map[string]domain.Grid)
	phases := []*phase{
		validateRawBatches(ctx, cat),
		validateConsolidated(layout, grids),
		validateClimatology(layout, grids),
		validateAnomalies(layout, grids),
		validateComposites(layout),
		validateArtifacts(ctx, cat),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		switch {
		case !p.passed():
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		case p.checked == 0:
			status = "\033[33mSKIP\033[0m"
		}
		fmt.Printf("  %-42s %s (%d checked)\n", p.name, status, p.checked)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phases ──

func validateRawBatches(ctx context.Context, cat *catalog.Catalog) *phase {
	p := &phase{name: "Raw batches match catalog"}
	for _, v := range acquisition.VariableNames() {
		batches, err := cat.Batches(ctx, v)
		if err != nil {
			p.errorf("%s: %v", v, err)
			continue
		}
		for _, b := range batches {
			if b.Status != catalog.StatusComplete {
				continue
			}
			p.checked++
			ok, size := storage.Exists(b.Path)
			switch {
			case !ok:
				p.errorf("%s %s: %s missing", v, b.Period, b.Path)
			case size != b.Bytes:
				p.errorf("%s %s: %s has %d bytes, catalog says %d", v, b.Period, b.Path, size, b.Bytes)
			}
		}
	}
	return p
}

func validateConsolidated(layout storage.Layout, grids map[string]domain.Grid) *phase {
	p := &phase{name: "Consolidated files well formed"}
	for _, v := range acquisition.VariableNames() {
		path := layout.ConsolidatedFile(v)
		if ok, _ := storage.Exists(path); !ok {
			continue
		}
		p.checked++
		fields, err := ncio.ReadFields(path, acquisition.ShortNames[v]...)
		if err != nil {
			p.errorf("%s: %v", v, err)
			continue
		}
		for _, f := range fields {
			if err := f.Validate(); err != nil {
				p.errorf("%s/%s: %v", v, f.Variable, err)
			}
		}
		grids[v] = fields[0].Grid
	}
	return p
}

func validateClimatology(layout storage.Layout, grids map[string]domain.Grid) *phase {
	p := &phase{name: "Climatology thresholds ordered"}
	for _, v := range indices.Variables() {
		prof, _ := indices.Lookup(v)
		if ok, _ := storage.Exists(layout.PercentileFile(v, prof.Series[0])); !ok {
			continue
		}
		p.checked++
		b, err := prof.Load(layout)
		if err != nil {
			p.errorf("%s: %v", v, err)
			continue
		}
		for name, base := range b.Series {
			if g, ok := grids[v]; ok {
				if err := base.Grid.Mismatch(g); err != nil {
					p.errorf("%s/%s: %v", v, name, err)
				}
			}
			if bad := unordered(base); bad > 0 {
				p.errorf("%s/%s: %d cells with decreasing thresholds", v, name, bad)
			}
		}
	}
	return p
}

// unordered counts bin/cell pairs whose finite thresholds decrease with
// the quantile.
func unordered(b *domain.Baseline) int {
	bad := 0
	cells := b.Grid.Cells()
	for bin := 0; bin < b.Binning.Bins(); bin++ {
		for c := 0; c < cells; c++ {
			for q := 1; q < len(b.Quantiles); q++ {
				lo, hi := b.Threshold(bin, q-1, c), b.Threshold(bin, q, c)
				if !math.IsNaN(lo) && !math.IsNaN(hi) && hi < lo {
					bad++
					break
				}
			}
		}
	}
	return bad
}

func validateAnomalies(layout storage.Layout, grids map[string]domain.Grid) *phase {
	p := &phase{name: "Anomaly grids match consolidated"}
	for _, v := range indices.Variables() {
		paths, _ := filepath.Glob(filepath.Join(layout.ProductDir(v, storage.Anomaly), "*.nc"))
		for _, path := range paths {
			p.checked++
			fields, err := ncio.ReadFields(path)
			if err != nil {
				p.errorf("%s: %v", path, err)
				continue
			}
			g, ok := grids[v]
			if !ok {
				continue
			}
			if err := fields[0].Grid.Mismatch(g); err != nil {
				p.errorf("%s: %v", path, err)
			}
		}
	}
	return p
}

func validateComposites(layout storage.Layout) *phase {
	p := &phase{name: "Composite index arithmetic"}
	paths, _ := filepath.Glob(filepath.Join(filepath.Dir(layout.CompositeFile("_")), "*.csv"))
	for _, path := range paths {
		p.checked++
		rows, err := regional.ReadComposite(path)
		if err != nil {
			p.errorf("%s: %v", path, err)
			continue
		}
		for _, r := range rows {
			want := compositeOf(r.Values)
			if !floatEq(want, r.Index) {
				p.errorf("%s %s: index %g, components give %g", filepath.Base(path), r.Time.Format("2006-01"), r.Index, want)
			}
		}
	}
	return p
}

// compositeOf is (T90 - T10 + W + P + D) / 5, NaN when any term is.
func compositeOf(v []float64) float64 {
	if len(v) != len(regional.Components) {
		return math.NaN()
	}
	return (v[0] - v[1] + v[2] + v[3] + v[4]) / 5
}

func validateArtifacts(ctx context.Context, cat *catalog.Catalog) *phase {
	p := &phase{name: "Artifact checksums"}
	arts, err := cat.Artifacts(ctx, "")
	if err != nil {
		p.errorf("list artifacts: %v", err)
		return p
	}
	for _, a := range arts {
		p.checked++
		sum, _, err := storage.Checksum(filepath.FromSlash(a.Path))
		if err != nil {
			p.errorf("%s (%s): %v", a.Path, a.Stage, err)
			continue
		}
		if sum != a.SHA256 {
			p.errorf("%s (%s): checksum changed since run %s", a.Path, a.Stage, a.RunID)
		}
	}
	return p
}

func floatEq(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) < 1e-9
}
