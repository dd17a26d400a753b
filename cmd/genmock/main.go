// Command genmock writes synthetic ERA5 batches and PSMSL station files
// into a data directory so every stage can run without network access.
// The raw layout and catalog rows match what acquire and sealevel produce,
// so consolidate, percentiles and validate accept the output unchanged.
//
// Usage:
//
//	go run ./cmd/genmock -data-dir data/mock -period 1961:1995
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/AsociacionCA/aca-indice-climatico/internal/acquisition"
	"github.com/AsociacionCA/aca-indice-climatico/internal/adapter/psmsl"
	"github.com/AsociacionCA/aca-indice-climatico/internal/catalog"
	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/ncio"
	"github.com/AsociacionCA/aca-indice-climatico/internal/sealevel"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

// genTime stamps catalog rows so repeated runs produce identical databases.
var genTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

type options struct {
	period    domain.Period
	grid      domain.Grid
	stepHours int
	seed      int64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataDir := flag.String("data-dir", "data/mock", "root of the generated data tree")
	periodFlag := flag.String("period", "1961:1995", "years to generate")
	stationsFile := flag.String("stations", "", "YAML station list (default: Colombian gauges)")
	stepHours := flag.Int("step-hours", 6, "hours between generated time steps")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	period, err := domain.ParsePeriod(*periodFlag)
	if err != nil {
		return err
	}
	if *stepHours <= 0 || 24%*stepHours != 0 {
		return fmt.Errorf("%w: -step-hours must divide 24", domain.ErrMalformedInput)
	}
	stations, err := sealevel.LoadStations(*stationsFile)
	if err != nil {
		return err
	}

	domain.SetClock(clockwork.NewFakeClockAt(genTime))
	defer domain.SetClock(nil)

	layout := storage.NewLayout(*dataDir)
	cat, err := catalog.Open(layout.CatalogFile())
	if err != nil {
		return err
	}
	defer cat.Close()

	opts := options{period: period, grid: mockGrid(), stepHours: *stepHours, seed: *seed}
	ctx := context.Background()
	for _, v := range acquisition.VariableNames() {
		n, err := writeVariable(ctx, layout, cat, v, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", v, err)
		}
		log.Printf("%s: %d batches", v, n)
	}
	for k, st := range stations {
		path := layout.RawPSMSL(st.ID, psmsl.Extension(st.Product))
		rng := rand.New(rand.NewSource(*seed + int64(k) + 1000))
		if err := storage.WriteAtomic(path, func(w io.Writer) error {
			return writeStation(w, period, rng)
		}); err != nil {
			return fmt.Errorf("station %s: %w", st.ID, err)
		}
	}
	log.Printf("stations: %d files", len(stations))
	return nil
}

// mockGrid covers northern Colombia at one degree, latitude descending as
// ERA5 delivers it.
func mockGrid() domain.Grid {
	var g domain.Grid
	for lat := 12.0; lat >= 4; lat-- {
		g.Lat = append(g.Lat, lat)
	}
	for lon := -78.0; lon <= -72; lon++ {
		g.Lon = append(g.Lon, lon)
	}
	return g
}

// writeVariable writes one yearly batch per year and marks it complete in
// the catalog.
func writeVariable(ctx context.Context, layout storage.Layout, cat *catalog.Catalog, variable string, opts options) (int, error) {
	years := opts.period.Years()
	for _, y := range years {
		rng := rand.New(rand.NewSource(opts.seed + int64(y)*31 + int64(len(variable))))
		fields := yearFields(variable, y, opts, rng)
		path := layout.RawERA5(variable, y, 0)
		if err := ncio.WriteFields(path, fields...); err != nil {
			return 0, err
		}
		_, size, err := storage.Checksum(path)
		if err != nil {
			return 0, err
		}
		err = cat.UpsertBatch(ctx, catalog.Batch{
			Variable: variable,
			Period:   fmt.Sprintf("%04d", y),
			Path:     path,
			Status:   catalog.StatusComplete,
			Bytes:    size,
			Attempts: 1,
		})
		if err != nil {
			return 0, err
		}
	}
	return len(years), nil
}

func yearTimes(year, stepHours int) []time.Time {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)
	var out []time.Time
	for t := start; t.Before(end); t = t.Add(time.Duration(stepHours) * time.Hour) {
		out = append(out, t)
	}
	return out
}

// yearFields fills the ERA5 short-name variables of one batch.
func yearFields(variable string, year int, opts options, rng *rand.Rand) []*domain.Field {
	times := yearTimes(year, opts.stepHours)
	names := acquisition.ShortNames[variable]
	fields := make([]*domain.Field, len(names))
	for k, name := range names {
		f := domain.NewField(name, units(name), opts.grid, times)
		for t, ts := range times {
			step := f.Step(t)
			for i, lat := range opts.grid.Lat {
				for j := range opts.grid.Lon {
					step[opts.grid.Index(i, j)] = value(name, ts, lat, rng)
				}
			}
		}
		fields[k] = f
	}
	return fields
}

func units(name string) string {
	switch name {
	case "t2m":
		return "K"
	case "tp":
		return "m"
	default:
		return "m s**-1"
	}
}

// value draws one sample with a seasonal cycle, a diurnal cycle for
// temperature and a slow warming trend.
func value(name string, t time.Time, lat float64, rng *rand.Rand) float64 {
	doy := float64(t.YearDay())
	season := math.Cos(2 * math.Pi * (doy - 105) / 365.25)
	years := float64(t.Year() - 1961)
	switch name {
	case "t2m":
		diurnal := math.Sin(2 * math.Pi * (float64(t.Hour()) - 9) / 24)
		return 299 - 0.3*(12-lat) + 1.5*season + 4*diurnal + 0.02*years + rng.NormFloat64()
	case "tp":
		if rng.Float64() > 0.25+0.15*season {
			return 0
		}
		return rng.ExpFloat64() * 0.002
	case "u10":
		return -3 + 1.5*season + 2*rng.NormFloat64()
	default:
		return 1 + 2*rng.NormFloat64()
	}
}

// writeStation writes monthly rows in the PSMSL layout with a rising trend
// and a few missing and flagged months.
func writeStation(w io.Writer, period domain.Period, rng *rand.Rand) error {
	for _, y := range period.Years() {
		for m := 0; m < 12; m++ {
			dy := float64(y) + (float64(m)+0.5)/12
			height := 7000 + 2*float64(y-1961) + 40*math.Sin(2*math.Pi*float64(m)/12) + 15*rng.NormFloat64()
			h, flag := fmt.Sprintf("%6.0f", height), "000"
			switch r := rng.Float64(); {
			case r < 0.02:
				h = "-99999"
			case r < 0.04:
				flag = "001"
			}
			if _, err := fmt.Fprintf(w, "%10.4f;%s; %d;%s\n", dy, h, rng.Intn(3), flag); err != nil {
				return err
			}
		}
	}
	return nil
}
