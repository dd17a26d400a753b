// Command plot renders the composite index of every region, the sea-level
// records of the tide gauges and, on request, a map of one anomaly field or
// the series of one regional CSV.
//
// Usage:
//
//	go run ./cmd/plot -reference-end 1990-12-31
//	go run ./cmd/plot -map temperature/tmax_difference -date 2015-12-20
//	go run ./cmd/plot -regional temperature/tx90_anom -region all
package main

import (
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/AsociacionCA/aca-indice-climatico/internal/app"
	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/ncio"
	"github.com/AsociacionCA/aca-indice-climatico/internal/plot"
	"github.com/AsociacionCA/aca-indice-climatico/internal/regional"
	"github.com/AsociacionCA/aca-indice-climatico/internal/sealevel"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

func main() {
	refEndFlag := flag.String("reference-end", "1990-12-31", "last day of the reference period, marked on time series")
	region := flag.String("region", "all", "regions to plot, comma separated, or all")
	stationsFile := flag.String("stations", "", "YAML station list (default: the Colombian stations)")
	mapFlag := flag.String("map", "", "anomaly field to map as <variable>/<name>")
	dateFlag := flag.String("date", "", "day to map, YYYY-MM-DD (default: last step)")
	regionalFlag := flag.String("regional", "", "regional CSV to plot as <variable>/<product>; -region selects regions")
	flag.Parse()

	app.Main("plot", func(ctx context.Context, env *app.Env) error {
		refEnd, err := time.Parse(time.DateOnly, *refEndFlag)
		if err != nil {
			return fmt.Errorf("%w: -reference-end: %v", domain.ErrMalformedInput, err)
		}
		p := plotter{ctx: ctx, env: env}

		if err := p.composites(*region, refEnd); err != nil {
			return err
		}
		if err := p.seaLevel(*stationsFile); err != nil {
			return err
		}
		if *mapFlag != "" {
			if err := p.field(*mapFlag, *dateFlag); err != nil {
				return err
			}
		}
		if *regionalFlag != "" {
			if err := p.regional(*regionalFlag, *region, refEnd); err != nil {
				return err
			}
		}
		if p.written == 0 {
			return fmt.Errorf("%w: nothing to plot under %s", domain.ErrMissingPeriod, env.Layout.Root)
		}
		return nil
	})
}

type plotter struct {
	ctx     context.Context
	env     *app.Env
	written int
}

func (p *plotter) artifact(variable, path string) error {
	p.written++
	return p.env.Artifact(p.ctx, variable, "plot", path)
}

func (p *plotter) composites(selected string, refEnd time.Time) error {
	paths, err := filepath.Glob(filepath.Join(filepath.Dir(p.env.Layout.CompositeFile("_")), "*.csv"))
	if err != nil {
		return err
	}
	byID := make(map[string]string, len(paths))
	ids := make([]string, 0, len(paths))
	for _, path := range paths {
		id := strings.TrimSuffix(filepath.Base(path), ".csv")
		byID[id] = path
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		p.env.Runner.Logger().Info("no composite files, skipping index plots")
		return nil
	}
	ids, err = app.Select(selected, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		rows, err := regional.ReadComposite(byID[id])
		if err != nil {
			return err
		}
		out := p.env.Layout.PlotFile("ica_" + id)
		if err := plot.Composite(out, id, rows, refEnd); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		if err := p.artifact("composite", out); err != nil {
			return err
		}

		s := plot.Series{Title: "ICA " + id, YLabel: "Standardized anomaly"}
		for _, r := range rows {
			s.Times = append(s.Times, r.Time)
			s.Values = append(s.Values, r.Index)
		}
		out = p.env.Layout.PlotFile("ica_series_" + id)
		if err := plot.TimeSeries(out, s, refEnd); err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		if err := p.artifact("composite", out); err != nil {
			return err
		}
	}
	return nil
}

func (p *plotter) seaLevel(stationsFile string) error {
	stations, err := sealevel.LoadStations(stationsFile)
	if err != nil {
		return err
	}
	var present []domain.Station
	for _, st := range stations {
		if ok, _ := storage.Exists(sealevel.SeriesPath(p.env.Layout, st.ID)); ok {
			present = append(present, st)
		}
	}
	if len(present) == 0 {
		p.env.Runner.Logger().Info("no sea-level series, skipping sea-level plot")
		return nil
	}
	series, err := sealevel.Load(p.env.Layout, present)
	if err != nil {
		return err
	}
	out := p.env.Layout.PlotFile("sealevel")
	if err := plot.SeaLevel(out, series); err != nil {
		return err
	}
	return p.artifact("sealevel", out)
}

func (p *plotter) field(spec, date string) error {
	variable, name, ok := strings.Cut(spec, "/")
	if !ok {
		return fmt.Errorf("%w: -map %q: want <variable>/<name>", domain.ErrMalformedInput, spec)
	}
	var day time.Time
	if date != "" {
		var err error
		if day, err = time.Parse(time.DateOnly, date); err != nil {
			return fmt.Errorf("%w: -date: %v", domain.ErrMalformedInput, err)
		}
	}
	fields, err := ncio.ReadFields(p.env.Layout.AnomalyFile(variable, name))
	if err != nil {
		return err
	}
	f := fields[0]
	step, err := plot.StepAt(f, day)
	if err != nil {
		return err
	}
	out := p.env.Layout.PlotFile(fmt.Sprintf("map_%s_%s", name, f.Times[step].Format("20060102")))
	if err := plot.Map(out, f, step); err != nil {
		return err
	}
	return p.artifact(variable, out)
}

func (p *plotter) regional(spec, selected string, refEnd time.Time) error {
	variable, product, ok := strings.Cut(spec, "/")
	if !ok {
		return fmt.Errorf("%w: -regional %q: want <variable>/<product>", domain.ErrMalformedInput, spec)
	}
	rows, err := regional.ReadSummaries(p.env.Layout.RegionalFile(variable, product))
	if err != nil {
		return err
	}
	var series []plot.Series
	if selected == "all" {
		series, err = plot.RegionSeries(rows, product, "")
		if err != nil {
			return err
		}
	} else {
		for _, id := range strings.Split(selected, ",") {
			s, err := plot.RegionSeries(rows, product, id)
			if err != nil {
				return err
			}
			series = append(series, s...)
		}
	}
	for _, s := range series {
		out := p.env.Layout.PlotFile(fmt.Sprintf("regional_%s_%s", product, s.ID))
		if err := plot.TimeSeries(out, s, refEnd); err != nil {
			return fmt.Errorf("%s: %w", s.ID, err)
		}
		if err := p.artifact(variable, out); err != nil {
			return err
		}
	}
	return nil
}
