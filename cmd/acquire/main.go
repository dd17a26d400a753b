// Command acquire downloads hourly ERA5 single-level data from the
// Copernicus Climate Data Store, one batch per year (or month), skipping
// batches the catalog already holds.
//
// Usage:
//
//	go run ./cmd/acquire -variable temperature -period 1961:2020
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/AsociacionCA/aca-indice-climatico/internal/acquisition"
	"github.com/AsociacionCA/aca-indice-climatico/internal/adapter/cds"
	"github.com/AsociacionCA/aca-indice-climatico/internal/app"
	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/pipeline"
)

func main() {
	variable := flag.String("variable", "all", "variables to download: "+strings.Join(acquisition.VariableNames(), ", ")+" or all")
	periodFlag := flag.String("period", "1961:2020", "period to download, YYYY:YYYY or YYYY-MM-DD:YYYY-MM-DD")
	batch := flag.String("batch", acquisition.ByYear, "batch size: year or month")
	areaFlag := flag.String("area", "", "bounding box N,W,S,E in degrees (default Colombia)")
	flag.Parse()

	if *batch != acquisition.ByYear && *batch != acquisition.ByMonth {
		fmt.Fprintf(os.Stderr, "invalid -batch %q\n", *batch)
		flag.Usage()
		os.Exit(1)
	}

	app.Main("acquire", func(ctx context.Context, env *app.Env) error {
		if err := env.Config.RequireCDSKey(); err != nil {
			return err
		}
		variables, err := app.Select(*variable, acquisition.VariableNames())
		if err != nil {
			return err
		}
		period, err := domain.ParsePeriod(*periodFlag)
		if err != nil {
			return err
		}
		area, err := cds.ParseArea(*areaFlag)
		if err != nil {
			return err
		}

		cfg := env.Config
		client := cds.NewClient(cfg.CDSURL, cfg.CDSKey, cfg.CDSDataset, cfg.CDSTimeout, cfg.CDSPollInterval, env.Metrics, env.Logger)
		acq := acquisition.New(client, env.Catalog, pipeline.DefaultRetry(cfg.CDSMaxRetries), env.Runner.Logger(), env.Metrics)

		var failed error
		for _, v := range variables {
			req := acquisition.Request{Variable: v, Period: period, Area: area, Batch: *batch}
			batches, err := acquisition.Plan(req, env.Layout)
			if err != nil {
				return err
			}
			res, err := acq.Run(ctx, req, batches)
			for _, b := range res.Downloaded {
				if aerr := env.Artifact(ctx, b.Variable, "raw", b.Path); aerr != nil {
					return aerr
				}
			}
			env.Runner.Logger().Info("variable acquired", "variable", v,
				"downloaded", len(res.Downloaded), "skipped", len(res.Skipped), "failed", len(res.Failed))
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				failed = fmt.Errorf("%s: %w", v, err)
			}
		}
		return failed
	})
}
