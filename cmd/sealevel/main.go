// Command sealevel downloads PSMSL monthly tide-gauge records for Colombian
// stations and writes their monthly anomalies and long-term trends.
//
// Usage:
//
//	go run ./cmd/sealevel -stations stations.yaml -reference 1961:1990
package main

import (
	"context"
	"flag"

	"github.com/AsociacionCA/aca-indice-climatico/internal/adapter/psmsl"
	"github.com/AsociacionCA/aca-indice-climatico/internal/app"
	"github.com/AsociacionCA/aca-indice-climatico/internal/pipeline"
	"github.com/AsociacionCA/aca-indice-climatico/internal/sealevel"
)

func main() {
	stationsFile := flag.String("stations", "", "YAML station list (default: the Colombian stations)")
	reference := flag.String("reference", "", "period of the monthly baseline (default: every record)")
	window := flag.String("window", "", "drop records outside this period")
	keepFlagged := flag.Bool("keep-flagged", false, "keep records flagged for attention")
	refresh := flag.Bool("refresh", false, "download station files even when cached")
	flag.Parse()

	app.Main("sealevel", func(ctx context.Context, env *app.Env) error {
		stations, err := sealevel.LoadStations(*stationsFile)
		if err != nil {
			return err
		}
		ref, err := app.OptionalPeriod(*reference)
		if err != nil {
			return err
		}
		win, err := app.OptionalPeriod(*window)
		if err != nil {
			return err
		}

		cfg := env.Config
		log := env.Runner.Logger()
		client := psmsl.NewClient(cfg.PSMSLBaseURL, cfg.PSMSLTimeout, env.Metrics, log)
		fetcher := sealevel.NewFetcher(client, env.Layout, pipeline.DefaultRetry(cfg.CDSMaxRetries), log, env.Metrics)
		opts := sealevel.RunOptions{
			Parse:     sealevel.ParseOptions{KeepFlagged: *keepFlagged, Window: win},
			Reference: ref,
			Refresh:   *refresh,
		}

		res, err := sealevel.Run(ctx, fetcher, env.Layout, stations, opts, log, env.Metrics)
		for _, path := range res.Files {
			if aerr := env.Artifact(ctx, "sealevel", "sealevel", path); aerr != nil {
				return aerr
			}
		}
		return err
	})
}
