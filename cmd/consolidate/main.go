// Command consolidate merges the raw ERA5 batches of each variable into one
// time-ordered NetCDF file, checking grid consistency and coverage.
//
// Usage:
//
//	go run ./cmd/consolidate -variable wind -period 1961:2020
package main

import (
	"context"
	"flag"

	"github.com/AsociacionCA/aca-indice-climatico/internal/acquisition"
	"github.com/AsociacionCA/aca-indice-climatico/internal/app"
	"github.com/AsociacionCA/aca-indice-climatico/internal/consolidate"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

func main() {
	variable := flag.String("variable", "all", "variables to consolidate, comma separated, or all")
	periodFlag := flag.String("period", "", "expected period; every month must have data (default: the span of the raw files, which must have no missing months)")
	flag.Parse()

	app.Main("consolidate", func(ctx context.Context, env *app.Env) error {
		variables, err := app.Select(*variable, acquisition.VariableNames())
		if err != nil {
			return err
		}
		period, err := app.OptionalPeriod(*periodFlag)
		if err != nil {
			return err
		}
		for _, v := range variables {
			path, err := consolidate.Run(env.Layout, v, acquisition.ShortNames[v], period, env.Runner.Logger())
			if err != nil {
				return err
			}
			if err := env.Artifact(ctx, v, storage.Consolidated, path); err != nil {
				return err
			}
		}
		return nil
	})
}
