// Command anomalies expresses the daily series of a variable relative to
// its stored climatology and standardizes its monthly extreme indices.
//
// Usage:
//
//	go run ./cmd/anomalies -variable precipitation -mode percentile:0.9 -period 1991:2020
package main

import (
	"context"
	"flag"

	"github.com/AsociacionCA/aca-indice-climatico/internal/anomaly"
	"github.com/AsociacionCA/aca-indice-climatico/internal/app"
	"github.com/AsociacionCA/aca-indice-climatico/internal/indices"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

func main() {
	variable := flag.String("variable", "all", "variables, comma separated, or all")
	mode := flag.String("mode", "difference", "daily anomaly: difference, standardized, rank or percentile:<q>")
	periodFlag := flag.String("period", "", "evaluation period (default: every consolidated step)")
	strict := flag.Bool("strict-reference", false, "fail when the evaluation period overlaps the reference period")
	tzOffset := flag.Duration("tz-offset", indices.DefaultTZOffset, "shift applied before daily precipitation sums")
	flag.Parse()

	app.Main("anomalies", func(ctx context.Context, env *app.Env) error {
		variables, err := app.Select(*variable, indices.Variables())
		if err != nil {
			return err
		}
		m, err := anomaly.ParseMode(*mode)
		if err != nil {
			return err
		}
		period, err := app.OptionalPeriod(*periodFlag)
		if err != nil {
			return err
		}
		opts := anomaly.RunOptions{Mode: m, Period: period, TZOffset: *tzOffset, Strict: *strict}

		for _, v := range variables {
			p, err := indices.Lookup(v)
			if err != nil {
				return err
			}
			outs, err := anomaly.Run(env.Layout, p, opts, env.Runner.Logger().With("variable", v))
			for _, o := range outs {
				if aerr := env.Artifact(ctx, v, storage.Anomaly, o.Path); aerr != nil {
					return aerr
				}
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}
