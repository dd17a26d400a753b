// Command composite combines the regional monthly index anomalies into the
// actuarial climate index, (T90 - T10 + W + P + D) / 5, per region.
//
// Usage:
//
//	go run ./cmd/composite -region 08
package main

import (
	"context"
	"flag"
	"strings"

	"github.com/AsociacionCA/aca-indice-climatico/internal/app"
	"github.com/AsociacionCA/aca-indice-climatico/internal/regional"
)

func main() {
	region := flag.String("region", "all", "region ids, comma separated, or all")
	flag.Parse()

	app.Main("composite", func(ctx context.Context, env *app.Env) error {
		series, err := regional.LoadIndexSeries(env.Layout)
		if err != nil {
			return err
		}
		ids, err := app.Select(*region, regional.RegionIDs(series))
		if err != nil {
			return err
		}
		log := env.Runner.Logger()
		for _, id := range ids {
			rows, err := regional.Composite(series, id)
			if err != nil {
				return err
			}
			path := env.Layout.CompositeFile(safeName(id))
			if err := regional.WriteComposite(path, rows); err != nil {
				return err
			}
			if err := env.Artifact(ctx, "composite", id, path); err != nil {
				return err
			}
			log.Info("composite written", "region", id, "months", len(rows))
		}
		return nil
	})
}

// safeName keeps region ids usable as file names.
func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, id)
}
