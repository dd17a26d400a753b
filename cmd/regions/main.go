// Command regions averages every anomaly field, or selected statistics of
// every baseline climatology, over administrative regions read from a
// polygon shapefile or a YAML region list.
//
// Usage:
//
//	go run ./cmd/regions -shapefile data/shp/departamentos.shp -id-field DPTO -name-field NOMBRE
//	go run ./cmd/regions -regions regions.yaml -mask area
//	go run ./cmd/regions -regions regions.yaml -product percentile -stats mean,p90
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/AsociacionCA/aca-indice-climatico/internal/adapter/shapefile"
	"github.com/AsociacionCA/aca-indice-climatico/internal/app"
	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/indices"
	"github.com/AsociacionCA/aca-indice-climatico/internal/regional"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

func main() {
	variable := flag.String("variable", "all", "variables, comma separated, or all")
	shp := flag.String("shapefile", "", "polygon shapefile with one region per record")
	idField := flag.String("id-field", "", "attribute holding the region id (required with -shapefile)")
	nameField := flag.String("name-field", "", "attribute holding the region name (default: id)")
	list := flag.String("regions", "", "YAML region list; each entry's shapefile dissolves into one region")
	mask := flag.String("mask", string(regional.MaskCenter), "cell selection: center or area")
	cacheSize := flag.Int("mask-cache", 256, "masks kept in memory")
	product := flag.String("product", storage.Anomaly, "input product: anomaly or percentile")
	stats := flag.String("stats", regional.StatMean, "baseline statistics for -product percentile: mean, std or p<percent>, comma separated")
	flag.Parse()

	if (*shp == "") == (*list == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -shapefile or -regions is required")
		flag.Usage()
		os.Exit(1)
	}
	if *shp != "" && *idField == "" {
		fmt.Fprintln(os.Stderr, "-id-field is required with -shapefile")
		os.Exit(1)
	}

	if *product != storage.Anomaly && *product != storage.Percentile {
		fmt.Fprintf(os.Stderr, "unknown -product %q (want anomaly or percentile)\n", *product)
		os.Exit(1)
	}

	app.Main("regions", func(ctx context.Context, env *app.Env) error {
		variables, err := app.Select(*variable, indices.Variables())
		if err != nil {
			return err
		}
		statList := strings.Split(*stats, ",")
		mode, err := regional.ParseMaskMode(*mask)
		if err != nil {
			return err
		}
		var regions []domain.Region
		if *shp != "" {
			regions, err = shapefile.Load(*shp, *idField, *nameField)
		} else {
			regions, err = regional.LoadRegionList(*list)
		}
		if err != nil {
			return err
		}
		log := env.Runner.Logger()
		log.Info("regions loaded", "regions", len(regions), "mask", string(mode))

		agg := regional.NewAggregator(regional.NewCachedMasker(regional.GridMasker{}, *cacheSize), mode, log, env.Metrics)
		for _, v := range variables {
			var outs []indices.Output
			if *product == storage.Percentile {
				outs, err = agg.RunBaselines(env.Layout, v, statList, regions)
			} else {
				outs, err = agg.Run(env.Layout, v, regions)
			}
			for _, o := range outs {
				if aerr := env.Artifact(ctx, v, storage.Regional, o.Path); aerr != nil {
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
