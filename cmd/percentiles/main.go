// Command percentiles computes the reference-period climatology of a
// variable: quantile thresholds, mean and standard deviation of its daily
// series, and the monthly climatology of its extreme indices.
//
// Usage:
//
//	go run ./cmd/percentiles -variable temperature -reference 1961:1990
package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/AsociacionCA/aca-indice-climatico/internal/app"
	"github.com/AsociacionCA/aca-indice-climatico/internal/climatology"
	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/indices"
	"github.com/AsociacionCA/aca-indice-climatico/internal/ncio"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

func main() {
	variable := flag.String("variable", "all", "variables, comma separated, or all")
	reference := flag.String("reference", climatology.DefaultReference.String(), "reference period")
	binning := flag.String("binning", string(domain.BinDayOfYear), "binning of the daily thresholds: month or dayofyear")
	quantiles := flag.String("quantiles", "0.1,0.5,0.9", "quantiles to store, comma separated")
	minSamples := flag.Int("min-samples", 0, "fewest reference values per bin (default MIN_SAMPLES)")
	tzOffset := flag.Duration("tz-offset", indices.DefaultTZOffset, "shift applied before daily precipitation sums")
	flag.Parse()

	app.Main("percentiles", func(ctx context.Context, env *app.Env) error {
		variables, err := app.Select(*variable, indices.Variables())
		if err != nil {
			return err
		}
		ref, err := domain.ParsePeriod(*reference)
		if err != nil {
			return err
		}
		bin, err := domain.ParseBinning(*binning)
		if err != nil {
			return err
		}
		qs, err := parseQuantiles(*quantiles)
		if err != nil {
			return err
		}
		opts := indices.Options{
			Reference:  ref,
			Binning:    bin,
			Quantiles:  qs,
			MinSamples: *minSamples,
			TZOffset:   *tzOffset,
		}
		if opts.MinSamples <= 0 {
			opts.MinSamples = env.Config.MinSamples
		}

		log := env.Runner.Logger()
		for _, v := range variables {
			p, err := indices.Lookup(v)
			if err != nil {
				return err
			}
			raw, err := ncio.ReadFields(env.Layout.ConsolidatedFile(v), p.Components...)
			if err != nil {
				return err
			}
			b, err := p.Build(raw, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", v, err)
			}
			for name, base := range b.Series {
				report(env, name, base, opts.MinSamples)
			}
			for name, base := range b.Indices {
				report(env, name, base, opts.MinSamples)
			}
			outs, err := p.Save(env.Layout, b)
			if err != nil {
				return err
			}
			for _, o := range outs {
				if err := env.Artifact(ctx, v, storage.Percentile, o.Path); err != nil {
					return err
				}
			}
			log.Info("climatology written", "variable", v, "reference", ref.String(), "files", len(outs))
		}
		return nil
	})
}

func report(env *app.Env, series string, b *domain.Baseline, minSamples int) {
	n := climatology.Insufficient(b, minSamples)
	if n == 0 {
		return
	}
	env.Metrics.InsufficientSamples.WithLabelValues(series).Add(float64(n))
	env.Runner.Logger().Warn("bins left NaN for lack of reference samples", "series", series, "cells", n, "min_samples", minSamples)
}

func parseQuantiles(s string) ([]float64, error) {
	var qs []float64
	for _, part := range strings.Split(s, ",") {
		q, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || q <= 0 || q >= 1 {
			return nil, fmt.Errorf("%w: quantile %q", domain.ErrMalformedInput, part)
		}
		qs = append(qs, q)
	}
	return qs, nil
}
