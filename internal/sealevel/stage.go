package sealevel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/observability"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

// TrendsFile is the name of the per-station trend table.
const TrendsFile = "trends.csv"

// RunOptions configures Run.
type RunOptions struct {
	Parse     ParseOptions
	Reference domain.Period
	Refresh   bool
}

// Result lists what Run produced.
type Result struct {
	Series []*Series
	Files  []string
	Failed []string
}

// SeriesPath is processed/sealevel/<station>.csv.
func SeriesPath(layout storage.Layout, stationID string) string {
	return filepath.Join(layout.SeaLevelDir(), stationID+".csv")
}

// Run fetches, parses and processes every station, writing one series CSV
// per station and the trend table. A station that cannot be fetched or has
// no valid records is skipped; the error lists them once the others are
// done.
func Run(ctx context.Context, f *Fetcher, layout storage.Layout, stations []domain.Station, opts RunOptions, logger *slog.Logger, metrics *observability.Metrics) (Result, error) {
	var res Result
	var trends []Trend
	for _, st := range stations {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		log := logger.With("station", st.ID, "name", st.Name)
		s, err := station(ctx, f, st, opts, metrics)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return res, err
			}
			log.Error("station failed", "error", err)
			res.Failed = append(res.Failed, st.ID)
			continue
		}
		path := SeriesPath(layout, st.ID)
		if err := WriteSeries(path, s.Rows); err != nil {
			return res, err
		}
		log.Info("station processed", "records", len(s.Rows), "rejected", s.Rejected,
			"trend", s.Trend.Trend, "sen_slope_mm_yr", s.Trend.SenSlope)
		res.Series = append(res.Series, s)
		res.Files = append(res.Files, path)
		trends = append(trends, s.Trend)
	}

	if len(trends) > 0 {
		path := filepath.Join(layout.SeaLevelDir(), TrendsFile)
		if err := WriteTrends(path, trends); err != nil {
			return res, err
		}
		res.Files = append(res.Files, path)
	}
	if len(res.Failed) > 0 {
		return res, fmt.Errorf("%d stations failed: %s", len(res.Failed), strings.Join(res.Failed, ", "))
	}
	return res, nil
}

func station(ctx context.Context, f *Fetcher, st domain.Station, opts RunOptions, metrics *observability.Metrics) (*Series, error) {
	path, err := f.Fetch(ctx, st, opts.Refresh)
	if err != nil {
		return nil, err
	}
	parsed, err := ParseFile(path, st.ID, opts.Parse)
	if err != nil {
		return nil, err
	}
	for reason, n := range parsed.Rejected {
		metrics.RecordsRejected.WithLabelValues(reason).Add(float64(n))
	}
	return Process(st, parsed, opts.Reference)
}

// Load rebuilds the series of stations from their CSVs, recomputing the
// trends.
func Load(layout storage.Layout, stations []domain.Station) ([]*Series, error) {
	var out []*Series
	for _, st := range stations {
		rows, err := ReadSeries(SeriesPath(layout, st.ID))
		if err != nil {
			return nil, err
		}
		records := make([]domain.SeaLevelRecord, len(rows))
		for k, r := range rows {
			records[k] = r.SeaLevelRecord
		}
		out = append(out, &Series{Station: st, Rows: rows, Trend: Trends(st, records)})
	}
	return out, nil
}
