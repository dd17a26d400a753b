package sealevel

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

var rowHeader = []string{"station_id", "time", "height_mm", "missing_days", "flag", "month_mean", "month_std", "anomaly"}

// WriteSeries writes one station's rows as CSV.
func WriteSeries(path string, rows []Row) error {
	return storage.WriteAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(rowHeader); err != nil {
			return err
		}
		for _, r := range rows {
			if err := cw.Write([]string{
				r.StationID,
				r.Time.Format(time.RFC3339),
				ff(r.HeightMM),
				strconv.Itoa(r.MissingDays),
				r.Flag,
				ff(r.Mean),
				ff(r.Std),
				ff(r.Anomaly),
			}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// ReadSeries reads a file written by WriteSeries.
func ReadSeries(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = len(rowHeader)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedInput, path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrMalformedInput, path)
	}
	rows := make([]Row, 0, len(records)-1)
	for k, rec := range records[1:] {
		var row Row
		var perr error
		parse := func(s string) float64 {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil && perr == nil {
				perr = err
			}
			return v
		}
		row.StationID = rec[0]
		row.Time, perr = time.Parse(time.RFC3339, rec[1])
		row.HeightMM = parse(rec[2])
		if n, err := strconv.Atoi(rec[3]); err == nil {
			row.MissingDays = n
		} else if perr == nil {
			perr = err
		}
		row.Flag = rec[4]
		row.Mean = parse(rec[5])
		row.Std = parse(rec[6])
		row.Anomaly = parse(rec[7])
		if perr != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", domain.ErrMalformedInput, path, k+2, perr)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

var trendHeader = []string{
	"station_id", "station_name", "records", "mk_s", "mk_z", "mk_p", "kendall_tau", "trend",
	"sen_slope_mm_yr", "ols_slope_mm_yr", "ols_intercept", "r2",
}

// WriteTrends writes one row per station.
func WriteTrends(path string, trends []Trend) error {
	return storage.WriteAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(trendHeader); err != nil {
			return err
		}
		for _, t := range trends {
			if err := cw.Write([]string{
				t.StationID,
				t.StationName,
				strconv.Itoa(t.Records),
				ff(t.S),
				ff(t.Z),
				ff(t.P),
				ff(t.Tau),
				t.Trend,
				ff(t.SenSlope),
				ff(t.OLSSlope),
				ff(t.Intercept),
				ff(t.R2),
			}); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

func ff(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
