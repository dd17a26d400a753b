package regional

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

var summaryHeader = []string{"region_id", "region_name", "time", "value", "cells"}

// WriteSummaries writes rows as CSV to path atomically.
func WriteSummaries(path string, rows []domain.RegionalSummary) error {
	return storage.WriteAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(summaryHeader); err != nil {
			return err
		}
		for _, r := range rows {
			rec := []string{
				r.RegionID,
				r.RegionName,
				formatTime(r.Time),
				formatFloat(r.Value),
				strconv.Itoa(r.Cells),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// ReadSummaries reads a file written by WriteSummaries.
func ReadSummaries(path string) ([]domain.RegionalSummary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(summaryHeader)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedInput, path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", domain.ErrMalformedInput, path)
	}
	out := make([]domain.RegionalSummary, 0, len(records)-1)
	for k, rec := range records[1:] {
		ts, err := parseTime(rec[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", domain.ErrMalformedInput, path, k+2, err)
		}
		v, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", domain.ErrMalformedInput, path, k+2, err)
		}
		n, err := strconv.Atoi(rec[4])
		if err != nil {
			return nil, fmt.Errorf("%w: %s line %d: %v", domain.ErrMalformedInput, path, k+2, err)
		}
		out = append(out, domain.RegionalSummary{RegionID: rec[0], RegionName: rec[1], Time: ts, Value: v, Cells: n})
	}
	return out, nil
}

func formatTime(t time.Time) string {
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
