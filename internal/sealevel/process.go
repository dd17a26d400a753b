package sealevel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// MonthlyBaseline is the mean and sample standard deviation of each
// calendar month. Index 0 is January.
type MonthlyBaseline struct {
	Mean  [12]float64
	Std   [12]float64
	Count [12]int
}

// Baseline computes per-month statistics from records inside ref, or from
// all records when ref is zero. Months with fewer than two records have a
// NaN std.
func Baseline(records []domain.SeaLevelRecord, ref domain.Period) MonthlyBaseline {
	var groups [12][]float64
	for _, r := range records {
		if !ref.IsZero() && !ref.Contains(r.Time) {
			continue
		}
		m := int(r.Time.Month()) - 1
		groups[m] = append(groups[m], r.HeightMM)
	}
	var b MonthlyBaseline
	for m, vals := range groups {
		b.Count[m] = len(vals)
		switch len(vals) {
		case 0:
			b.Mean[m], b.Std[m] = math.NaN(), math.NaN()
		case 1:
			b.Mean[m], b.Std[m] = vals[0], math.NaN()
		default:
			b.Mean[m], b.Std[m] = stat.MeanStdDev(vals, nil)
		}
	}
	return b
}

// Row is a record with its month's baseline and standardized anomaly.
type Row struct {
	domain.SeaLevelRecord
	Mean    float64
	Std     float64
	Anomaly float64
}

// Anomalies standardizes every record against its calendar month.
func Anomalies(records []domain.SeaLevelRecord, b MonthlyBaseline) []Row {
	rows := make([]Row, len(records))
	for k, r := range records {
		m := int(r.Time.Month()) - 1
		a := math.NaN()
		if std := b.Std[m]; std > 0 {
			a = (r.HeightMM - b.Mean[m]) / std
		}
		rows[k] = Row{SeaLevelRecord: r, Mean: b.Mean[m], Std: b.Std[m], Anomaly: a}
	}
	return rows
}

// Trend summarizes the long-term change at one station.
type Trend struct {
	StationID   string
	StationName string
	Records     int
	MannKendall
	SenSlope  float64 // mm/yr
	OLSSlope  float64 // mm/yr
	Intercept float64
	R2        float64
}

// Trends computes Mann-Kendall, Sen and least-squares trends of the
// heights against decimal years.
func Trends(st domain.Station, records []domain.SeaLevelRecord) Trend {
	x := make([]float64, len(records))
	y := make([]float64, len(records))
	for k, r := range records {
		x[k] = TimeToDecimalYear(r.Time)
		y[k] = r.HeightMM
	}
	alpha, beta, r2 := LeastSquares(x, y)
	return Trend{
		StationID:   st.ID,
		StationName: st.Name,
		Records:     len(records),
		MannKendall: MannKendallTest(y),
		SenSlope:    SenSlope(x, y),
		OLSSlope:    beta,
		Intercept:   alpha,
		R2:          r2,
	}
}

// Series is the processed output of one station.
type Series struct {
	Station  domain.Station
	Rows     []Row
	Trend    Trend
	Rejected map[string]int
}

// Process builds the monthly anomalies and trend of a parsed station.
func Process(st domain.Station, parsed *Parsed, ref domain.Period) (*Series, error) {
	if len(parsed.Records) == 0 {
		return nil, fmt.Errorf("%w: station %s has no valid records", domain.ErrMissingPeriod, st.ID)
	}
	for k := 1; k < len(parsed.Records); k++ {
		if !parsed.Records[k].Time.After(parsed.Records[k-1].Time) {
			return nil, fmt.Errorf("%w: station %s at %s", domain.ErrDuplicateTime, st.ID, parsed.Records[k].Time.Format("2006-01"))
		}
	}
	b := Baseline(parsed.Records, ref)
	return &Series{
		Station:  st,
		Rows:     Anomalies(parsed.Records, b),
		Trend:    Trends(st, parsed.Records),
		Rejected: parsed.Rejected,
	}, nil
}
