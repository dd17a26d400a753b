package indices

import (
	"math"
	"time"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// DryDayMM is the daily precipitation below which a day counts as dry.
const DryDayMM = 1.0

// month is a run of daily steps [start, end) in one calendar month.
type month struct {
	time       time.Time
	start, end int
}

func months(daily *domain.Field) []month {
	var out []month
	for t, ts := range daily.Times {
		m := time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
		if len(out) == 0 || !out[len(out)-1].time.Equal(m) {
			out = append(out, month{time: m, start: t})
		}
		out[len(out)-1].end = t + 1
	}
	return out
}

func monthTimes(ms []month) []time.Time {
	times := make([]time.Time, len(ms))
	for k, m := range ms {
		times[k] = m.time
	}
	return times
}

// Frequency returns, per month and cell, the fraction of valid days whose
// value is above (or below) the baseline threshold for quantile q. Days are
// matched to thresholds through the baseline binning.
func Frequency(daily *domain.Field, base *domain.Baseline, q float64, above bool, name string) (*domain.Field, error) {
	if err := base.Grid.Mismatch(daily.Grid); err != nil {
		return nil, err
	}
	qi, err := base.QuantileIndex(q)
	if err != nil {
		return nil, err
	}
	ms := months(daily)
	nc := daily.Grid.Cells()
	out := domain.NewField(name, "1", daily.Grid, monthTimes(ms))
	hits := make([]int, nc)
	valid := make([]int, nc)
	for k, m := range ms {
		for c := range hits {
			hits[c], valid[c] = 0, 0
		}
		for t := m.start; t < m.end; t++ {
			bin := base.Binning.Bin(daily.Times[t])
			for c, v := range daily.Step(t) {
				th := base.Threshold(bin, qi, c)
				if math.IsNaN(v) || math.IsNaN(th) {
					continue
				}
				valid[c]++
				if (above && v > th) || (!above && v < th) {
					hits[c]++
				}
			}
		}
		dst := out.Step(k)
		for c := range dst {
			if valid[c] > 0 {
				dst[c] = float64(hits[c]) / float64(valid[c])
			}
		}
	}
	return out, nil
}

// Rx5Day returns the monthly maximum 5-day accumulation. Only windows of
// five consecutive days lying entirely inside the month with no missing
// value count; a month without such a window is NaN.
func Rx5Day(daily *domain.Field) *domain.Field {
	ms := months(daily)
	nc := daily.Grid.Cells()
	out := domain.NewField("rx5day", daily.Units, daily.Grid, monthTimes(ms))
	for k, m := range ms {
		dst := out.Step(k)
		for s := m.start; s+5 <= m.end; s++ {
			if !consecutive(daily.Times[s : s+5]) {
				continue
			}
			for c := 0; c < nc; c++ {
				sum := 0.0
				for t := s; t < s+5; t++ {
					sum += daily.Data[t*nc+c]
				}
				if math.IsNaN(sum) {
					continue
				}
				if math.IsNaN(dst[c]) || sum > dst[c] {
					dst[c] = sum
				}
			}
		}
	}
	return out
}

// CDD returns the longest run of consecutive dry days (< DryDayMM) within
// each month. Missing days and calendar gaps break a run. A cell with no
// valid day in the month is NaN.
func CDD(daily *domain.Field) *domain.Field {
	ms := months(daily)
	nc := daily.Grid.Cells()
	out := domain.NewField("cdd", "days", daily.Grid, monthTimes(ms))
	for k, m := range ms {
		dst := out.Step(k)
		for c := 0; c < nc; c++ {
			run, longest, valid := 0, 0, false
			for t := m.start; t < m.end; t++ {
				if t > m.start && !consecutive(daily.Times[t-1:t+1]) {
					run = 0
				}
				v := daily.Data[t*nc+c]
				if math.IsNaN(v) {
					run = 0
					continue
				}
				valid = true
				if v < DryDayMM {
					run++
					longest = max(longest, run)
				} else {
					run = 0
				}
			}
			if valid {
				dst[c] = float64(longest)
			}
		}
	}
	return out
}

func consecutive(times []time.Time) bool {
	for k := 1; k < len(times); k++ {
		if !times[k].Equal(times[k-1].AddDate(0, 0, 1)) {
			return false
		}
	}
	return true
}
