// Package indices derives daily series from hourly ERA5 fields and the
// monthly extreme indices built on them.
package indices

import (
	"fmt"
	"math"
	"time"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// Aggregate reduces the hourly values of one day.
type Aggregate int

const (
	Max Aggregate = iota
	Min
	Sum
	Mean
)

func (a Aggregate) String() string {
	switch a {
	case Max:
		return "max"
	case Min:
		return "min"
	case Sum:
		return "sum"
	default:
		return "mean"
	}
}

// Daily groups the steps of f by calendar day after shifting them by shift
// and reduces each group with agg, skipping NaN. A cell with no valid value
// in a day is NaN. Output times are midnight UTC of each day.
func Daily(f *domain.Field, name string, agg Aggregate, shift time.Duration) *domain.Field {
	nc := f.Grid.Cells()
	var days []time.Time
	var starts []int
	for t, ts := range f.Times {
		d := truncateDay(ts.Add(shift))
		if len(days) == 0 || !d.Equal(days[len(days)-1]) {
			days = append(days, d)
			starts = append(starts, t)
		}
	}
	starts = append(starts, len(f.Times))

	out := domain.NewField(name, f.Units, f.Grid, days)
	acc := make([]float64, nc)
	n := make([]int, nc)
	for d := range days {
		for c := range acc {
			acc[c], n[c] = 0, 0
		}
		for t := starts[d]; t < starts[d+1]; t++ {
			step := f.Step(t)
			for c, v := range step {
				if math.IsNaN(v) {
					continue
				}
				switch {
				case n[c] == 0:
					acc[c] = v
				case agg == Max:
					acc[c] = math.Max(acc[c], v)
				case agg == Min:
					acc[c] = math.Min(acc[c], v)
				default:
					acc[c] += v
				}
				n[c]++
			}
		}
		dst := out.Step(d)
		for c := range dst {
			if n[c] == 0 {
				continue
			}
			dst[c] = acc[c]
			if agg == Mean {
				dst[c] /= float64(n[c])
			}
		}
	}
	for k, v := range f.Attrs {
		out.SetAttr(k, v)
	}
	out.SetAttr("daily_aggregate", agg.String())
	if shift != 0 {
		out.SetAttr("day_shift_hours", fmt.Sprintf("%g", shift.Hours()))
	}
	return out
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Map returns a copy of f with fn applied to every value.
func Map(f *domain.Field, units string, fn func(float64) float64) *domain.Field {
	out := &domain.Field{
		Variable: f.Variable,
		Units:    units,
		Grid:     f.Grid,
		Times:    f.Times,
		Data:     make([]float64, len(f.Data)),
	}
	for k, v := range f.Data {
		out.Data[k] = fn(v)
	}
	for k, v := range f.Attrs {
		out.SetAttr(k, v)
	}
	return out
}

// KelvinToCelsius converts a temperature field.
func KelvinToCelsius(f *domain.Field) *domain.Field {
	return Map(f, "degC", func(v float64) float64 { return v - 273.15 })
}

// MetresToMillimetres converts an accumulated precipitation field.
func MetresToMillimetres(f *domain.Field) *domain.Field {
	return Map(f, "mm", func(v float64) float64 { return v * 1000 })
}

// AirDensity is the sea-level air density used for wind power, kg/m³.
const AirDensity = 1.23

// WindPower returns the wind power density 0.5·ρ·|v|³ in W/m² from the
// 10 m wind components.
func WindPower(u, v *domain.Field) (*domain.Field, error) {
	if err := u.Grid.Mismatch(v.Grid); err != nil {
		return nil, err
	}
	if len(u.Times) != len(v.Times) {
		return nil, fmt.Errorf("%w: %s and %s have different time axes", domain.ErrMalformedInput, u.Variable, v.Variable)
	}
	for k := range u.Times {
		if !u.Times[k].Equal(v.Times[k]) {
			return nil, fmt.Errorf("%w: %s and %s differ at step %d", domain.ErrMalformedInput, u.Variable, v.Variable, k)
		}
	}
	out := domain.NewField("wp", "W m-2", u.Grid, u.Times)
	for k := range out.Data {
		speed := math.Hypot(u.Data[k], v.Data[k])
		out.Data[k] = 0.5 * AirDensity * speed * speed * speed
	}
	for k, val := range u.Attrs {
		out.SetAttr(k, val)
	}
	return out, nil
}
