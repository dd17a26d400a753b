package plot

import (
	"fmt"
	"image/color"
	"math"
	"sort"
	"time"

	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/regional"
	"github.com/AsociacionCA/aca-indice-climatico/internal/sealevel"
)

// Series is a monthly time series to chart.
type Series struct {
	// ID names the series in file names; optional.
	ID     string
	Title  string
	YLabel string
	Times  []time.Time
	Values []float64
}

// TimeSeries draws monthly bars, their 5-year centered moving average and
// a dotted line at the end of the reference period.
func TimeSeries(path string, s Series, refEnd time.Time) error {
	if len(s.Times) == 0 || len(s.Times) != len(s.Values) {
		return fmt.Errorf("%w: %s: %d times, %d values", domain.ErrMalformedInput, s.Title, len(s.Times), len(s.Values))
	}
	axis := monthAxis{start: s.Times[0]}
	xs := make([]float64, len(s.Times))
	bars := make(plotter.Values, len(s.Values))
	for k, t := range s.Times {
		xs[k] = axis.x(t)
		if v := s.Values[k]; !math.IsNaN(v) && !math.IsInf(v, 0) {
			bars[k] = v
		}
	}

	p := newPlot(s.Title, "Year", s.YLabel)
	p.X.Tick.Marker = axis

	bc, err := plotter.NewBarChart(bars, vg.Points(1))
	if err != nil {
		return err
	}
	bc.XMin = xs[0]
	bc.Color = color.RGBA{R: 169, G: 200, B: 200, A: 255}
	bc.LineStyle.Width = 0
	p.Add(bc)

	ma := MovingAverage(s.Values, MovingAverageWindow)
	avg, err := line(xs, ma, black, vg.Points(2))
	if err != nil {
		return err
	}
	if avg != nil {
		p.Add(avg)
		p.Legend.Add("5-year moving average", avg)
	}

	if lo, hi, ok := finiteRange(s.Values); ok && !refEnd.IsZero() {
		ref, err := verticalLine(axis.x(refEnd), math.Min(lo, 0), math.Max(hi, 0))
		if err != nil {
			return err
		}
		p.Add(ref)
	}
	return save(p, path)
}

// grid adapts one time step of a field to plotter.GridXYZ with rows in
// ascending latitude.
type grid struct {
	f    *domain.Field
	step []float64
}

func (g grid) Dims() (c, r int) { return len(g.f.Grid.Lon), len(g.f.Grid.Lat) }
func (g grid) X(c int) float64  { return g.f.Grid.Lon[c] }
func (g grid) Y(r int) float64  { return g.f.Grid.Lat[g.row(r)] }
func (g grid) Z(c, r int) float64 {
	return g.step[g.f.Grid.Index(g.row(r), c)]
}

func (g grid) row(r int) int {
	lat := g.f.Grid.Lat
	if len(lat) > 1 && lat[0] > lat[len(lat)-1] {
		return len(lat) - 1 - r
	}
	return r
}

// Map draws one time step of a field as a heat map with a diverging
// palette centered on zero.
func Map(path string, f *domain.Field, step int) error {
	if step < 0 || step >= len(f.Times) {
		return fmt.Errorf("%w: step %d outside %s (%d steps)", domain.ErrMalformedInput, step, f.Variable, len(f.Times))
	}
	if len(f.Grid.Lat) < 2 || len(f.Grid.Lon) < 2 {
		return fmt.Errorf("%w: %s grid too small to map", domain.ErrMalformedInput, f.Variable)
	}
	g := grid{f: f, step: f.Step(step)}
	lo, hi, ok := finiteRange(g.step)
	if !ok {
		return fmt.Errorf("%w: %s has no finite values at %s", domain.ErrMissingPeriod, f.Variable, f.Times[step].Format(time.DateOnly))
	}
	limit := math.Max(math.Abs(lo), math.Abs(hi))
	if limit == 0 {
		limit = 1
	}

	hm := plotter.NewHeatMap(g, moreland.SmoothBlueRed().Palette(255))
	hm.Min, hm.Max = -limit, limit
	hm.NaN = color.Transparent

	p := newPlot(fmt.Sprintf("%s %s", f.Variable, f.Times[step].Format(time.DateOnly)), "Longitude", "Latitude")
	p.Add(hm)
	return save(p, path)
}

var stationColors = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
	color.RGBA{R: 140, G: 86, B: 75, A: 255},
}

// SeaLevel draws each station's monthly heights against decimal years with
// its least-squares trend.
func SeaLevel(path string, series []*sealevel.Series) error {
	if len(series) == 0 {
		return fmt.Errorf("%w: no stations to plot", domain.ErrMalformedInput)
	}
	p := newPlot("Sea level at Colombian tide gauges", "Year", "Sea level (mm)")
	for k, s := range series {
		c := stationColors[k%len(stationColors)]
		xs := make([]float64, len(s.Rows))
		ys := make([]float64, len(s.Rows))
		for i, r := range s.Rows {
			xs[i] = sealevel.TimeToDecimalYear(r.Time)
			ys[i] = r.HeightMM
		}
		l, err := line(xs, ys, c, vg.Points(1))
		if err != nil {
			return err
		}
		if l == nil {
			continue
		}
		p.Add(l)
		p.Legend.Add(s.Station.Name, l)

		tr := s.Trend
		if math.IsNaN(tr.OLSSlope) || len(xs) < 2 {
			continue
		}
		x0, x1 := xs[0], xs[len(xs)-1]
		fit, err := line([]float64{x0, x1}, []float64{tr.Intercept + tr.OLSSlope*x0, tr.Intercept + tr.OLSSlope*x1}, c, vg.Points(1.5))
		if err != nil {
			return err
		}
		fit.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(fit)
	}
	return save(p, path)
}

var componentColors = []color.Color{
	color.RGBA{R: 0x6B, G: 0x8E, B: 0x8E, A: 255},
	color.RGBA{R: 0xA9, G: 0xC8, B: 0xC8, A: 255},
	color.RGBA{R: 0xC0, G: 0x80, B: 0x56, A: 255},
	color.RGBA{R: 0xD9, G: 0xA4, B: 0x41, A: 255},
	color.RGBA{R: 0xEA, G: 0xD8, B: 0xC0, A: 255},
}

// Composite draws the 5-year moving averages of every component and of the
// composite index.
func Composite(path, region string, rows []regional.CompositeRow, refEnd time.Time) error {
	if len(rows) == 0 {
		return fmt.Errorf("%w: no composite rows for %s", domain.ErrMalformedInput, region)
	}
	axis := monthAxis{start: rows[0].Time}
	xs := make([]float64, len(rows))
	index := make([]float64, len(rows))
	comps := make([][]float64, len(regional.Components))
	for c := range comps {
		comps[c] = make([]float64, len(rows))
	}
	for k, r := range rows {
		xs[k] = axis.x(r.Time)
		index[k] = r.Index
		for c := range comps {
			comps[c][k] = r.Values[c]
		}
	}

	p := newPlot("Actuarial climate index, "+region, "Year", "Standardized anomaly")
	p.X.Tick.Marker = axis
	var averages [][]float64
	for c, comp := range regional.Components {
		ma := MovingAverage(comps[c], MovingAverageWindow)
		averages = append(averages, ma)
		l, err := line(xs, ma, componentColors[c%len(componentColors)], vg.Points(1.5))
		if err != nil {
			return err
		}
		if l != nil {
			p.Add(l)
			p.Legend.Add(comp.Name, l)
		}
	}
	ica := MovingAverage(index, MovingAverageWindow)
	averages = append(averages, ica)
	l, err := line(xs, ica, black, vg.Points(2))
	if err != nil {
		return err
	}
	if l != nil {
		p.Add(l)
		p.Legend.Add("ICA", l)
	}

	if lo, hi, ok := finiteRange(averages...); ok && !refEnd.IsZero() {
		ref, err := verticalLine(axis.x(refEnd), lo, hi)
		if err != nil {
			return err
		}
		p.Add(ref)
	}
	return save(p, path)
}

// StepAt returns the step of f on the day of t, or its last step when t is
// zero.
func StepAt(f *domain.Field, t time.Time) (int, error) {
	if len(f.Times) == 0 {
		return 0, fmt.Errorf("%w: %s has no steps", domain.ErrMissingPeriod, f.Variable)
	}
	if t.IsZero() {
		return len(f.Times) - 1, nil
	}
	day := domain.Period{Start: t.UTC().Truncate(24 * time.Hour), End: t.UTC().Truncate(24 * time.Hour)}
	for k, ts := range f.Times {
		if day.Contains(ts) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %s has no step on %s", domain.ErrMissingPeriod, f.Variable, t.Format(time.DateOnly))
}

// RegionSeries splits rows of a regional CSV into one series per region, in
// the order regions first appear, with each series sorted by time. A
// non-empty region keeps only that region.
func RegionSeries(rows []domain.RegionalSummary, title, region string) ([]Series, error) {
	index := map[string]int{}
	var out []Series
	for _, r := range rows {
		if region != "" && r.RegionID != region {
			continue
		}
		k, ok := index[r.RegionID]
		if !ok {
			k = len(out)
			index[r.RegionID] = k
			name := r.RegionName
			if name == "" {
				name = r.RegionID
			}
			out = append(out, Series{ID: r.RegionID, Title: title + ", " + name, YLabel: "Regional mean"})
		}
		out[k].Times = append(out[k].Times, r.Time)
		out[k].Values = append(out[k].Values, r.Value)
	}
	if len(out) == 0 {
		if region != "" {
			return nil, fmt.Errorf("%w: no rows for region %q", domain.ErrMissingPeriod, region)
		}
		return nil, fmt.Errorf("%w: no regional rows", domain.ErrMalformedInput)
	}
	for k := range out {
		sort.Sort(byTime(out[k]))
	}
	return out, nil
}

type byTime Series

func (s byTime) Len() int           { return len(s.Times) }
func (s byTime) Less(i, j int) bool { return s.Times[i].Before(s.Times[j]) }
func (s byTime) Swap(i, j int) {
	s.Times[i], s.Times[j] = s.Times[j], s.Times[i]
	s.Values[i], s.Values[j] = s.Values[j], s.Values[i]
}
