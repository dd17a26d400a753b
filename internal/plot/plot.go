// Package plot renders the pipeline charts as PNG files.
package plot

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

// MovingAverageWindow is five years of monthly values.
const MovingAverageWindow = 60

var (
	width  = 30 * vg.Centimeter
	height = 12 * vg.Centimeter

	gray  = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	black = color.RGBA{A: 255}
)

// MovingAverage returns the centered moving average of values. A window
// covers [i-w/2, i+(w-1)/2]; positions whose window runs off either end or
// contains NaN are NaN.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	lo, hi := window/2, (window-1)/2
	for i := range values {
		out[i] = math.NaN()
		if i-lo < 0 || i+hi >= len(values) {
			continue
		}
		sum := 0.0
		for _, v := range values[i-lo : i+hi+1] {
			sum += v
		}
		out[i] = sum / float64(window)
	}
	return out
}

// monthAxis positions monthly values at consecutive integers starting at
// start.
type monthAxis struct {
	start time.Time
}

func (a monthAxis) x(t time.Time) float64 {
	t = t.UTC()
	return float64((t.Year()-a.start.Year())*12 + int(t.Month()) - int(a.start.Month()))
}

// Ticks labels every fifth January.
func (a monthAxis) Ticks(min, max float64) []plot.Tick {
	var ticks []plot.Tick
	for x := math.Ceil(min); x <= max; x++ {
		t := a.start.AddDate(0, int(x), 0)
		if t.Month() != time.January {
			continue
		}
		label := ""
		if t.Year()%5 == 0 {
			label = fmt.Sprint(t.Year())
		}
		ticks = append(ticks, plot.Tick{Value: x, Label: label})
	}
	return ticks
}

// line builds a line through the finite points; nil when there are none.
func line(xs, ys []float64, c color.Color, w vg.Length) (*plotter.Line, error) {
	var pts plotter.XYs
	for k := range xs {
		if math.IsNaN(ys[k]) || math.IsInf(ys[k], 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: xs[k], Y: ys[k]})
	}
	if len(pts) == 0 {
		return nil, nil
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	l.LineStyle.Color = c
	l.LineStyle.Width = w
	return l, nil
}

// verticalLine draws a dotted marker at x spanning [ymin, ymax].
func verticalLine(x, ymin, ymax float64) (*plotter.Line, error) {
	l, err := plotter.NewLine(plotter.XYs{{X: x, Y: ymin}, {X: x, Y: ymax}})
	if err != nil {
		return nil, err
	}
	l.LineStyle.Color = gray
	l.LineStyle.Width = vg.Points(1)
	l.LineStyle.Dashes = []vg.Length{vg.Points(1), vg.Points(3)}
	return l, nil
}

func finiteRange(series ...[]float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range series {
		for _, v := range s {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
	}
	return lo, hi, lo <= hi
}

func save(p *plot.Plot, path string) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	return storage.WriteAtomic(path, func(w io.Writer) error {
		_, err := wt.WriteTo(w)
		return err
	})
}

func newPlot(title, xlabel, ylabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	return p
}
