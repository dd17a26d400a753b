package domain

import (
	"fmt"
	"math"
	"time"
)

// gridTolerance is the largest coordinate difference, in degrees, for two
// axes to count as the same grid.
const gridTolerance = 1e-6

// Grid is a regular latitude/longitude grid. Axes are strictly monotonic.
type Grid struct {
	Lat []float64
	Lon []float64
}

// Cells returns the number of grid cells.
func (g Grid) Cells() int { return len(g.Lat) * len(g.Lon) }

// Index returns the flat offset of cell (i, j) within one time step.
func (g Grid) Index(i, j int) int { return i*len(g.Lon) + j }

// Equal reports whether both grids have the same axes within tolerance.
func (g Grid) Equal(o Grid) bool {
	return axisEqual(g.Lat, o.Lat) && axisEqual(g.Lon, o.Lon)
}

// Validate checks that both axes are non-empty and strictly monotonic.
func (g Grid) Validate() error {
	if err := validateAxis("latitude", g.Lat); err != nil {
		return err
	}
	return validateAxis("longitude", g.Lon)
}

// CellBounds returns the edges of cell (i, j) as (minLat, maxLat, minLon,
// maxLon). Edges sit halfway between neighbouring centers; outer edges mirror
// the nearest spacing. Single-point axes get a zero-width cell.
func (g Grid) CellBounds(i, j int) (minLat, maxLat, minLon, maxLon float64) {
	minLat, maxLat = cellEdges(g.Lat, i)
	minLon, maxLon = cellEdges(g.Lon, j)
	return minLat, maxLat, minLon, maxLon
}

// Mismatch describes how two grids differ. It returns nil when they are equal.
func (g Grid) Mismatch(o Grid) error {
	if len(g.Lat) != len(o.Lat) || len(g.Lon) != len(o.Lon) {
		return fmt.Errorf("%w: shape %dx%d vs %dx%d", ErrGridMismatch, len(g.Lat), len(g.Lon), len(o.Lat), len(o.Lon))
	}
	if !g.Equal(o) {
		return fmt.Errorf("%w: coordinates differ", ErrGridMismatch)
	}
	return nil
}

func axisEqual(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > gridTolerance {
			return false
		}
	}
	return true
}

func validateAxis(name string, axis []float64) error {
	if len(axis) == 0 {
		return fmt.Errorf("%w: empty %s axis", ErrMalformedInput, name)
	}
	if len(axis) == 1 {
		return nil
	}
	increasing := axis[1] > axis[0]
	for k := 1; k < len(axis); k++ {
		if (increasing && axis[k] <= axis[k-1]) || (!increasing && axis[k] >= axis[k-1]) {
			return fmt.Errorf("%w: %s axis not strictly monotonic at index %d", ErrMalformedInput, name, k)
		}
	}
	return nil
}

func cellEdges(axis []float64, k int) (lo, hi float64) {
	n := len(axis)
	if n == 1 {
		return axis[0], axis[0]
	}
	var left, right float64
	if k == 0 {
		left = axis[0] - (axis[1]-axis[0])/2
	} else {
		left = (axis[k-1] + axis[k]) / 2
	}
	if k == n-1 {
		right = axis[n-1] + (axis[n-1]-axis[n-2])/2
	} else {
		right = (axis[k] + axis[k+1]) / 2
	}
	return math.Min(left, right), math.Max(left, right)
}

// Field is a gridded variable over time. Data is row-major (time, lat, lon);
// missing values are NaN.
type Field struct {
	Variable string
	Units    string
	Grid     Grid
	Times    []time.Time
	Data     []float64
	// Attrs carries provenance attributes written to the output file.
	Attrs map[string]string
}

// NewField allocates a NaN-filled field.
func NewField(variable, units string, grid Grid, times []time.Time) *Field {
	data := make([]float64, len(times)*grid.Cells())
	for k := range data {
		data[k] = math.NaN()
	}
	return &Field{Variable: variable, Units: units, Grid: grid, Times: times, Data: data}
}

// Step returns the slice of values for time step t. The slice aliases Data.
func (f *Field) Step(t int) []float64 {
	n := f.Grid.Cells()
	return f.Data[t*n : (t+1)*n]
}

// At returns the value at time step t, cell (i, j).
func (f *Field) At(t, i, j int) float64 {
	return f.Data[t*f.Grid.Cells()+f.Grid.Index(i, j)]
}

// Validate checks shape consistency and strictly increasing time steps.
func (f *Field) Validate() error {
	if err := f.Grid.Validate(); err != nil {
		return err
	}
	if want := len(f.Times) * f.Grid.Cells(); len(f.Data) != want {
		return fmt.Errorf("%w: %s has %d values, want %d", ErrMalformedInput, f.Variable, len(f.Data), want)
	}
	for k := 1; k < len(f.Times); k++ {
		if f.Times[k].Equal(f.Times[k-1]) {
			return fmt.Errorf("%w: %s at %s", ErrDuplicateTime, f.Variable, f.Times[k].Format(time.RFC3339))
		}
		if f.Times[k].Before(f.Times[k-1]) {
			return fmt.Errorf("%w: %s times not increasing at index %d", ErrMalformedInput, f.Variable, k)
		}
	}
	return nil
}

// Attr returns a provenance attribute or "".
func (f *Field) Attr(key string) string {
	if f.Attrs == nil {
		return ""
	}
	return f.Attrs[key]
}

// SetAttr records a provenance attribute.
func (f *Field) SetAttr(key, value string) {
	if f.Attrs == nil {
		f.Attrs = make(map[string]string)
	}
	f.Attrs[key] = value
}

// Within returns the time steps of f inside p as a new field sharing no
// data with f. A zero period returns f itself.
func (f *Field) Within(p Period) *Field {
	if p.IsZero() {
		return f
	}
	var times []time.Time
	var data []float64
	for t, ts := range f.Times {
		if p.Contains(ts) {
			times = append(times, ts)
			data = append(data, f.Step(t)...)
		}
	}
	out := &Field{Variable: f.Variable, Units: f.Units, Grid: f.Grid, Times: times, Data: data}
	for k, v := range f.Attrs {
		out.SetAttr(k, v)
	}
	return out
}
