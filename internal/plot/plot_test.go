package plot

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/regional"
	"github.com/AsociacionCA/aca-indice-climatico/internal/sealevel"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func requirePNG(t *testing.T, path string) {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(b, pngMagic), "%s is not a PNG", path)
}

func months(start time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	for k := range out {
		out[k] = start.AddDate(0, k, 0)
	}
	return out
}

func TestMovingAverage(t *testing.T) {
	ma := MovingAverage([]float64{1, 2, 3, 4, 5, 6}, 4)
	// window at i covers [i-2, i+1]
	assert.True(t, math.IsNaN(ma[0]))
	assert.True(t, math.IsNaN(ma[1]))
	assert.InDelta(t, 2.5, ma[2], 1e-12)
	assert.InDelta(t, 3.5, ma[3], 1e-12)
	assert.InDelta(t, 4.5, ma[4], 1e-12)
	assert.True(t, math.IsNaN(ma[5]))
}

func TestMovingAverage_OddWindow(t *testing.T) {
	ma := MovingAverage([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(ma[0]))
	assert.InDelta(t, 2.0, ma[1], 1e-12)
	assert.InDelta(t, 4.0, ma[3], 1e-12)
	assert.True(t, math.IsNaN(ma[4]))
}

func TestMovingAverage_NaNPropagates(t *testing.T) {
	ma := MovingAverage([]float64{1, math.NaN(), 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(ma[1]))
	assert.True(t, math.IsNaN(ma[2]))
	assert.InDelta(t, 4.0, ma[3], 1e-12)
}

func TestMovingAverage_ShortSeries(t *testing.T) {
	for _, v := range MovingAverage([]float64{1, 2, 3}, MovingAverageWindow) {
		assert.True(t, math.IsNaN(v))
	}
}

func TestMonthAxis(t *testing.T) {
	a := monthAxis{start: time.Date(1989, 11, 1, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, 0.0, a.x(a.start))
	assert.Equal(t, 2.0, a.x(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)))

	ticks := a.Ticks(0, 26)
	require.Len(t, ticks, 3)
	assert.Equal(t, 2.0, ticks[0].Value)
	assert.Equal(t, "1990", ticks[0].Label)
	assert.Equal(t, 14.0, ticks[1].Value)
	assert.Empty(t, ticks[1].Label)
}

func TestTimeSeries(t *testing.T) {
	times := months(time.Date(1961, 1, 1, 0, 0, 0, 0, time.UTC), 240)
	values := make([]float64, len(times))
	for k := range values {
		values[k] = math.Sin(float64(k) / 6)
	}
	values[10] = math.NaN()

	path := filepath.Join(t.TempDir(), "plots", "tx90.png")
	err := TimeSeries(path, Series{Title: "tx90", YLabel: "anomaly", Times: times, Values: values},
		time.Date(1970, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	requirePNG(t, path)
}

func TestTimeSeries_Mismatch(t *testing.T) {
	err := TimeSeries(filepath.Join(t.TempDir(), "x.png"), Series{Times: months(time.Now(), 2), Values: []float64{1}}, time.Time{})
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func mapField() *domain.Field {
	grid := domain.Grid{Lat: []float64{2, 1, 0}, Lon: []float64{-75, -74, -73}}
	f := domain.NewField("tx90_anom", "1", grid, months(time.Date(1991, 1, 1, 0, 0, 0, 0, time.UTC), 2))
	for k := range f.Data {
		f.Data[k] = float64(k%9) - 4
	}
	f.Data[4] = math.NaN()
	for k := 9; k < 18; k++ {
		f.Data[k] = math.NaN()
	}
	return f
}

func TestGridRowsAscending(t *testing.T) {
	g := grid{f: mapField(), step: mapField().Step(0)}
	c, r := g.Dims()
	assert.Equal(t, 3, c)
	assert.Equal(t, 3, r)
	assert.Equal(t, 0.0, g.Y(0))
	assert.Equal(t, 2.0, g.Y(2))
	// lowest latitude row is the last stored row
	assert.Equal(t, 2.0, g.Z(0, 0))
}

func TestMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.png")
	require.NoError(t, Map(path, mapField(), 0))
	requirePNG(t, path)
}

func TestMap_AllNaN(t *testing.T) {
	err := Map(filepath.Join(t.TempDir(), "map.png"), mapField(), 1)
	assert.ErrorIs(t, err, domain.ErrMissingPeriod)
}

func TestMap_StepOutOfRange(t *testing.T) {
	err := Map(filepath.Join(t.TempDir(), "map.png"), mapField(), 5)
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestSeaLevel(t *testing.T) {
	var records []domain.SeaLevelRecord
	for k, tm := range months(time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC), 120) {
		records = append(records, domain.SeaLevelRecord{StationID: "572", Time: tm, HeightMM: 7000 + float64(k)*0.3})
	}
	st := domain.Station{ID: "572", Name: "Cartagena"}
	s, err := sealevel.Process(st, &sealevel.Parsed{Records: records}, domain.MustPeriod("1960:1969"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sealevel.png")
	require.NoError(t, SeaLevel(path, []*sealevel.Series{s}))
	requirePNG(t, path)
}

func TestSeaLevel_Empty(t *testing.T) {
	assert.ErrorIs(t, SeaLevel(filepath.Join(t.TempDir(), "x.png"), nil), domain.ErrMalformedInput)
}

func TestComposite(t *testing.T) {
	var rows []regional.CompositeRow
	for k, tm := range months(time.Date(1961, 1, 1, 0, 0, 0, 0, time.UTC), 180) {
		vals := make([]float64, len(regional.Components))
		for c := range vals {
			vals[c] = math.Cos(float64(k+c) / 12)
		}
		rows = append(rows, regional.CompositeRow{Time: tm, Values: vals, Index: vals[0]})
	}
	path := filepath.Join(t.TempDir(), "ica.png")
	require.NoError(t, Composite(path, "caribe", rows, time.Date(1990, 12, 31, 0, 0, 0, 0, time.UTC)))
	requirePNG(t, path)
}

func TestStepAt(t *testing.T) {
	f := mapField()
	k, err := StepAt(f, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1, k)

	k, err = StepAt(f, time.Date(1991, 2, 1, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, k)

	_, err = StepAt(f, time.Date(1991, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, domain.ErrMissingPeriod)
}

func TestRegionSeries(t *testing.T) {
	jan := time.Date(1991, 1, 1, 0, 0, 0, 0, time.UTC)
	feb := jan.AddDate(0, 1, 0)
	rows := []domain.RegionalSummary{
		{RegionID: "05", RegionName: "Antioquia", Time: feb, Value: 2},
		{RegionID: "08", Time: jan, Value: 3},
		{RegionID: "05", RegionName: "Antioquia", Time: jan, Value: 1},
	}

	all, err := RegionSeries(rows, "tx90", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "tx90, Antioquia", all[0].Title)
	assert.Equal(t, []time.Time{jan, feb}, all[0].Times)
	assert.Equal(t, []float64{1, 2}, all[0].Values)
	assert.Equal(t, "05", all[0].ID)
	assert.Equal(t, "tx90, 08", all[1].Title)

	one, err := RegionSeries(rows, "tx90", "08")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, []float64{3}, one[0].Values)

	path := filepath.Join(t.TempDir(), "regional.png")
	require.NoError(t, TimeSeries(path, all[0], time.Time{}))
	requirePNG(t, path)
}

func TestRegionSeries_UnknownRegion(t *testing.T) {
	rows := []domain.RegionalSummary{{RegionID: "05", Time: time.Date(1991, 1, 1, 0, 0, 0, 0, time.UTC), Value: 1}}
	_, err := RegionSeries(rows, "tx90", "99")
	assert.ErrorIs(t, err, domain.ErrMissingPeriod)

	_, err = RegionSeries(nil, "tx90", "")
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}
