package indices

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

var point = domain.Grid{Lat: []float64{4.5}, Lon: []float64{-74}}

func hourly(start time.Time, values ...float64) *domain.Field {
	times := make([]time.Time, len(values))
	for k := range values {
		times[k] = start.Add(time.Duration(k) * time.Hour)
	}
	f := domain.NewField("x", "K", point, times)
	copy(f.Data, values)
	return f
}

func daily(start time.Time, values ...float64) *domain.Field {
	times := make([]time.Time, len(values))
	for k := range values {
		times[k] = start.AddDate(0, 0, k)
	}
	f := domain.NewField("pr", "mm", point, times)
	copy(f.Data, values)
	return f
}

func TestDaily_Aggregates(t *testing.T) {
	start := time.Date(1990, 1, 1, 22, 0, 0, 0, time.UTC)
	f := hourly(start, 1, 5, 2, math.NaN(), 4)

	maxes := Daily(f, "tmax", Max, 0)
	require.Len(t, maxes.Times, 2)
	assert.Equal(t, []float64{5, 4}, maxes.Data)
	assert.Equal(t, time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC), maxes.Times[1])

	sums := Daily(f, "pr", Sum, 0)
	assert.Equal(t, []float64{6, 6}, sums.Data)

	means := Daily(f, "wp", Mean, 0)
	assert.Equal(t, []float64{3, 3}, means.Data)
}

func TestDaily_ShiftMovesDayBoundary(t *testing.T) {
	// 02:00-04:00 UTC on Jan 2 is still Jan 1 in UTC-5.
	start := time.Date(1990, 1, 2, 2, 0, 0, 0, time.UTC)
	f := hourly(start, 1, 1, 1, 1, 1, 1)

	shifted := Daily(f, "pr", Sum, DefaultTZOffset)
	require.Len(t, shifted.Times, 2)
	assert.Equal(t, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), shifted.Times[0])
	assert.Equal(t, []float64{3, 3}, shifted.Data)
	assert.Equal(t, "-5", shifted.Attr("day_shift_hours"))
}

func TestDaily_AllMissingIsNaN(t *testing.T) {
	f := hourly(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), math.NaN(), math.NaN())
	out := Daily(f, "tmax", Max, 0)
	assert.True(t, math.IsNaN(out.Data[0]))
}

func TestWindPower(t *testing.T) {
	t0 := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	u := hourly(t0, 3)
	v := hourly(t0, 4)
	wp, err := WindPower(u, v)
	require.NoError(t, err)
	assert.InDelta(t, 0.5*1.23*125, wp.Data[0], 1e-9)

	v.Times = []time.Time{t0.Add(time.Hour)}
	_, err = WindPower(u, v)
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestRx5Day_WindowInsideMonth(t *testing.T) {
	// Windows reaching into February do not count toward January.
	start := time.Date(1990, 1, 24, 0, 0, 0, 0, time.UTC)
	f := daily(start, 1, 1, 1, 1, 50, 50, 50, 50, 2, 2, 2, 2, 2)
	out := Rx5Day(f)
	require.Len(t, out.Times, 2)
	// Jan window 24-28: 1+1+1+1+50; 27-31: 1+50+50+50+50.
	assert.InDelta(t, 201.0, out.Data[0], 1e-12)
	assert.InDelta(t, 10.0, out.Data[1], 1e-12)
}

func TestRx5Day_ShortMonthIsNaN(t *testing.T) {
	f := daily(time.Date(1990, 3, 1, 0, 0, 0, 0, time.UTC), 1, 2, 3)
	assert.True(t, math.IsNaN(Rx5Day(f).Data[0]))
}

func TestCDD(t *testing.T) {
	f := daily(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), 0, 0.5, 3, 0, 0, 0, math.NaN(), 0)
	out := CDD(f)
	assert.Equal(t, 3.0, out.Data[0])

	wet := daily(time.Date(1990, 2, 1, 0, 0, 0, 0, time.UTC), 5, 5)
	assert.Equal(t, 0.0, CDD(wet).Data[0])
}

func TestFrequency(t *testing.T) {
	f := daily(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC), 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
	base := domain.NewBaseline("tmax", "degC", point, domain.BinMonth, domain.MustPeriod("1990:1990"), []float64{0.1, 0.9})
	base.SetThreshold(0, 0, 0, 2.5)
	base.SetThreshold(0, 1, 0, 8.5)

	above, err := Frequency(f, base, 0.9, true, "tx90")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, above.Data[0], 1e-12)

	below, err := Frequency(f, base, 0.1, false, "tx10")
	require.NoError(t, err)
	assert.InDelta(t, 0.2, below.Data[0], 1e-12)

	_, err = Frequency(f, base, 0.5, true, "tx50")
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

// januaries is three Januaries of 6-hourly temperature.
func januaries() *domain.Field {
	var times []time.Time
	for y := 1990; y <= 1992; y++ {
		for d := 0; d < 31; d++ {
			for h := 0; h < 24; h += 6 {
				times = append(times, time.Date(y, 1, 1+d, h, 0, 0, 0, time.UTC))
			}
		}
	}
	raw := domain.NewField("t2m", "K", point, times)
	for k := range raw.Data {
		raw.Data[k] = 290 + float64(k%7)
	}
	return raw
}

var januaryOptions = Options{
	Reference:  domain.MustPeriod("1990:1992"),
	Binning:    domain.BinMonth,
	Quantiles:  []float64{0.1, 0.5, 0.9},
	MinSamples: 3,
}

func TestProfile_Build(t *testing.T) {
	p, err := Lookup("temperature")
	require.NoError(t, err)

	b, err := p.Build([]*domain.Field{januaries()}, januaryOptions)
	require.NoError(t, err)
	assert.Len(t, b.Series, 2)
	assert.Len(t, b.Indices, 4)

	tx90 := b.Indices["tx90"]
	require.NotNil(t, tx90)
	assert.Equal(t, 3, tx90.Count[tx90.StatIndex(0, 0)])
	assert.False(t, math.IsNaN(tx90.Mean[tx90.StatIndex(0, 0)]))

	p10, _ := b.Series["tmax"].QuantileIndex(0.1)
	p90, _ := b.Series["tmax"].QuantileIndex(0.9)
	assert.GreaterOrEqual(t, b.Series["tmax"].Threshold(0, p90, 0), b.Series["tmax"].Threshold(0, p10, 0))
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("humidity")
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
	assert.Equal(t, []string{"precipitation", "temperature", "wind"}, Variables())
}

func TestProfile_SaveLoad(t *testing.T) {
	p, err := Lookup("temperature")
	require.NoError(t, err)
	b, err := p.Build([]*domain.Field{januaries()}, januaryOptions)
	require.NoError(t, err)

	layout := storage.NewLayout(t.TempDir())
	outs, err := p.Save(layout, b)
	require.NoError(t, err)
	require.Len(t, outs, 6)
	assert.Equal(t, "tmax", outs[0].Name)
	assert.Equal(t, layout.PercentileFile("temperature", "tn10"), outs[5].Path)

	got, err := p.Load(layout)
	require.NoError(t, err)
	for name, want := range b.Indices {
		if diff := cmp.Diff(want.Mean, got.Indices[name].Mean, cmpopts.EquateNaNs()); diff != "" {
			t.Errorf("%s mean (-want +got):\n%s", name, diff)
		}
	}
	if diff := cmp.Diff(b.Series["tmin"].Thresholds, got.Series["tmin"].Thresholds, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("tmin thresholds (-want +got):\n%s", diff)
	}
}

func TestVariableOf(t *testing.T) {
	v, ok := VariableOf("cdd")
	assert.True(t, ok)
	assert.Equal(t, "precipitation", v)
	v, _ = VariableOf("wp90")
	assert.Equal(t, "wind", v)
	_, ok = VariableOf("tmax")
	assert.False(t, ok)
}
