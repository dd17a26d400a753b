package climatology

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

func TestPercentile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	tests := []struct {
		q    float64
		want float64
	}{
		{0, 1},
		{0.5, 3},
		{1, 5},
		{0.9, 4.6},
		{0.1, 1.4},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Percentile(sorted, tt.q), 1e-12, "q=%g", tt.q)
	}
	assert.True(t, math.IsNaN(Percentile(nil, 0.5)))
	assert.True(t, math.IsNaN(Percentile(sorted, 1.5)))
	assert.Equal(t, 7.0, Percentile([]float64{7}, 0.9))
}

func TestRank(t *testing.T) {
	qs := []float64{0.1, 0.5, 0.9}
	th := []float64{10, 20, 30}
	assert.InDelta(t, 0.3, Rank(15, qs, th), 1e-12)
	assert.Equal(t, 0.1, Rank(-5, qs, th))
	assert.Equal(t, 0.9, Rank(99, qs, th))
	assert.True(t, math.IsNaN(Rank(math.NaN(), qs, th)))
	assert.True(t, math.IsNaN(Rank(1, qs, []float64{math.NaN(), math.NaN(), math.NaN()})))
}

// smallField is a 2x2 grid with three January steps.
func smallField() *domain.Field {
	grid := domain.Grid{Lat: []float64{1, 0}, Lon: []float64{0, 1}}
	t0 := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)
	f := domain.NewField("tmax", "degC", grid, []time.Time{t0, t0.AddDate(0, 0, 1), t0.AddDate(0, 0, 2)})
	copy(f.Data, []float64{
		1, 10, 5, 2,
		3, 30, 6, 8,
		2, 20, 4, 5,
	})
	return f
}

func TestCompute_MedianOfSmallGrid(t *testing.T) {
	f := smallField()
	b, err := Compute(f, Options{
		Reference:  domain.MustPeriod("1990:1990"),
		Quantiles:  []float64{0.1, 0.5, 0.9},
		MinSamples: 3,
	})
	require.NoError(t, err)
	require.NoError(t, b.Validate())

	qi, err := b.QuantileIndex(0.5)
	require.NoError(t, err)
	medians := []float64{2, 20, 5, 5}
	for cell, want := range medians {
		assert.InDelta(t, want, b.Threshold(0, qi, cell), 1e-12, "cell %d", cell)
		assert.Equal(t, 3, b.Count[b.StatIndex(0, cell)])
	}
	// Population std of {1, 3, 2}.
	assert.InDelta(t, math.Sqrt(2.0/3.0), b.Std[b.StatIndex(0, 0)], 1e-12)
	assert.InDelta(t, 2.0, b.Mean[b.StatIndex(0, 0)], 1e-12)
	// February never observed.
	assert.True(t, math.IsNaN(b.Mean[b.StatIndex(1, 0)]))
}

func TestCompute_P90AboveP10(t *testing.T) {
	grid := domain.Grid{Lat: []float64{2, 1, 0}, Lon: []float64{0, 1}}
	var times []time.Time
	for d := 0; d < 365; d++ {
		times = append(times, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d))
	}
	f := domain.NewField("tmax", "degC", grid, times)
	for k := range f.Data {
		f.Data[k] = math.Sin(float64(k)*0.37) * float64(k%11)
	}
	b, err := Compute(f, Options{Reference: domain.MustPeriod("1990:1990")})
	require.NoError(t, err)

	p10, _ := b.QuantileIndex(0.1)
	p90, _ := b.QuantileIndex(0.9)
	for bin := 0; bin < b.Binning.Bins(); bin++ {
		for cell := 0; cell < grid.Cells(); cell++ {
			assert.GreaterOrEqual(t, b.Threshold(bin, p90, cell), b.Threshold(bin, p10, cell))
		}
	}
}

func TestCompute_MinSamples(t *testing.T) {
	f := smallField()
	f.Data[0] = math.NaN()
	b, err := Compute(f, Options{Reference: domain.MustPeriod("1990:1990"), MinSamples: 3})
	require.NoError(t, err)

	assert.True(t, math.IsNaN(b.Threshold(0, 0, 0)))
	assert.True(t, math.IsNaN(b.Mean[b.StatIndex(0, 0)]))
	assert.Equal(t, 2, b.Count[b.StatIndex(0, 0)])
	assert.False(t, math.IsNaN(b.Mean[b.StatIndex(0, 1)]))
	assert.Equal(t, 1, Insufficient(b, 3))
}

func TestCompute_ReferenceOutsideData(t *testing.T) {
	_, err := Compute(smallField(), Options{Reference: domain.MustPeriod("1961:1970")})
	assert.True(t, errors.Is(err, domain.ErrMissingPeriod))
}

func TestCompute_DayOfYearBins(t *testing.T) {
	grid := domain.Grid{Lat: []float64{0}, Lon: []float64{0}}
	times := []time.Time{
		time.Date(1991, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1992, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	f := domain.NewField("tmax", "degC", grid, times)
	copy(f.Data, []float64{1, 3})
	b, err := Compute(f, Options{Reference: domain.MustPeriod("1991:1992"), Binning: domain.BinDayOfYear, MinSamples: 2})
	require.NoError(t, err)

	bin := domain.BinDayOfYear.Bin(times[0])
	assert.Equal(t, bin, domain.BinDayOfYear.Bin(times[1]))
	assert.InDelta(t, 2.0, b.Mean[b.StatIndex(bin, 0)], 1e-12)
}
