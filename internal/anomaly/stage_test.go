package anomaly

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/indices"
	"github.com/AsociacionCA/aca-indice-climatico/internal/ncio"
	"github.com/AsociacionCA/aca-indice-climatico/internal/observability"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

// seedTemperature writes a consolidated t2m file for 1990-1993 and the
// baselines over 1990-1992.
func seedTemperature(t *testing.T) (storage.Layout, indices.Profile) {
	t.Helper()
	grid := domain.Grid{Lat: []float64{5, 4}, Lon: []float64{-75, -74}}
	var times []time.Time
	for y := 1990; y <= 1993; y++ {
		for d := 0; d < 31; d++ {
			for h := 0; h < 24; h += 12 {
				times = append(times, time.Date(y, 1, 1+d, h, 0, 0, 0, time.UTC))
			}
		}
	}
	raw := domain.NewField("t2m", "K", grid, times)
	for k := range raw.Data {
		raw.Data[k] = 295 + float64(k%11)/2
	}
	layout := storage.NewLayout(t.TempDir())
	require.NoError(t, ncio.WriteFields(layout.ConsolidatedFile("temperature"), raw))

	p, err := indices.Lookup("temperature")
	require.NoError(t, err)
	b, err := p.Build([]*domain.Field{raw}, indices.Options{
		Reference:  domain.MustPeriod("1990:1992"),
		Binning:    domain.BinMonth,
		MinSamples: 3,
	})
	require.NoError(t, err)
	_, err = p.Save(layout, b)
	require.NoError(t, err)
	return layout, p
}

func TestRun(t *testing.T) {
	layout, p := seedTemperature(t)

	outs, err := Run(layout, p, RunOptions{Mode: Mode{Kind: Difference}}, observability.DiscardLogger())
	require.NoError(t, err)
	require.Len(t, outs, 6)
	assert.Equal(t, "tmax_difference", outs[0].Name)
	assert.Equal(t, "tx90", outs[2].Name)
	assert.Equal(t, filepath.Join(layout.ProductDir("temperature", storage.Anomaly), "tx90.nc"), outs[2].Path)

	tmax, err := ncio.ReadField(outs[0].Path, "tmax_difference")
	require.NoError(t, err)
	assert.Len(t, tmax.Times, 4*31)
	assert.Equal(t, "difference", tmax.Attr("anomaly_mode"))

	tx90, err := ncio.ReadField(outs[2].Path, "tx90_standardized")
	require.NoError(t, err)
	assert.Len(t, tx90.Times, 4)
}

func TestRun_Period(t *testing.T) {
	layout, p := seedTemperature(t)

	outs, err := Run(layout, p, RunOptions{Mode: Mode{Kind: Standardized}, Period: domain.MustPeriod("1993:1993")}, observability.DiscardLogger())
	require.NoError(t, err)
	f, err := ncio.ReadField(outs[1].Path, "tmin_standardized")
	require.NoError(t, err)
	assert.Len(t, f.Times, 31)
	assert.Equal(t, 1993, f.Times[0].Year())
}

func TestRun_StrictReference(t *testing.T) {
	layout, p := seedTemperature(t)

	_, err := Run(layout, p, RunOptions{Mode: Mode{Kind: Difference}, Period: domain.MustPeriod("1992:1993"), Strict: true}, observability.DiscardLogger())
	assert.ErrorIs(t, err, domain.ErrMalformedInput)
}

func TestRun_StrictReferenceWithoutPeriod(t *testing.T) {
	layout, p := seedTemperature(t)

	_, err := Run(layout, p, RunOptions{Mode: Mode{Kind: Difference}, Strict: true}, observability.DiscardLogger())
	assert.ErrorIs(t, err, domain.ErrMalformedInput, "the whole record overlaps 1990-1992")

	_, err = Run(layout, p, RunOptions{Mode: Mode{Kind: Difference}, Period: domain.MustPeriod("1993:1993"), Strict: true}, observability.DiscardLogger())
	assert.NoError(t, err)
}

func TestRun_WarnsOnOverlapWithoutPeriod(t *testing.T) {
	layout, p := seedTemperature(t)
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	_, err := Run(layout, p, RunOptions{Mode: Mode{Kind: Difference}}, logger)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "overlaps the reference period")
	assert.Contains(t, buf.String(), "period=1990-01-01:1993-01-31")
}

func TestEvalPeriod(t *testing.T) {
	grid := domain.Grid{Lat: []float64{5, 4}, Lon: []float64{-75, -74}}
	f := domain.NewField("tmax", "degC", grid, []time.Time{
		time.Date(1961, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	assert.Equal(t, domain.MustPeriod("1961:2020"), evalPeriod(domain.Period{}, f))

	given := domain.MustPeriod("1991:2020")
	assert.Equal(t, given, evalPeriod(given, f))
}

func TestRun_EmptyPeriod(t *testing.T) {
	layout, p := seedTemperature(t)

	_, err := Run(layout, p, RunOptions{Mode: Mode{Kind: Difference}, Period: domain.MustPeriod("2001:2002")}, observability.DiscardLogger())
	assert.ErrorIs(t, err, domain.ErrMissingPeriod)
}
