package sealevel

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/observability"
	"github.com/AsociacionCA/aca-indice-climatico/internal/pipeline"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

// fileDownloader serves sample for known stations and 404s the rest.
type fileDownloader map[string]string

func (d fileDownloader) Download(_ context.Context, st domain.Station, path string) (int64, error) {
	body, ok := d[st.ID]
	if !ok {
		return 0, errors.New("404 not found")
	}
	return int64(len(body)), os.WriteFile(path, []byte(body), 0o644)
}

func TestRun(t *testing.T) {
	layout := storage.NewLayout(t.TempDir())
	retry := pipeline.Retry{MaxAttempts: 2, Clock: clockwork.NewFakeClock()}
	f := NewFetcher(fileDownloader{"572": sample}, layout, retry, observability.DiscardLogger(), observability.NewMetricsForTesting())
	stations := []domain.Station{
		{ID: "572", Name: "Cartagena", Product: "met"},
		{ID: "9999", Name: "Nowhere", Product: "met"},
	}

	res, err := Run(context.Background(), f, layout, stations, RunOptions{}, observability.DiscardLogger(), observability.NewMetricsForTesting())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "9999")
	assert.Equal(t, []string{"9999"}, res.Failed)
	require.Len(t, res.Series, 1)
	assert.Equal(t, []string{SeriesPath(layout, "572"), filepath.Join(layout.SeaLevelDir(), TrendsFile)}, res.Files)
	assert.Equal(t, 1, res.Series[0].Rejected[ReasonSentinel])

	loaded, err := Load(layout, stations[:1])
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Len(t, loaded[0].Rows, 3)
	assert.InDelta(t, res.Series[0].Trend.OLSSlope, loaded[0].Trend.OLSSlope, 1e-9)
}

func TestRun_Cancelled(t *testing.T) {
	layout := storage.NewLayout(t.TempDir())
	f := NewFetcher(fileDownloader{}, layout, pipeline.Retry{}, observability.DiscardLogger(), observability.NewMetricsForTesting())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, f, layout, DefaultStations, RunOptions{}, observability.DiscardLogger(), observability.NewMetricsForTesting())
	assert.ErrorIs(t, err, context.Canceled)
}
