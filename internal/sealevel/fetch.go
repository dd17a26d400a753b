package sealevel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/AsociacionCA/aca-indice-climatico/internal/adapter/psmsl"
	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/observability"
	"github.com/AsociacionCA/aca-indice-climatico/internal/pipeline"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

// Downloader fetches one station file to path.
type Downloader interface {
	Download(ctx context.Context, st domain.Station, path string) (int64, error)
}

// Fetcher keeps raw station files cached under the data layout.
type Fetcher struct {
	downloader Downloader
	layout     storage.Layout
	retry      pipeline.Retry
	logger     *slog.Logger
}

// NewFetcher returns a Fetcher that retries transient failures with retry.
func NewFetcher(d Downloader, layout storage.Layout, retry pipeline.Retry, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	retry.OnRetry = func(attempt int, wait time.Duration, err error) {
		metrics.RequestRetries.WithLabelValues("psmsl").Inc()
		logger.Warn("psmsl download failed, retrying", "attempt", attempt, "wait", wait, "error", err)
	}
	return &Fetcher{downloader: d, layout: layout, retry: retry, logger: logger}
}

// Path returns the cache path of a station file.
func (f *Fetcher) Path(st domain.Station) string {
	return f.layout.RawPSMSL(st.ID, psmsl.Extension(st.Product))
}

// Fetch returns the cached file of st, downloading it when missing or when
// refresh is set.
func (f *Fetcher) Fetch(ctx context.Context, st domain.Station, refresh bool) (string, error) {
	path := f.Path(st)
	if ok, size := storage.Exists(path); ok && size > 0 && !refresh {
		f.logger.Debug("using cached station file", "station", st.ID, "path", path)
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	_, err := f.retry.Do(ctx, func(ctx context.Context) error {
		_, err := f.downloader.Download(ctx, st, path)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("station %s: %w", st.ID, err)
	}
	return path, nil
}
