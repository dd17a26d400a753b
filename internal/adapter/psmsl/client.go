// Package psmsl downloads monthly tide-gauge files from the Permanent Service
// for Mean Sea Level.
package psmsl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/observability"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

// Products.
const (
	ProductMetric = "met"
	ProductRLR    = "rlr"
)

// Client fetches station files over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a PSMSL client. baseURL is normally
// https://psmsl.org/data/obtaining.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// Extension returns the file extension for a product ("metdata", "rlrdata").
func Extension(product string) string {
	return product + "data"
}

// URL returns the monthly data URL of a station.
func (c *Client) URL(st domain.Station) string {
	return fmt.Sprintf("%s/%s.monthly.data/%s.%s", c.baseURL, st.Product, st.ID, Extension(st.Product))
}

// Download fetches the station file and writes it atomically to path.
func (c *Client) Download(ctx context.Context, st domain.Station, path string) (int64, error) {
	if st.Product != ProductMetric && st.Product != ProductRLR {
		return 0, fmt.Errorf("%w: station %s product %q", domain.ErrMalformedInput, st.ID, st.Product)
	}
	u := c.URL(st)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("station %s: %w: %v", st.ID, domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return 0, fmt.Errorf("station %s: %w: psmsl status %d", st.ID, domain.ErrTransient, resp.StatusCode)
	default:
		return 0, fmt.Errorf("station %s: psmsl status %d for %s", st.ID, resp.StatusCode, u)
	}

	var n int64
	err = storage.WriteAtomic(path, func(w io.Writer) error {
		var copyErr error
		n, copyErr = io.Copy(w, resp.Body)
		if copyErr != nil {
			return fmt.Errorf("station %s: %w: %v", st.ID, domain.ErrTransient, copyErr)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	c.metrics.BytesDownloaded.Add(float64(n))
	c.logger.Info("psmsl station downloaded", "station", st.ID, "bytes", n, "path", path)
	return n, nil
}
