// Package cds talks to the Copernicus Climate Data Store retrieve API.
package cds

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/observability"
)

// ErrUnauthorized means the API key was rejected. It is never retried.
var ErrUnauthorized = errors.New("cds: unauthorized")

// ErrJobFailed means the CDS accepted the request but could not produce it.
var ErrJobFailed = errors.New("cds: job failed")

// Job states reported by the retrieve API.
const (
	StatusAccepted   = "accepted"
	StatusRunning    = "running"
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
	StatusDismissed  = "dismissed"
)

// Client submits ERA5 requests and downloads the results.
type Client struct {
	token        string
	httpClient   *http.Client
	baseURL      string
	dataset      string
	pollInterval time.Duration
	clock        clockwork.Clock
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewClient creates a CDS client for one dataset.
func NewClient(baseURL, token, dataset string, timeout, pollInterval time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token:        token,
		httpClient:   &http.Client{Timeout: timeout},
		baseURL:      baseURL,
		dataset:      dataset,
		pollInterval: pollInterval,
		clock:        clockwork.NewRealClock(),
		metrics:      metrics,
		logger:       logger,
	}
}

// SetClock replaces the clock used between status polls.
func (c *Client) SetClock(clock clockwork.Clock) { c.clock = clock }

// Submit posts an execution request and returns the job ID.
func (c *Client) Submit(ctx context.Context, req Request) (string, error) {
	body, err := json.Marshal(executeRequest{Inputs: req.inputs()})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	u := fmt.Sprintf("%s/retrieve/v1/processes/%s/execution", c.baseURL, c.dataset)

	var st jobStatus
	if err := c.doJSON(ctx, http.MethodPost, u, bytes.NewReader(body), &st); err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	if st.JobID == "" {
		return "", fmt.Errorf("submit: %w: response without jobID", domain.ErrMalformedInput)
	}
	c.logger.Info("cds job submitted", "job_id", st.JobID)
	return st.JobID, nil
}

// Status returns the current state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (string, error) {
	var st jobStatus
	u := fmt.Sprintf("%s/retrieve/v1/jobs/%s", c.baseURL, jobID)
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &st); err != nil {
		return "", fmt.Errorf("job %s status: %w", jobID, err)
	}
	return st.Status, nil
}

// Wait polls a job until it succeeds, fails or ctx ends.
func (c *Client) Wait(ctx context.Context, jobID string) error {
	for {
		status, err := c.Status(ctx, jobID)
		if err != nil {
			return err
		}
		switch status {
		case StatusSuccessful:
			return nil
		case StatusFailed, StatusDismissed:
			return fmt.Errorf("%w: job %s is %s", ErrJobFailed, jobID, status)
		}
		c.logger.Debug("cds job pending", "job_id", jobID, "status", status)

		timer := c.clock.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.Chan():
		}
	}
}

// ResultURL returns the download link of a finished job.
func (c *Client) ResultURL(ctx context.Context, jobID string) (string, error) {
	var res results
	u := fmt.Sprintf("%s/retrieve/v1/jobs/%s/results", c.baseURL, jobID)
	if err := c.doJSON(ctx, http.MethodGet, u, nil, &res); err != nil {
		return "", fmt.Errorf("job %s results: %w", jobID, err)
	}
	if res.Asset.Value.Href == "" {
		return "", fmt.Errorf("job %s results: %w: no asset href", jobID, domain.ErrMalformedInput)
	}
	return res.Asset.Value.Href, nil
}

// Download streams a finished job's result from href to path+".partial"
// and renames it once complete, so path only ever holds a whole file. It
// returns the number of bytes written.
func (c *Client) Download(ctx context.Context, href, path string) (int64, error) {
	partial := path + ".partial"
	n, err := c.fetch(ctx, href, partial)
	if err != nil {
		_ = os.Remove(partial)
		return 0, err
	}
	if err := os.Rename(partial, path); err != nil {
		_ = os.Remove(partial)
		return 0, fmt.Errorf("rename %s: %w", partial, err)
	}
	c.metrics.BytesDownloaded.Add(float64(n))
	c.logger.Info("cds result downloaded", "path", path, "bytes", n)
	return n, nil
}

func (c *Client) fetch(ctx context.Context, href, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, href, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download: %w: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return 0, fmt.Errorf("download: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	n, err := io.Copy(f, resp.Body)
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("download: %w: %v", domain.ErrTransient, err)
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		f.Close()
		return 0, fmt.Errorf("download: %w: got %d of %d bytes", domain.ErrTransient, n, resp.ContentLength)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return 0, fmt.Errorf("sync %s: %w", path, err)
	}
	return n, f.Close()
}

func (c *Client) doJSON(ctx context.Context, method, u string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// checkStatus maps HTTP status codes onto the retry taxonomy.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", ErrUnauthorized, resp.StatusCode, body)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%w: cds API error: status %d: %s", domain.ErrTransient, resp.StatusCode, body)
	default:
		return fmt.Errorf("cds API error: status %d: %s", resp.StatusCode, body)
	}
}

// CDS API payloads.

type executeRequest struct {
	Inputs map[string]interface{} `json:"inputs"`
}

type jobStatus struct {
	JobID  string `json:"jobID"`
	Status string `json:"status"`
}

type results struct {
	Asset struct {
		Value struct {
			Href string `json:"href"`
			Size int64  `json:"file:size"`
		} `json:"value"`
	} `json:"asset"`
}
