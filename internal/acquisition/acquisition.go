// Package acquisition plans and downloads ERA5 batches.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/AsociacionCA/aca-indice-climatico/internal/adapter/cds"
	"github.com/AsociacionCA/aca-indice-climatico/internal/catalog"
	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/observability"
	"github.com/AsociacionCA/aca-indice-climatico/internal/pipeline"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

// Variables maps pipeline variable names to ERA5 request names.
var Variables = map[string][]string{
	"temperature":   {"2m_temperature"},
	"precipitation": {"total_precipitation"},
	"wind":          {"10m_u_component_of_wind", "10m_v_component_of_wind"},
}

// ShortNames maps pipeline variables to the NetCDF variable names they
// produce.
var ShortNames = map[string][]string{
	"temperature":   {"t2m"},
	"precipitation": {"tp"},
	"wind":          {"u10", "v10"},
}

// Granularity of batches.
const (
	ByYear  = "year"
	ByMonth = "month"
)

// Request describes what to acquire.
type Request struct {
	Variable string
	Period   domain.Period
	Area     cds.Area
	// Batch is ByYear (default) or ByMonth.
	Batch string
}

// Batch is one download unit with its deterministic raw path.
type Batch struct {
	Variable string
	Year     int
	Month    int // 0 for a whole year
	Path     string
}

// Key identifies the batch in the catalog ("1990" or "1990-02").
func (b Batch) Key() string {
	if b.Month > 0 {
		return fmt.Sprintf("%04d-%02d", b.Year, b.Month)
	}
	return fmt.Sprintf("%04d", b.Year)
}

// Plan splits a request into batches. Year batches are used unless the
// request asks for months; partial first/last years still download whole
// years so consolidation sees complete calendar years.
func Plan(req Request, layout storage.Layout) ([]Batch, error) {
	if _, ok := Variables[req.Variable]; !ok {
		return nil, fmt.Errorf("%w: unknown variable %q (want one of %s)", domain.ErrMalformedInput, req.Variable, strings.Join(VariableNames(), ", "))
	}
	if req.Period.IsZero() {
		return nil, fmt.Errorf("%w: empty period", domain.ErrMalformedInput)
	}
	var out []Batch
	for _, y := range req.Period.Years() {
		if req.Batch != ByMonth {
			out = append(out, Batch{Variable: req.Variable, Year: y, Path: layout.RawERA5(req.Variable, y, 0)})
			continue
		}
		for m := 1; m <= 12; m++ {
			first := time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
			last := first.AddDate(0, 1, -1)
			if !req.Period.Overlaps(domain.Period{Start: first, End: last}) {
				continue
			}
			out = append(out, Batch{Variable: req.Variable, Year: y, Month: m, Path: layout.RawERA5(req.Variable, y, m)})
		}
	}
	return out, nil
}

// VariableNames lists supported variables in a stable order.
func VariableNames() []string {
	return []string{"temperature", "precipitation", "wind"}
}

// Retriever runs the steps of one CDS retrieval. Each step is retried on
// its own so a failed poll or download keeps the submitted job.
type Retriever interface {
	Submit(ctx context.Context, req cds.Request) (string, error)
	Wait(ctx context.Context, jobID string) error
	ResultURL(ctx context.Context, jobID string) (string, error)
	Download(ctx context.Context, href, path string) (int64, error)
}

// BatchStore remembers finished batches.
type BatchStore interface {
	Batch(ctx context.Context, variable, period string) (catalog.Batch, bool, error)
	UpsertBatch(ctx context.Context, b catalog.Batch) error
}

// Result summarises a run.
type Result struct {
	Downloaded []Batch
	Skipped    []Batch
	Failed     []Batch
}

// Acquirer downloads planned batches one at a time.
type Acquirer struct {
	retriever Retriever
	store     BatchStore
	retry     pipeline.Retry
	area      cds.Area
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates an Acquirer.
func New(retriever Retriever, store BatchStore, retry pipeline.Retry, logger *slog.Logger, metrics *observability.Metrics) *Acquirer {
	a := &Acquirer{
		retriever: retriever,
		store:     store,
		retry:     retry,
		logger:    logger,
		metrics:   metrics,
	}
	a.retry.OnRetry = func(attempt int, wait time.Duration, err error) {
		metrics.RequestRetries.WithLabelValues("cds").Inc()
		logger.Warn("cds request failed, retrying", "attempt", attempt, "wait", wait, "error", err)
	}
	return a
}

// Run downloads every batch that is not already complete. A failed batch does
// not stop the others; the returned error is non-nil when any batch failed.
func (a *Acquirer) Run(ctx context.Context, req Request, batches []Batch) (Result, error) {
	var res Result
	for _, b := range batches {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		log := a.logger.With("variable", b.Variable, "batch", b.Key())

		done, err := a.complete(ctx, b)
		if err != nil {
			return res, err
		}
		if done {
			log.Info("batch already downloaded, skipping", "path", b.Path)
			a.metrics.BatchesSkipped.Inc()
			res.Skipped = append(res.Skipped, b)
			continue
		}

		if err := a.download(ctx, req, b, log); err != nil {
			if errors.Is(err, cds.ErrUnauthorized) {
				return res, err
			}
			log.Error("batch failed", "error", err)
			a.metrics.BatchesFailed.Inc()
			res.Failed = append(res.Failed, b)
			continue
		}
		a.metrics.BatchesDownloaded.Inc()
		res.Downloaded = append(res.Downloaded, b)
	}
	if len(res.Failed) > 0 {
		keys := make([]string, len(res.Failed))
		for i, b := range res.Failed {
			keys[i] = b.Key()
		}
		return res, fmt.Errorf("%d batches failed: %s", len(res.Failed), strings.Join(keys, ", "))
	}
	return res, nil
}

// complete reports whether the raw file exists and matches a complete
// catalog row.
func (a *Acquirer) complete(ctx context.Context, b Batch) (bool, error) {
	ok, size := storage.Exists(b.Path)
	if !ok {
		return false, nil
	}
	row, found, err := a.store.Batch(ctx, b.Variable, b.Key())
	if err != nil {
		return false, err
	}
	return found && row.Status == catalog.StatusComplete && row.Bytes == size, nil
}

func (a *Acquirer) download(ctx context.Context, req Request, b Batch, log *slog.Logger) error {
	creq := cds.Request{Variables: Variables[b.Variable], Year: b.Year, Area: req.Area}
	if b.Month > 0 {
		creq.Months = []int{b.Month}
	}
	if err := ensureDir(b.Path); err != nil {
		return err
	}

	size, attempts, err := a.retrieve(ctx, creq, b.Path)

	row := catalog.Batch{Variable: b.Variable, Period: b.Key(), Path: b.Path, Attempts: attempts}
	if err != nil {
		row.Status = catalog.StatusFailed
		if serr := a.store.UpsertBatch(ctx, row); serr != nil {
			log.Warn("catalog update failed", "error", serr)
		}
		return err
	}
	row.Status = catalog.StatusComplete
	row.Bytes = size
	if err := a.store.UpsertBatch(ctx, row); err != nil {
		return err
	}
	log.Info("batch downloaded", "path", b.Path, "bytes", size, "attempts", attempts)
	return nil
}

// retrieve submits the request once and retries the later steps against
// the same job. attempts counts the first try plus every retry.
func (a *Acquirer) retrieve(ctx context.Context, req cds.Request, path string) (size int64, attempts int, err error) {
	var jobID, href string
	steps := []struct {
		name string
		op   func(ctx context.Context) error
	}{
		{"submit", func(ctx context.Context) (err error) {
			jobID, err = a.retriever.Submit(ctx, req)
			return err
		}},
		{"wait", func(ctx context.Context) error {
			return a.retriever.Wait(ctx, jobID)
		}},
		{"results", func(ctx context.Context) (err error) {
			href, err = a.retriever.ResultURL(ctx, jobID)
			return err
		}},
		{"download", func(ctx context.Context) (err error) {
			size, err = a.retriever.Download(ctx, href, path)
			return err
		}},
	}
	attempts = 1
	for _, s := range steps {
		n, err := a.retry.Do(ctx, s.op)
		attempts += n - 1
		if err != nil {
			return 0, attempts, fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return size, attempts, nil
}
