package observability

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the Prometheus collectors for pipeline stages. Batch commands
// are short-lived, so collectors live in a private registry that is pushed to
// a Pushgateway at exit.
type Metrics struct {
	registry *prometheus.Registry

	StageRunning  prometheus.Gauge
	StageDuration *prometheus.HistogramVec // labels: stage, outcome={success,error}
	Artifacts     *prometheus.CounterVec   // labels: stage

	// Acquisition.
	BatchesDownloaded prometheus.Counter
	BatchesSkipped    prometheus.Counter
	BatchesFailed     prometheus.Counter
	RequestRetries    *prometheus.CounterVec // labels: source={cds,psmsl}
	BytesDownloaded   prometheus.Counter

	// Data quality.
	InsufficientSamples *prometheus.CounterVec // labels: series
	EmptyRegions        prometheus.Counter
	RecordsRejected     *prometheus.CounterVec // labels: reason={sentinel,flag,parse,window}

	ArtifactPublishErrors prometheus.Counter
}

// NewMetrics creates all pipeline metrics in a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		StageRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "aca",
			Name:      "stage_running",
			Help:      "1 while a stage is running, 0 once it finished.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aca",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of a pipeline stage.",
			Buckets:   []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"stage", "outcome"}),
		Artifacts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aca",
			Name:      "artifacts_written_total",
			Help:      "Output files written by stage.",
		}, []string{"stage"}),
		BatchesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aca",
			Name:      "batches_downloaded_total",
			Help:      "Reanalysis batches downloaded.",
		}),
		BatchesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aca",
			Name:      "batches_skipped_total",
			Help:      "Reanalysis batches already present and skipped.",
		}),
		BatchesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aca",
			Name:      "batches_failed_total",
			Help:      "Reanalysis batches that failed after all retries.",
		}),
		RequestRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aca",
			Name:      "request_retries_total",
			Help:      "Retried upstream requests by source.",
		}, []string{"source"}),
		BytesDownloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aca",
			Name:      "downloaded_bytes_total",
			Help:      "Bytes downloaded from upstream archives.",
		}),
		InsufficientSamples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aca",
			Name:      "insufficient_sample_cells_total",
			Help:      "Cell/bin pairs left NaN for lack of reference samples.",
		}, []string{"series"}),
		EmptyRegions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aca",
			Name:      "empty_regions_total",
			Help:      "Regions whose mask selected no grid cells.",
		}),
		RecordsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aca",
			Name:      "sealevel_records_rejected_total",
			Help:      "Tide-gauge records excluded by reason.",
		}, []string{"reason"}),
		ArtifactPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "aca",
			Name:      "artifact_publish_errors_total",
			Help:      "Artifact events that could not be published.",
		}),
	}

	m.registry.MustRegister(
		m.StageRunning,
		m.StageDuration,
		m.Artifacts,
		m.BatchesDownloaded,
		m.BatchesSkipped,
		m.BatchesFailed,
		m.RequestRetries,
		m.BytesDownloaded,
		m.InsufficientSamples,
		m.EmptyRegions,
		m.RecordsRejected,
		m.ArtifactPublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics in an isolated registry. Each call is
// independent so tests can run in parallel.
func NewMetricsForTesting() *Metrics {
	return NewMetrics()
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }

// Push sends the current values to a Pushgateway under the given job name.
// An empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
