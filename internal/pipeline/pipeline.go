// Package pipeline wraps each batch stage with a run identity, structured
// logs, metrics, artifact bookkeeping and the retry policy for upstream calls.
package pipeline

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/observability"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

// ArtifactRecorder persists artifact rows (the catalog).
type ArtifactRecorder interface {
	RecordArtifact(ctx context.Context, a domain.ArtifactEvent) error
}

// ArtifactPublisher announces artifacts to downstream consumers (Kafka).
type ArtifactPublisher interface {
	Publish(ctx context.Context, events ...domain.ArtifactEvent) error
}

// Runner executes one stage.
type Runner struct {
	stage     string
	runID     string
	logger    *slog.Logger
	metrics   *observability.Metrics
	recorder  ArtifactRecorder
	publisher ArtifactPublisher
	artifacts []domain.ArtifactEvent
}

// Option configures a Runner.
type Option func(*Runner)

// WithRecorder stores every artifact in r.
func WithRecorder(r ArtifactRecorder) Option {
	return func(rn *Runner) { rn.recorder = r }
}

// WithPublisher publishes every artifact through p.
func WithPublisher(p ArtifactPublisher) Option {
	return func(rn *Runner) { rn.publisher = p }
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(rn *Runner) { rn.runID = id }
}

// NewRunner creates a Runner for stage with a fresh run ID.
func NewRunner(stage string, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Runner {
	r := &Runner{
		stage:   stage,
		runID:   uuid.NewString(),
		metrics: metrics,
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = logger.With("stage", stage, "run_id", r.runID)
	return r
}

// RunID identifies this execution.
func (r *Runner) RunID() string { return r.runID }

// Logger is the stage logger carrying stage and run_id attributes.
func (r *Runner) Logger() *slog.Logger { return r.logger }

// Artifacts returns the artifacts recorded so far.
func (r *Runner) Artifacts() []domain.ArtifactEvent { return r.artifacts }

// Run executes fn, logging start and finish and observing the duration.
func (r *Runner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	start := time.Now()
	r.logger.Info("stage started")
	r.metrics.StageRunning.Set(1)
	defer r.metrics.StageRunning.Set(0)

	err := fn(ctx)
	elapsed := time.Since(start)
	if err != nil {
		r.metrics.StageDuration.WithLabelValues(r.stage, "error").Observe(elapsed.Seconds())
		r.logger.Error("stage failed", "error", err, "duration", elapsed, "artifacts", len(r.artifacts))
		return err
	}
	r.metrics.StageDuration.WithLabelValues(r.stage, "success").Observe(elapsed.Seconds())
	r.logger.Info("stage finished", "duration", elapsed, "artifacts", len(r.artifacts))
	return nil
}

// Artifact registers a written file: it hashes it, records it in the
// catalog and publishes an event. Catalog and publish failures are logged,
// never returned; only a missing file is an error.
func (r *Runner) Artifact(ctx context.Context, variable, product, path string) error {
	sum, size, err := storage.Checksum(path)
	if err != nil {
		return err
	}
	event := domain.ArtifactEvent{
		RunID:     r.runID,
		Stage:     r.stage,
		Variable:  variable,
		Product:   product,
		Path:      filepath.ToSlash(path),
		SHA256:    sum,
		Bytes:     size,
		CreatedAt: domain.Now(),
	}
	r.artifacts = append(r.artifacts, event)
	r.metrics.Artifacts.WithLabelValues(r.stage).Inc()
	r.logger.Info("artifact written", "variable", variable, "product", product, "path", event.Path, "bytes", size)

	if r.recorder != nil {
		if err := r.recorder.RecordArtifact(ctx, event); err != nil {
			r.logger.Warn("catalog record failed", "error", err, "path", event.Path)
		}
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.metrics.ArtifactPublishErrors.Inc()
			r.logger.Warn("artifact publish failed", "error", err, "path", event.Path)
		}
	}
	return nil
}
