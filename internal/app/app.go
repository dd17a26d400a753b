// Package app wires the services shared by every pipeline command: config,
// logger, metrics, the catalog and the artifact publisher.
package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	kafkaadapter "github.com/AsociacionCA/aca-indice-climatico/internal/adapter/kafka"
	"github.com/AsociacionCA/aca-indice-climatico/internal/catalog"
	"github.com/AsociacionCA/aca-indice-climatico/internal/config"
	"github.com/AsociacionCA/aca-indice-climatico/internal/observability"
	"github.com/AsociacionCA/aca-indice-climatico/internal/pipeline"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

const pushTimeout = 10 * time.Second

// Env is what a stage function receives.
type Env struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *observability.Metrics
	Layout  storage.Layout
	Catalog *catalog.Catalog
	Runner  *pipeline.Runner

	writer *kafkaadapter.Writer
}

// New builds the environment of stage from cfg.
func New(stage string, cfg *config.Config) (*Env, error) {
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	opts := []pipeline.Option{pipeline.WithRecorder(cat)}

	env := &Env{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Layout:  storage.NewLayout(cfg.DataDir),
		Catalog: cat,
	}
	if cfg.KafkaEnabled {
		env.writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithPublisher(env.writer))
		logger.Info("artifact events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("artifact events disabled")
	}
	env.Runner = pipeline.NewRunner(stage, logger, metrics, opts...)
	return env, nil
}

// Artifact registers a file written by the stage.
func (e *Env) Artifact(ctx context.Context, variable, product, path string) error {
	return e.Runner.Artifact(ctx, variable, product, path)
}

// Close pushes metrics and releases the catalog and the Kafka writer.
func (e *Env) Close(job string) {
	ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
	defer cancel()
	if err := e.Metrics.Push(ctx, e.Config.PushgatewayURL, job); err != nil {
		e.Logger.Warn("metrics push failed", "error", err)
	}
	if e.writer != nil {
		if err := e.writer.Close(); err != nil {
			e.Logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := e.Catalog.Close(); err != nil {
		e.Logger.Error("catalog close error", "error", err)
	}
}

// Main runs fn as stage and exits non-zero on failure. Flags must already
// be parsed.
func Main(stage string, fn func(ctx context.Context, env *Env) error) {
	os.Exit(run(stage, fn))
}

func run(stage string, fn func(ctx context.Context, env *Env) error) int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}
	env, err := New(stage, cfg)
	if err != nil {
		slog.Error("failed to start", "stage", stage, "error", err)
		return 1
	}
	defer env.Close("aca_" + stage)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := env.Runner.Run(ctx, func(ctx context.Context) error { return fn(ctx, env) }); err != nil {
		return 1
	}
	return 0
}
