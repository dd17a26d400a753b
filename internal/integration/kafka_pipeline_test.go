//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ctessum/geom"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"

	"github.com/AsociacionCA/aca-indice-climatico/internal/adapter/kafka"
	"github.com/AsociacionCA/aca-indice-climatico/internal/app"
	"github.com/AsociacionCA/aca-indice-climatico/internal/catalog"
	"github.com/AsociacionCA/aca-indice-climatico/internal/config"
	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
	"github.com/AsociacionCA/aca-indice-climatico/internal/ncio"
	"github.com/AsociacionCA/aca-indice-climatico/internal/observability"
	"github.com/AsociacionCA/aca-indice-climatico/internal/pipeline"
	"github.com/AsociacionCA/aca-indice-climatico/internal/regional"
	"github.com/AsociacionCA/aca-indice-climatico/internal/storage"
)

const testTopic = "test-climate-artifacts"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node broker and returns its address.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	container, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("aca-test"))
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "start kafka container")

	brokers, err := container.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	cconn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer cconn.Close()

	require.NoError(t, cconn.CreateTopics(kafkago.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1}))
}

// publishedMessage is a deserialized artifact event with its key and headers.
type publishedMessage struct {
	Event   domain.ArtifactEvent
	Key     string
	Headers map[string]string
}

func readEvent(ctx context.Context, t *testing.T, consumer *kafkago.Reader) publishedMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read artifact topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var event domain.ArtifactEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event), "unmarshal artifact event")
	return publishedMessage{Event: event, Key: string(msg.Key), Headers: headers}
}

func newConsumer(t *testing.T, broker string) *kafkago.Reader {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })
	return consumer
}

// TestRunnerPublishesArtifact verifies that a registered artifact reaches
// the topic with its checksum and is recorded in the catalog.
func TestRunnerPublishesArtifact(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	dir := t.TempDir()
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cat.Close() })

	writer := kafka.NewWriter(&config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	metrics := observability.NewMetricsForTesting()
	runner := pipeline.NewRunner("composite", discardLogger(), metrics,
		pipeline.WithRecorder(cat), pipeline.WithPublisher(writer), pipeline.WithRunID("run-it"))

	path := filepath.Join(dir, "processed", "composite", "08.csv")
	require.NoError(t, storage.WriteAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, "time,t90,t10,wind,rain,drought,ica\n")
		return err
	}))
	sum, size, err := storage.Checksum(path)
	require.NoError(t, err)

	require.NoError(t, runner.Run(ctx, func(ctx context.Context) error {
		return runner.Artifact(ctx, "composite", "08", path)
	}))

	got := readEvent(ctx, t, newConsumer(t, broker))
	assert.Equal(t, filepath.ToSlash(path), got.Key)
	assert.Equal(t, "composite", got.Headers["stage"])
	assert.Equal(t, "run-it", got.Headers["run_id"])
	_, err = time.Parse(time.RFC3339, got.Headers["created_at"])
	assert.NoError(t, err, "created_at should be valid RFC3339")

	assert.Equal(t, "run-it", got.Event.RunID)
	assert.Equal(t, "08", got.Event.Product)
	assert.Equal(t, sum, got.Event.SHA256)
	assert.Equal(t, size, got.Event.Bytes)

	rows, err := cat.Artifacts(ctx, "run-it")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, sum, rows[0].SHA256)
}

// TestRegionalStageEndToEnd runs the regional aggregation through the
// command environment and checks one event per regional CSV.
func TestRegionalStageEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	dir := t.TempDir()
	t.Setenv("DATA_DIR", dir)
	t.Setenv("CATALOG_PATH", filepath.Join(dir, "catalog.db"))
	t.Setenv("KAFKA_BROKERS", broker)
	t.Setenv("KAFKA_TOPIC", testTopic)
	t.Setenv("LOG_LEVEL", "error")
	cfg, err := config.Load()
	require.NoError(t, err)
	require.True(t, cfg.KafkaEnabled)

	env, err := app.New("regions", cfg)
	require.NoError(t, err)
	defer env.Close("aca_regions_test")

	grid := domain.Grid{Lat: []float64{5, 4}, Lon: []float64{-75, -74}}
	t0 := time.Date(1991, 1, 1, 0, 0, 0, 0, time.UTC)
	products := []string{"tx90", "tx10", "tmax_difference"}
	for k, name := range products {
		f := domain.NewField(name+"_anom", "1", grid, []time.Time{t0, t0.AddDate(0, 1, 0)})
		for c := range f.Data {
			f.Data[c] = float64(k + c)
		}
		f.Data[1] = math.NaN()
		require.NoError(t, ncio.WriteFields(env.Layout.AnomalyFile("temperature", name), f))
	}
	regions := []domain.Region{{ID: "08", Name: "Atlántico", Geometry: geom.Polygon{{
		{X: -76, Y: 3}, {X: -73, Y: 3}, {X: -73, Y: 6}, {X: -76, Y: 6},
	}}}}

	agg := regional.NewAggregator(nil, regional.MaskCenter, env.Logger, env.Metrics)
	require.NoError(t, env.Runner.Run(ctx, func(ctx context.Context) error {
		outs, err := agg.Run(env.Layout, "temperature", regions)
		if err != nil {
			return err
		}
		for _, o := range outs {
			if err := env.Artifact(ctx, "temperature", storage.Regional, o.Path); err != nil {
				return err
			}
		}
		return nil
	}))

	consumer := newConsumer(t, broker)
	seen := make(map[string]bool)
	for len(seen) < len(products) {
		got := readEvent(ctx, t, consumer)
		assert.Equal(t, "regions", got.Event.Stage)
		assert.Equal(t, env.Runner.RunID(), got.Event.RunID)
		_, statErr := os.Stat(filepath.FromSlash(got.Event.Path))
		assert.NoError(t, statErr)
		seen[filepath.Base(got.Event.Path)] = true
	}
	for _, name := range products {
		assert.True(t, seen[name+".csv"], "missing event for %s", name)
	}

	rows, err := regional.ReadSummaries(env.Layout.RegionalFile("temperature", "tx90"))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 3, rows[0].Cells)
	assert.InDelta(t, 5.0/3, rows[0].Value, 1e-12)
}
