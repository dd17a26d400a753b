package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/AsociacionCA/aca-indice-climatico/internal/config"
	"github.com/AsociacionCA/aca-indice-climatico/internal/domain"
)

// Writer publishes artifact events to a Kafka topic.
// It implements pipeline.ArtifactPublisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured artifact topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.KafkaBrokers...),
		Topic:                  cfg.KafkaTopic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish sends one artifact event. Events for the same path share a key so
// they land on one partition in order.
func (w *Writer) Publish(ctx context.Context, events ...domain.ArtifactEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(events))
	for i := range events {
		msg, err := serializeToMessage(events[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := w.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d artifact events: %w", len(msgs), err)
	}
	w.logger.Debug("artifact events published", "count", len(msgs), "topic", w.writer.Topic)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

func serializeToMessage(event domain.ArtifactEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize artifact event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Path),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "stage", Value: []byte(event.Stage)},
			{Key: "run_id", Value: []byte(event.RunID)},
			{Key: "created_at", Value: []byte(event.CreatedAt.Format(time.RFC3339))},
		},
	}, nil
}
