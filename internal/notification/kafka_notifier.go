package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	apperrors "github.com/allisson/eventflow/internal/errors"
)

// KafkaConfig holds Kafka notifier configuration.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// KafkaNotifier publishes notification events to a Kafka topic, keyed by
// event subject so events for the same entity land on the same partition.
type KafkaNotifier struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewKafkaNotifier creates a new KafkaNotifier.
func NewKafkaNotifier(cfg KafkaConfig, logger *slog.Logger) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		MaxAttempts:            5,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	return &KafkaNotifier{writer: writer, logger: logger}
}

// Publish encodes the event as JSON and writes it to the topic.
func (n *KafkaNotifier) Publish(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return apperrors.Wrap(err, "failed to encode notification event")
	}

	err = n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Subject),
		Value: value,
	})
	if err != nil {
		return apperrors.Wrap(err, "failed to publish notification event")
	}

	n.logger.Debug("notification published",
		slog.String("event_id", event.ID),
		slog.String("type", event.Type),
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
