package producers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bloodbank-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

// EventProducer publishes domain events relayed from the outbox. Writes are
// synchronous and acknowledged by all replicas, so a nil return means the
// event is durable and the outbox row may be marked processed.
type EventProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

var _ EventPublisher = (*EventProducer)(nil)

func NewEventProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*EventProducer, error) {
	if cfg.EventsTopic == "" {
		return nil, fmt.Errorf("kafka events topic is not configured")
	}

	if err := ensureTopic(ctx, cfg.Brokers, cfg.EventsTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure events topic %s exists: %w", cfg.EventsTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.EventsTopic,
		Balancer:     &kafka.Hash{}, // same aggregate, same partition
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.MaxWait,
	}

	return &EventProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.EventsTopic,
	}, nil
}

// Publish writes one event keyed by its aggregate id
func (p *EventProducer) Publish(ctx context.Context, key string, value []byte, headers map[string]string) error {
	msg := kafka.Message{
		Key:     []byte(key),
		Value:   value,
		Headers: toHeaders(headers),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish event to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published event", "topic", p.topic, "key", key)
	return nil
}

func (p *EventProducer) Close() error {
	p.logger.Info("Closing event producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
