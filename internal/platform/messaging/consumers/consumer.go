package consumers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bloodbank-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer defines the message queue consumer interface
type Consumer interface {
	Run(ctx context.Context, handler MessageHandler) error
	Close() error
}

// MessageReader is the part of kafka.Reader the consumer uses
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads the events topic as part of a consumer group. Offsets
// are committed only after the handler succeeds, so delivery is at least once.
type KafkaConsumer struct {
	reader       MessageReader
	logger       *slog.Logger
	topic        string
	groupID      string
	retryBackoff time.Duration
}

func NewKafkaConsumer(logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	startOffset := kafka.FirstOffset
	if cfg.StartOffset == kafka.LastOffset {
		startOffset = kafka.LastOffset
	}

	return &KafkaConsumer{
		logger:  logger,
		topic:   cfg.EventsTopic,
		groupID: cfg.ConsumerGroup,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{cfg.Brokers},
			Topic:       cfg.EventsTopic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			MaxWait:     cfg.MaxWait,
			StartOffset: startOffset,
		}),
		retryBackoff: time.Second,
	}
}

// Run fetches and handles messages until ctx is cancelled. A message whose
// handler fails is retried after a backoff and is not committed until it succeeds.
func (c *KafkaConsumer) Run(ctx context.Context, handler MessageHandler) error {
	logger := c.logger.With("topic", c.topic, "group_id", c.groupID)
	logger.Info("Subscribed to Kafka topic")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				logger.Info("Context canceled, stopping consumer")
				return nil
			}
			logger.Error("Failed to fetch message from Kafka", "error", err)
			if !c.sleep(ctx) {
				return nil
			}
			continue
		}

		msgLogger := logger.With(
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", string(msg.Key),
		)
		msgLogger.Debug("Received message from Kafka")

		for attempt := 1; ; attempt++ {
			err := handler(ctx, msg.Key, msg.Value)
			if err == nil {
				break
			}
			msgLogger.Error("Failed to process message, will not commit offset", "attempt", attempt, "error", err)
			if !c.sleep(ctx) {
				return nil
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			msgLogger.Error("Failed to commit message after successful processing", "error", err)
			continue
		}
		msgLogger.Debug("Message committed")
	}
}

func (c *KafkaConsumer) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.retryBackoff):
		return true
	}
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
