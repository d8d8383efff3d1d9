package outbox_poller

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bloodbank-ledger/internal/domain/outbox"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/messaging/producers"
)

// EventRelay hands one outbox message to the broker
type EventRelay interface {
	Relay(ctx context.Context, message *outbox.Message, event *shared.DomainEvent) error
}

// KafkaRelay publishes the stored event unchanged and then marks the outbox
// row processed. If marking fails the row is relayed again on a later tick;
// the activity projection ignores the duplicate.
type KafkaRelay struct {
	outboxRepo outbox.Repository
	publisher  producers.EventPublisher
	logger     *slog.Logger
}

var _ EventRelay = (*KafkaRelay)(nil)

func NewKafkaRelay(outboxRepo outbox.Repository, publisher producers.EventPublisher, logger *slog.Logger) *KafkaRelay {
	return &KafkaRelay{
		outboxRepo: outboxRepo,
		publisher:  publisher,
		logger:     logger,
	}
}

func (r *KafkaRelay) Relay(ctx context.Context, message *outbox.Message, event *shared.DomainEvent) error {
	headers := map[string]string{
		"event-type":     string(event.Type),
		"aggregate-type": string(event.AggregateType),
	}
	if event.CorrelationID != "" {
		headers["correlation-id"] = event.CorrelationID
	}

	if err := r.publisher.Publish(ctx, message.AggregateID, message.Payload, headers); err != nil {
		return fmt.Errorf("publish outbox %d: %w", message.ID, err)
	}

	if err := r.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		return fmt.Errorf("event %s published, but failed to mark outbox %d as PROCESSED: %w", message.EventID, message.ID, err)
	}
	return nil
}
