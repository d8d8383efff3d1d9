package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/event_processor/service"
	"github.com/bloodbank-ledger/internal/platform/messaging/producers"
)

// EventHandler handles domain events read from the events topic
type EventHandler struct {
	projector service.ProjectionService
	dlq       producers.DeadLetterPublisher
	logger    *slog.Logger
}

func NewEventHandler(
	logger *slog.Logger,
	projector service.ProjectionService,
	dlq producers.DeadLetterPublisher,
) *EventHandler {
	return &EventHandler{
		projector: projector,
		dlq:       dlq,
		logger:    logger,
	}
}

// HandleMessage projects one message. Messages that can never be projected
// are parked in the DLQ and acknowledged; other failures are returned so the
// consumer retries without committing.
func (h *EventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.DomainEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return h.deadLetter(ctx, key, value, fmt.Errorf("%w: %v", service.ErrInvalidEvent, err))
	}

	logger := h.logger.With("event_id", event.EventID.String(), "event_type", event.Type)
	if event.CorrelationID != "" {
		logger = logger.With("correlation_id", event.CorrelationID)
	}
	logger.Debug("Received domain event", "aggregate_id", event.AggregateID)

	if err := h.projector.Project(ctx, &event); err != nil {
		if errors.Is(err, service.ErrInvalidEvent) {
			return h.deadLetter(ctx, key, value, err)
		}
		logger.Error("Failed to project event", "error", err)
		return fmt.Errorf("projecting event %s failed: %w", event.EventID, err)
	}
	return nil
}

func (h *EventHandler) deadLetter(ctx context.Context, key, value []byte, cause error) error {
	h.logger.Error("Unprocessable event", "message_key", string(key), "error", cause)

	if h.dlq == nil {
		h.logger.Warn("Dropping unprocessable event, DLQ is not configured", "message_key", string(key))
		return nil
	}

	if err := h.dlq.PublishToDLQ(ctx, string(key), value, cause.Error()); err != nil {
		if errors.Is(err, producers.ErrDLQDisabled) {
			h.logger.Warn("Dropping unprocessable event, DLQ is not configured", "message_key", string(key))
			return nil
		}
		return fmt.Errorf("failed to park unprocessable event: %w", err)
	}
	return nil
}
