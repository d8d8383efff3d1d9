package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/bloodbank-ledger/internal/domain/outbox"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// eventRecorder writes domain events to the outbox inside the caller's unit of work
type eventRecorder struct {
	logger *slog.Logger
}

func newEventRecorder(logger *slog.Logger) *eventRecorder {
	return &eventRecorder{logger: logger}
}

// record marshals payload into a DomainEvent and stores it as a pending outbox message
func (r *eventRecorder) record(
	ctx context.Context,
	repo outbox.Repository,
	actor shared.Actor,
	eventType shared.EventType,
	aggregateType shared.AggregateType,
	aggregateID string,
	payload any,
) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}

	event := &shared.DomainEvent{
		EventID:       uuid.New(),
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Actor:         actor,
		Payload:       data,
		CorrelationID: shared.CorrelationIDFrom(ctx),
		OccurredAt:    time.Now(),
	}

	msg, err := outbox.NewMessage(event)
	if err != nil {
		return fmt.Errorf("failed to create outbox message for %s: %w", eventType, err)
	}

	if err := repo.Create(ctx, msg); err != nil {
		r.logger.Error("Failed to create outbox message",
			"event_type", string(eventType),
			"aggregate_id", aggregateID,
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message for %s: %w", eventType, err)
	}

	r.logger.Debug("Outbox message created",
		"event_id", event.EventID.String(),
		"event_type", string(eventType),
		"outbox_id", msg.ID,
	)
	return nil
}
