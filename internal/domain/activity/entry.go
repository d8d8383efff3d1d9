package activity

import (
	"encoding/json"
	"time"

	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Entry is one projected domain event in the activity log
type Entry struct {
	EventID       uuid.UUID              `json:"event_id" bson:"event_id"`
	EventType     shared.EventType       `json:"event_type" bson:"event_type"`
	AggregateType shared.AggregateType   `json:"aggregate_type" bson:"aggregate_type"`
	AggregateID   string                 `json:"aggregate_id" bson:"aggregate_id"`
	Actor         shared.Actor           `json:"actor" bson:"actor"`
	Data          map[string]interface{} `json:"data,omitempty" bson:"data,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at" bson:"occurred_at"`
	ProjectedAt   time.Time              `json:"projected_at" bson:"projected_at"`
}

// NewEntry flattens a domain event into an activity entry
func NewEntry(event *shared.DomainEvent) (*Entry, error) {
	var data map[string]interface{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &data); err != nil {
			return nil, err
		}
	}

	return &Entry{
		EventID:       event.EventID,
		EventType:     event.Type,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Actor:         event.Actor,
		Data:          data,
		CorrelationID: event.CorrelationID,
		OccurredAt:    event.OccurredAt,
		ProjectedAt:   time.Now(),
	}, nil
}
