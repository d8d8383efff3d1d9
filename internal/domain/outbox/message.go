package outbox

import (
	"encoding/json"
	"time"

	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Message stores a domain event for reliable publishing after commit
type Message struct {
	ID            int64               `json:"id"`
	EventID       uuid.UUID           `json:"event_id"`
	EventType     shared.EventType    `json:"event_type"`
	AggregateType string              `json:"aggregate_type"`
	AggregateID   string              `json:"aggregate_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewMessage(event *shared.DomainEvent) (*Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	return &Message{
		EventID:       event.EventID,
		EventType:     event.Type,
		AggregateType: string(event.AggregateType),
		AggregateID:   event.AggregateID,
		Payload:       payload,
		Status:        shared.OutboxStatusPending,
		Attempts:      0,
		CreatedAt:     time.Now(),
	}, nil
}

// IncrementAttempts records one more failed publish
func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

// Exhausted reports whether the message has used up its publish attempts
func (m *Message) Exhausted(maxAttempts int) bool {
	return m.Attempts >= maxAttempts
}

// SetStatus moves the message out of (or back into) the pending queue
func (m *Message) SetStatus(status shared.OutboxStatus) {
	m.Status = status
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetEvent extracts the domain event from the payload
func (m *Message) GetEvent() (*shared.DomainEvent, error) {
	var event shared.DomainEvent
	if err := json.Unmarshal(m.Payload, &event); err != nil {
		return nil, err
	}
	return &event, nil
}
