package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEvent() *shared.DomainEvent {
	return &shared.DomainEvent{
		EventID:       uuid.New(),
		Type:          shared.EventBagUsed,
		AggregateType: shared.AggregateBag,
		AggregateID:   uuid.NewString(),
		Actor:         shared.Actor{ID: "admin-1", Role: shared.RoleAdmin},
		Payload:       json.RawMessage(`{"bag_number":"BAG-1"}`),
		OccurredAt:    time.Now().Truncate(time.Millisecond),
	}
}

func TestNewMessage(t *testing.T) {
	event := newTestEvent()

	before := time.Now()
	msg, err := NewMessage(event)
	require.NoError(t, err)

	assert.Equal(t, event.EventID, msg.EventID)
	assert.Equal(t, shared.EventBagUsed, msg.EventType)
	assert.Equal(t, "bag", msg.AggregateType)
	assert.Equal(t, event.AggregateID, msg.AggregateID)
	assert.Equal(t, shared.OutboxStatusPending, msg.Status)
	assert.Zero(t, msg.Attempts)
	assert.Nil(t, msg.LastAttemptAt)
	assert.False(t, msg.CreatedAt.Before(before))
}

func TestMessage_Attempts(t *testing.T) {
	msg := &Message{Attempts: 1}
	assert.False(t, msg.Exhausted(3))

	msg.IncrementAttempts()
	assert.Equal(t, 2, msg.Attempts)
	assert.NotNil(t, msg.LastAttemptAt)
	assert.False(t, msg.Exhausted(3))

	msg.IncrementAttempts()
	assert.True(t, msg.Exhausted(3))
}

func TestMessage_SetStatus(t *testing.T) {
	for _, status := range []shared.OutboxStatus{shared.OutboxStatusProcessed, shared.OutboxStatusFailedToPublish} {
		msg := &Message{Status: shared.OutboxStatusPending}
		msg.SetStatus(status)
		assert.Equal(t, status, msg.Status)
		assert.NotNil(t, msg.LastAttemptAt)
	}
}

func TestMessage_GetEvent(t *testing.T) {
	event := newTestEvent()
	msg, err := NewMessage(event)
	require.NoError(t, err)

	decoded, err := msg.GetEvent()
	require.NoError(t, err)
	assert.Equal(t, event.EventID, decoded.EventID)
	assert.Equal(t, event.Actor, decoded.Actor)
	assert.JSONEq(t, string(event.Payload), string(decoded.Payload))
	assert.True(t, event.OccurredAt.Equal(decoded.OccurredAt))

	_, err = (&Message{Payload: json.RawMessage("not json")}).GetEvent()
	assert.Error(t, err)
}
