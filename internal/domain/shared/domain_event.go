package shared

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType names a committed state change
type EventType string

const (
	EventStockEntryRecorded    EventType = "stock.entry_recorded"
	EventStockDonationRecorded EventType = "stock.donation_recorded"
	EventStockExchangeRecorded EventType = "stock.exchange_recorded"
	EventBagCreated            EventType = "bag.created"
	EventBagUsed               EventType = "bag.used"
	EventDonationSubmitted     EventType = "donation.submitted"
	EventDonationApproved      EventType = "donation.approved"
	EventDonationRejected      EventType = "donation.rejected"
	EventRequestSubmitted      EventType = "request.submitted"
	EventRequestDonorAssigned  EventType = "request.donor_assigned"
	EventRequestBankAssigned   EventType = "request.bank_assigned"
	EventRequestStatusChanged  EventType = "request.status_changed"
	EventRequestApproved       EventType = "request.approved"
	EventRequestRejected       EventType = "request.rejected"
	EventRequestCancelled      EventType = "request.cancelled"
)

// AggregateType names the entity an event belongs to
type AggregateType string

const (
	AggregateStock    AggregateType = "stock"
	AggregateBag      AggregateType = "bag"
	AggregateDonation AggregateType = "donation_request"
	AggregateRequest  AggregateType = "blood_request"
)

// DomainEvent defines a Kafka message describing a committed change
type DomainEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	Type          EventType       `json:"type"`
	AggregateType AggregateType   `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	Actor         Actor           `json:"actor"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}
