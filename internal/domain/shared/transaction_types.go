package shared

// TransactionType defines the three ledger mutation kinds
type TransactionType string

const (
	TransactionTypeEntry    TransactionType = "entry"
	TransactionTypeDonate   TransactionType = "donate"
	TransactionTypeExchange TransactionType = "exchange"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeEntry, TransactionTypeDonate, TransactionTypeExchange:
		return true
	}
	return false
}

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)
