package inventory

import (
	"time"

	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// Transaction is an immutable ledger record. Entry and donate transactions use
// BloodGroup; exchange transactions use FromGroup and ToGroup.
type Transaction struct {
	ID                 uuid.UUID              `json:"id"`
	Type               shared.TransactionType `json:"type"`
	BloodGroup         shared.BloodGroup      `json:"blood_group,omitempty"`
	FromGroup          shared.BloodGroup      `json:"from_group,omitempty"`
	ToGroup            shared.BloodGroup      `json:"to_group,omitempty"`
	Units              int                    `json:"units"`
	ResultingStock     int                    `json:"resulting_stock"`
	FromResultingStock *int                   `json:"from_resulting_stock,omitempty"`
	Actor              shared.Actor           `json:"actor"`
	Meta               map[string]string      `json:"meta,omitempty"`
	LinkedRequestID    *uuid.UUID             `json:"linked_request_id,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
}

// Groups returns the blood groups the transaction touches, in lock order
func (t *Transaction) Groups() []shared.BloodGroup {
	if t.Type == shared.TransactionTypeExchange {
		groups := []shared.BloodGroup{t.FromGroup, t.ToGroup}
		shared.SortBloodGroups(groups)
		return groups
	}
	return []shared.BloodGroup{t.BloodGroup}
}

// Effect returns the signed change the transaction applied to group
func (t *Transaction) Effect(group shared.BloodGroup) int {
	switch t.Type {
	case shared.TransactionTypeEntry:
		if t.BloodGroup == group {
			return t.Units
		}
	case shared.TransactionTypeDonate:
		if t.BloodGroup == group {
			return -t.Units
		}
	case shared.TransactionTypeExchange:
		effect := 0
		if t.FromGroup == group {
			effect -= t.Units
		}
		if t.ToGroup == group {
			effect += t.Units
		}
		return effect
	}
	return 0
}

// Filter narrows ListTransactions. Zero values mean "any".
type Filter struct {
	Type            shared.TransactionType
	BloodGroup      shared.BloodGroup // matches blood_group, from_group or to_group
	LinkedRequestID *uuid.UUID
	From            *time.Time
	To              *time.Time
	Limit           int
	Offset          int
}

// Matches applies the filter to a single transaction
func (f Filter) Matches(t *Transaction) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.BloodGroup != "" && t.BloodGroup != f.BloodGroup && t.FromGroup != f.BloodGroup && t.ToGroup != f.BloodGroup {
		return false
	}
	if f.LinkedRequestID != nil && (t.LinkedRequestID == nil || *t.LinkedRequestID != *f.LinkedRequestID) {
		return false
	}
	if f.From != nil && t.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && t.CreatedAt.After(*f.To) {
		return false
	}
	return true
}
