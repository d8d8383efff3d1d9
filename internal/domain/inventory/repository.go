package inventory

import (
	"context"

	"github.com/bloodbank-ledger/internal/domain/shared"
)

// StockRepository defines blood stock counter persistence
type StockRepository interface {
	Get(ctx context.Context, group shared.BloodGroup) (*Stock, error)
	GetAll(ctx context.Context) ([]*Stock, error)

	// LockForUpdate acquires a pessimistic lock on the group's counter.
	// Every group is seeded at zero, so a missing row is a NotFoundError.
	LockForUpdate(ctx context.Context, group shared.BloodGroup) (*Stock, error)

	// Update persists units using optimistic locking on the previous version
	Update(ctx context.Context, stock *Stock) error
}

// TransactionRepository manages the append-only transaction log
type TransactionRepository interface {
	Append(ctx context.Context, txn *Transaction) error
	List(ctx context.Context, filter Filter) ([]*Transaction, error)
	Count(ctx context.Context, filter Filter) (int64, error)
}
