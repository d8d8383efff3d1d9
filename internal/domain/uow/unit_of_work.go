// Package uow defines the atomic boundary shared by every mutating workflow.
package uow

import (
	"context"

	"github.com/bloodbank-ledger/internal/domain/bag"
	"github.com/bloodbank-ledger/internal/domain/bloodrequest"
	"github.com/bloodbank-ledger/internal/domain/donation"
	"github.com/bloodbank-ledger/internal/domain/inventory"
	"github.com/bloodbank-ledger/internal/domain/outbox"
)

// Repositories is the set of repositories bound to one unit of work
type Repositories struct {
	Stock        inventory.StockRepository
	Transactions inventory.TransactionRepository
	Bags         bag.Repository
	Requests     bloodrequest.Repository
	Donations    donation.Repository
	Outbox       outbox.Repository
}

// UnitOfWork runs fn atomically: every write made through repos commits
// together when fn returns nil and is discarded when it returns an error.
type UnitOfWork interface {
	Execute(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error

	// Repositories returns repositories for reads outside a unit of work
	Repositories() Repositories
}
