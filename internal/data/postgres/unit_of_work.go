package postgres

import (
	"context"
	"log/slog"

	"github.com/bloodbank-ledger/internal/domain/uow"
	"github.com/bloodbank-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

// UnitOfWork runs workflows inside a single PostgreSQL transaction
type UnitOfWork struct {
	db           *persistence.PostgresDB
	stock        *StockRepository
	transactions *TransactionRepository
	bags         *BagRepository
	requests     *BloodRequestRepository
	donations    *DonationRepository
	outbox       *OutboxRepository
}

var _ uow.UnitOfWork = (*UnitOfWork)(nil)

func NewUnitOfWork(logger *slog.Logger, db *persistence.PostgresDB) *UnitOfWork {
	return &UnitOfWork{
		db:           db,
		stock:        NewStockRepository(logger, db),
		transactions: NewTransactionRepository(logger, db),
		bags:         NewBagRepository(logger, db),
		requests:     NewBloodRequestRepository(logger, db),
		donations:    NewDonationRepository(logger, db),
		outbox:       NewOutboxRepository(logger, db),
	}
}

// Execute binds every repository to one transaction for the duration of fn
func (u *UnitOfWork) Execute(ctx context.Context, fn func(ctx context.Context, repos uow.Repositories) error) error {
	return u.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, uow.Repositories{
			Stock:        u.stock.WithTx(tx),
			Transactions: u.transactions.WithTx(tx),
			Bags:         u.bags.WithTx(tx),
			Requests:     u.requests.WithTx(tx),
			Donations:    u.donations.WithTx(tx),
			Outbox:       u.outbox.WithTx(tx),
		})
	})
}

func (u *UnitOfWork) Repositories() uow.Repositories {
	return uow.Repositories{
		Stock:        u.stock,
		Transactions: u.transactions,
		Bags:         u.bags,
		Requests:     u.requests,
		Donations:    u.donations,
		Outbox:       u.outbox,
	}
}

// Outbox exposes the pool-bound outbox repository for the poller
func (u *UnitOfWork) Outbox() *OutboxRepository {
	return u.outbox
}
