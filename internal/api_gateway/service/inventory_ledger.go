package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/bloodbank-ledger/internal/domain/inventory"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/domain/uow"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/google/uuid"
)

// InventoryLedgerService implements the InventoryLedger interface
type InventoryLedgerService struct {
	uow     uow.UnitOfWork
	stock   *stockManager
	events  *eventRecorder
	metrics *metrics.Metrics
	logger  *slog.Logger
}

var _ InventoryLedger = (*InventoryLedgerService)(nil)

func NewInventoryLedger(logger *slog.Logger, unitOfWork uow.UnitOfWork, m *metrics.Metrics) *InventoryLedgerService {
	return &InventoryLedgerService{
		uow:     unitOfWork,
		stock:   newStockManager(logger),
		events:  newEventRecorder(logger),
		metrics: m,
		logger:  logger,
	}
}

// ledgerResult is what a committed ledger operation changed
type ledgerResult struct {
	txn    *inventory.Transaction
	stocks []*inventory.Stock
}

func (l *InventoryLedgerService) RecordEntry(ctx context.Context, actor shared.Actor, group shared.BloodGroup, units int, meta map[string]string) (*inventory.Transaction, error) {
	if err := shared.Authorize(actor, shared.CapStockWrite); err != nil {
		return nil, err
	}

	var res *ledgerResult
	err := l.uow.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		var err error
		res, err = l.entry(ctx, repos, actor, group, units, meta, nil)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.observe(res)
	return res.txn, nil
}

func (l *InventoryLedgerService) RecordDonation(ctx context.Context, actor shared.Actor, group shared.BloodGroup, units int, meta map[string]string, linkedRequestID *uuid.UUID) (*inventory.Transaction, error) {
	if err := shared.Authorize(actor, shared.CapStockWrite); err != nil {
		return nil, err
	}

	var res *ledgerResult
	err := l.uow.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		var err error
		res, err = l.donate(ctx, repos, actor, group, units, meta, linkedRequestID)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.observe(res)
	return res.txn, nil
}

func (l *InventoryLedgerService) RecordExchange(ctx context.Context, actor shared.Actor, from, to shared.BloodGroup, units int, meta map[string]string) (*ExchangeResult, error) {
	if err := shared.Authorize(actor, shared.CapStockWrite); err != nil {
		return nil, err
	}

	var res *ledgerResult
	err := l.uow.Execute(ctx, func(ctx context.Context, repos uow.Repositories) error {
		var err error
		res, err = l.exchange(ctx, repos, actor, from, to, units, meta)
		return err
	})
	if err != nil {
		return nil, err
	}

	l.observe(res)
	return &ExchangeResult{Transaction: res.txn, From: res.stocks[0], To: res.stocks[1]}, nil
}

func (l *InventoryLedgerService) GetStock(ctx context.Context, group shared.BloodGroup) (*inventory.Stock, error) {
	if !group.Valid() {
		return nil, shared.ErrInvalidBloodGroup
	}
	return l.uow.Repositories().Stock.Get(ctx, group)
}

func (l *InventoryLedgerService) GetStockAll(ctx context.Context) (map[shared.BloodGroup]int, error) {
	stocks, err := l.uow.Repositories().Stock.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	all := make(map[shared.BloodGroup]int, 8)
	for _, group := range shared.AllBloodGroups() {
		all[group] = 0
	}
	for _, stock := range stocks {
		all[stock.BloodGroup] = stock.Units
	}
	return all, nil
}

func (l *InventoryLedgerService) ListTransactions(ctx context.Context, filter inventory.Filter) ([]*inventory.Transaction, int64, error) {
	repo := l.uow.Repositories().Transactions

	txns, err := repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	return txns, total, nil
}

// entry credits stock inside an open unit of work
func (l *InventoryLedgerService) entry(ctx context.Context, repos uow.Repositories, actor shared.Actor, group shared.BloodGroup, units int, meta map[string]string, linked *uuid.UUID) (*ledgerResult, error) {
	if !group.Valid() {
		return nil, shared.ErrInvalidBloodGroup
	}
	if units <= 0 {
		return nil, shared.ErrInvalidUnits
	}

	locked, err := l.stock.lock(ctx, repos.Stock, group)
	if err != nil {
		return nil, err
	}
	stock := locked[group]
	if err := stock.Add(units); err != nil {
		return nil, err
	}
	if err := l.stock.save(ctx, repos.Stock, stock); err != nil {
		return nil, err
	}

	txn := &inventory.Transaction{
		ID:              uuid.New(),
		Type:            shared.TransactionTypeEntry,
		BloodGroup:      group,
		Units:           units,
		ResultingStock:  stock.Units,
		Actor:           actor,
		Meta:            meta,
		LinkedRequestID: linked,
		CreatedAt:       time.Now(),
	}
	if err := l.append(ctx, repos, txn, shared.EventStockEntryRecorded); err != nil {
		return nil, err
	}

	return &ledgerResult{txn: txn, stocks: []*inventory.Stock{stock}}, nil
}

// donate debits stock inside an open unit of work
func (l *InventoryLedgerService) donate(ctx context.Context, repos uow.Repositories, actor shared.Actor, group shared.BloodGroup, units int, meta map[string]string, linked *uuid.UUID) (*ledgerResult, error) {
	if !group.Valid() {
		return nil, shared.ErrInvalidBloodGroup
	}
	if units <= 0 {
		return nil, shared.ErrInvalidUnits
	}

	locked, err := l.stock.lock(ctx, repos.Stock, group)
	if err != nil {
		return nil, err
	}
	stock := locked[group]
	if err := stock.Remove(units); err != nil {
		l.logger.Warn("Donation refused", "blood_group", group.String(), "units", units, "available", stock.Units)
		return nil, err
	}
	if err := l.stock.save(ctx, repos.Stock, stock); err != nil {
		return nil, err
	}

	txn := &inventory.Transaction{
		ID:              uuid.New(),
		Type:            shared.TransactionTypeDonate,
		BloodGroup:      group,
		Units:           units,
		ResultingStock:  stock.Units,
		Actor:           actor,
		Meta:            meta,
		LinkedRequestID: linked,
		CreatedAt:       time.Now(),
	}
	if err := l.append(ctx, repos, txn, shared.EventStockDonationRecorded); err != nil {
		return nil, err
	}

	return &ledgerResult{txn: txn, stocks: []*inventory.Stock{stock}}, nil
}

// exchange moves units between two groups inside an open unit of work.
// The result's stocks are ordered from, to.
func (l *InventoryLedgerService) exchange(ctx context.Context, repos uow.Repositories, actor shared.Actor, from, to shared.BloodGroup, units int, meta map[string]string) (*ledgerResult, error) {
	if !from.Valid() || !to.Valid() {
		return nil, shared.ErrInvalidBloodGroup
	}
	if from == to {
		return nil, shared.ErrSameGroup
	}
	if units <= 0 {
		return nil, shared.ErrInvalidUnits
	}

	locked, err := l.stock.lock(ctx, repos.Stock, from, to)
	if err != nil {
		return nil, err
	}
	fromStock, toStock := locked[from], locked[to]
	if err := fromStock.Remove(units); err != nil {
		l.logger.Warn("Exchange refused", "from_group", from.String(), "units", units, "available", fromStock.Units)
		return nil, err
	}
	if err := toStock.Add(units); err != nil {
		return nil, err
	}

	ordered := []*inventory.Stock{fromStock, toStock}
	if to < from {
		ordered = []*inventory.Stock{toStock, fromStock}
	}
	if err := l.stock.save(ctx, repos.Stock, ordered...); err != nil {
		return nil, err
	}

	fromResulting := fromStock.Units
	txn := &inventory.Transaction{
		ID:                 uuid.New(),
		Type:               shared.TransactionTypeExchange,
		FromGroup:          from,
		ToGroup:            to,
		Units:              units,
		ResultingStock:     toStock.Units,
		FromResultingStock: &fromResulting,
		Actor:              actor,
		Meta:               meta,
		CreatedAt:          time.Now(),
	}
	if err := l.append(ctx, repos, txn, shared.EventStockExchangeRecorded); err != nil {
		return nil, err
	}

	return &ledgerResult{txn: txn, stocks: []*inventory.Stock{fromStock, toStock}}, nil
}

func (l *InventoryLedgerService) append(ctx context.Context, repos uow.Repositories, txn *inventory.Transaction, eventType shared.EventType) error {
	if err := repos.Transactions.Append(ctx, txn); err != nil {
		l.logger.Error("Failed to append transaction", "type", string(txn.Type), "error", err)
		return err
	}
	aggregateID := txn.BloodGroup.String()
	if txn.Type == shared.TransactionTypeExchange {
		aggregateID = txn.FromGroup.String()
	}
	return l.events.record(ctx, repos.Outbox, txn.Actor, eventType, shared.AggregateStock, aggregateID, txn)
}

// observe publishes a committed result to the metrics and the log
func (l *InventoryLedgerService) observe(res *ledgerResult) {
	txn := res.txn
	group := txn.BloodGroup
	if txn.Type == shared.TransactionTypeExchange {
		group = txn.FromGroup
	}
	l.metrics.ObserveLedger(string(txn.Type), group.String(), txn.Units)
	for _, stock := range res.stocks {
		l.metrics.SetStock(stock.BloodGroup.String(), stock.Units)
	}

	l.logger.Info("Ledger transaction committed",
		"transaction_id", txn.ID.String(),
		"type", string(txn.Type),
		"blood_group", group.String(),
		"units", txn.Units,
		"resulting_stock", txn.ResultingStock,
	)
}
