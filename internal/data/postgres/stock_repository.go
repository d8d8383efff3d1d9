// Package postgres provides PostgreSQL implementations of the domain repositories.
// Every repository can be rebound to a transaction with WithTx so that the
// unit of work can combine stock, bag, request and outbox writes atomically.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bloodbank-ledger/internal/domain/inventory"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

const (
	selectStockQuery = `
		SELECT blood_group, units, version, updated_at
		FROM blood_stock
		WHERE blood_group = $1
	`
	selectAllStockQuery = `
		SELECT blood_group, units, version, updated_at
		FROM blood_stock
		ORDER BY blood_group
	`
	lockStockQuery = `
		SELECT blood_group, units, version, updated_at
		FROM blood_stock
		WHERE blood_group = $1
		FOR UPDATE
	`
	updateStockQuery = `
		UPDATE blood_stock
		SET units = $1, version = $2, updated_at = $3
		WHERE blood_group = $4 AND version = $5
	`
)

// StockRepository implements the inventory.StockRepository interface for PostgreSQL
type StockRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewStockRepository creates a new PostgreSQL stock repository
func NewStockRepository(logger *slog.Logger, db *persistence.PostgresDB) *StockRepository {
	return &StockRepository{
		querier: db.Querier(),
		logger:  logger,
	}
}

// WithTx returns a copy of the repository bound to tx
func (r *StockRepository) WithTx(tx pgx.Tx) *StockRepository {
	return &StockRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Get reads the counter for one group without locking
func (r *StockRepository) Get(ctx context.Context, group shared.BloodGroup) (*inventory.Stock, error) {
	return r.queryOne(ctx, selectStockQuery, group, "get stock")
}

// LockForUpdate obtains a row lock on the group's counter and returns its current state.
// It must run inside a transaction; callers lock groups in shared.SortBloodGroups order.
func (r *StockRepository) LockForUpdate(ctx context.Context, group shared.BloodGroup) (*inventory.Stock, error) {
	return r.queryOne(ctx, lockStockQuery, group, "lock stock for update")
}

func (r *StockRepository) queryOne(ctx context.Context, query string, group shared.BloodGroup, op string) (*inventory.Stock, error) {
	var stock inventory.Stock
	var dbGroup string
	err := r.querier.QueryRow(ctx, query, string(group)).Scan(
		&dbGroup,
		&stock.Units,
		&stock.Version,
		&stock.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Entity: "blood stock", ID: string(group)}
		}
		r.logger.Error("Failed to "+op, "blood_group", string(group), "error", err)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	stock.BloodGroup = shared.BloodGroup(dbGroup)

	return &stock, nil
}

// GetAll reads every counter
func (r *StockRepository) GetAll(ctx context.Context) ([]*inventory.Stock, error) {
	rows, err := r.querier.Query(ctx, selectAllStockQuery)
	if err != nil {
		r.logger.Error("Failed to list stock", "error", err)
		return nil, fmt.Errorf("failed to list stock: %w", err)
	}
	defer rows.Close()

	var stocks []*inventory.Stock
	for rows.Next() {
		var stock inventory.Stock
		var dbGroup string
		if err := rows.Scan(&dbGroup, &stock.Units, &stock.Version, &stock.UpdatedAt); err != nil {
			r.logger.Error("Failed to scan stock", "error", err)
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stock.BloodGroup = shared.BloodGroup(dbGroup)
		stocks = append(stocks, &stock)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over stock rows", "error", err)
		return nil, fmt.Errorf("error iterating over stock rows: %w", err)
	}

	return stocks, nil
}

// Update writes the new count, checking the version the caller read.
// Returns shared.ConcurrentModificationError if the row moved on in between.
func (r *StockRepository) Update(ctx context.Context, stock *inventory.Stock) error {
	result, err := r.querier.Exec(ctx, updateStockQuery,
		stock.Units,
		stock.Version,
		stock.UpdatedAt,
		string(stock.BloodGroup),
		stock.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update stock", "blood_group", string(stock.BloodGroup), "error", err)
		return fmt.Errorf("failed to update stock: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ConcurrentModificationError{Entity: "blood stock", ID: string(stock.BloodGroup)}
	}

	return nil
}
