package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bloodbank-ledger/internal/domain/inventory"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
)

const (
	insertTransactionQuery = `
		INSERT INTO inventory_transactions (id, type, blood_group, from_group, to_group, units, resulting_stock,
			from_resulting_stock, actor_id, actor_name, actor_role, meta, linked_request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	selectTransactionsQuery = `
		SELECT id, type, blood_group, from_group, to_group, units, resulting_stock, from_resulting_stock,
			actor_id, actor_name, actor_role, meta, linked_request_id, created_at
		FROM inventory_transactions`
	countTransactionsQuery = `SELECT COUNT(*) FROM inventory_transactions`
)

// TransactionRepository implements the inventory.TransactionRepository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction log repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) *TransactionRepository {
	return &TransactionRepository{
		querier: db.Querier(),
		logger:  logger,
	}
}

// WithTx returns a copy of the repository bound to tx
func (r *TransactionRepository) WithTx(tx pgx.Tx) *TransactionRepository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Append inserts an immutable transaction record
func (r *TransactionRepository) Append(ctx context.Context, txn *inventory.Transaction) error {
	meta := txn.Meta
	if meta == nil {
		meta = map[string]string{}
	}

	_, err := r.querier.Exec(ctx, insertTransactionQuery,
		txn.ID,
		string(txn.Type),
		nullableGroup(txn.BloodGroup),
		nullableGroup(txn.FromGroup),
		nullableGroup(txn.ToGroup),
		txn.Units,
		txn.ResultingStock,
		txn.FromResultingStock,
		txn.Actor.ID,
		txn.Actor.Name,
		string(txn.Actor.Role),
		meta,
		txn.LinkedRequestID,
		txn.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append transaction", "transaction_id", txn.ID.String(), "error", err)
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

// List returns matching transactions, newest first
func (r *TransactionRepository) List(ctx context.Context, filter inventory.Filter) ([]*inventory.Transaction, error) {
	w := transactionWhere(filter)
	query := selectTransactionsQuery + w.String() + " ORDER BY created_at DESC" + w.page(filter.Limit, filter.Offset)

	rows, err := r.querier.Query(ctx, query, w.args...)
	if err != nil {
		r.logger.Error("Failed to list transactions", "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txns := []*inventory.Transaction{}
	for rows.Next() {
		var (
			txn                            inventory.Transaction
			txnType, actorRole             string
			bloodGroup, fromGroup, toGroup *string
		)
		err := rows.Scan(
			&txn.ID,
			&txnType,
			&bloodGroup,
			&fromGroup,
			&toGroup,
			&txn.Units,
			&txn.ResultingStock,
			&txn.FromResultingStock,
			&txn.Actor.ID,
			&txn.Actor.Name,
			&actorRole,
			&txn.Meta,
			&txn.LinkedRequestID,
			&txn.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan transaction", "error", err)
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txn.Type = shared.TransactionType(txnType)
		txn.Actor.Role = shared.Role(actorRole)
		txn.BloodGroup = groupFromNullable(bloodGroup)
		txn.FromGroup = groupFromNullable(fromGroup)
		txn.ToGroup = groupFromNullable(toGroup)
		txns = append(txns, &txn)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over transactions", "error", err)
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}

	return txns, nil
}

// Count returns the number of transactions matching the filter, ignoring pagination
func (r *TransactionRepository) Count(ctx context.Context, filter inventory.Filter) (int64, error) {
	w := transactionWhere(filter)

	var count int64
	if err := r.querier.QueryRow(ctx, countTransactionsQuery+w.String(), w.args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count transactions", "error", err)
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func transactionWhere(filter inventory.Filter) *where {
	w := &where{}
	if filter.Type != "" {
		w.add("type = $%d", string(filter.Type))
	}
	if filter.BloodGroup != "" {
		w.add("(blood_group = $%d OR from_group = $%[1]d OR to_group = $%[1]d)", string(filter.BloodGroup))
	}
	if filter.LinkedRequestID != nil {
		w.add("linked_request_id = $%d", *filter.LinkedRequestID)
	}
	if filter.From != nil {
		w.add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		w.add("created_at <= $%d", *filter.To)
	}
	return w
}

func nullableGroup(g shared.BloodGroup) *string {
	if g == "" {
		return nil
	}
	s := string(g)
	return &s
}

func groupFromNullable(s *string) shared.BloodGroup {
	if s == nil {
		return ""
	}
	return shared.BloodGroup(*s)
}
