package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bloodbank-ledger/internal/domain/outbox"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const outboxColumns = `id, event_id, event_type, aggregate_type, aggregate_id, payload, status, attempts, created_at, last_attempt_at`

const (
	insertOutboxQuery = `
		INSERT INTO event_outbox (event_id, event_type, aggregate_type, aggregate_id, payload, status, attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	selectPendingOutboxQuery = `SELECT ` + outboxColumns + ` FROM event_outbox WHERE status = $1 ORDER BY created_at ASC, id ASC LIMIT $2`
	selectOutboxByEventQuery = `SELECT ` + outboxColumns + ` FROM event_outbox WHERE event_id = $1`
	updateOutboxStatusQuery  = `UPDATE event_outbox SET status = $1, last_attempt_at = $2 WHERE id = $3`
	incrementOutboxQuery     = `UPDATE event_outbox SET attempts = attempts + 1, last_attempt_at = $1 WHERE id = $2`
	purgeOutboxQuery         = `DELETE FROM event_outbox WHERE status = $1 AND last_attempt_at < $2`
)

// OutboxRepository implements the outbox.Repository interface for PostgreSQL
type OutboxRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewOutboxRepository creates a new PostgreSQL outbox repository
func NewOutboxRepository(logger *slog.Logger, db *persistence.PostgresDB) *OutboxRepository {
	return &OutboxRepository{
		querier: db.Querier(),
		logger:  logger,
	}
}

// WithTx binds the repository to tx so events commit together with the state change they describe
func (r *OutboxRepository) WithTx(tx pgx.Tx) *OutboxRepository {
	return &OutboxRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new outbox message in pending status.
// The message will be picked up by the outbox poller for publishing.
func (r *OutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	err := r.querier.QueryRow(ctx, insertOutboxQuery,
		message.EventID,
		string(message.EventType),
		message.AggregateType,
		message.AggregateID,
		message.Payload,
		string(message.Status),
		message.Attempts,
		message.CreatedAt,
	).Scan(&message.ID)

	if err != nil {
		if _, ok := persistence.UniqueViolation(err); ok {
			return outbox.ErrDuplicateMessage{EventID: message.EventID}
		}
		r.logger.Error("Failed to create outbox message",
			"event_id", message.EventID.String(),
			"event_type", string(message.EventType),
			"error", err,
		)
		return fmt.Errorf("failed to create outbox message: %w", err)
	}

	return nil
}

// GetPending retrieves a batch of pending outbox messages in FIFO order
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	rows, err := r.querier.Query(ctx, selectPendingOutboxQuery, string(shared.OutboxStatusPending), limit)
	if err != nil {
		r.logger.Error("Failed to get pending outbox messages", "error", err)
		return nil, fmt.Errorf("failed to get pending outbox messages: %w", err)
	}
	defer rows.Close()

	var messages []*outbox.Message
	for rows.Next() {
		message, err := scanOutboxMessage(rows)
		if err != nil {
			r.logger.Error("Failed to scan outbox message", "error", err)
			return nil, fmt.Errorf("failed to scan outbox message: %w", err)
		}
		messages = append(messages, message)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over outbox messages", "error", err)
		return nil, fmt.Errorf("error iterating over outbox messages: %w", err)
	}

	return messages, nil
}

// UpdateStatus updates the message status and last attempt timestamp.
// Returns ErrMessageNotFound if the message doesn't exist.
func (r *OutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	result, err := r.querier.Exec(ctx, updateOutboxStatusQuery, string(status), time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update outbox message status",
			"id", id,
			"status", string(status),
			"error", err,
		)
		return fmt.Errorf("failed to update outbox message status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: id}
	}

	return nil
}

// IncrementAttempts bumps the retry counter used to give up on unpublishable messages
func (r *OutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	result, err := r.querier.Exec(ctx, incrementOutboxQuery, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to increment outbox message attempts", "id", id, "error", err)
		return fmt.Errorf("failed to increment outbox message attempts: %w", err)
	}

	if result.RowsAffected() == 0 {
		return outbox.ErrMessageNotFound{ID: id}
	}

	return nil
}

// PurgeProcessed drops relayed messages whose last attempt is older than before
func (r *OutboxRepository) PurgeProcessed(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.querier.Exec(ctx, purgeOutboxQuery, string(shared.OutboxStatusProcessed), before)
	if err != nil {
		r.logger.Error("Failed to purge processed outbox messages", "before", before, "error", err)
		return 0, fmt.Errorf("failed to purge processed outbox messages: %w", err)
	}
	return result.RowsAffected(), nil
}

// GetByEventID retrieves the message carrying the given event
func (r *OutboxRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) (*outbox.Message, error) {
	message, err := scanOutboxMessage(r.querier.QueryRow(ctx, selectOutboxByEventQuery, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, outbox.ErrMessageNotFound{}
		}
		r.logger.Error("Failed to get outbox message by event ID",
			"event_id", eventID.String(),
			"error", err,
		)
		return nil, fmt.Errorf("failed to get outbox message by event ID: %w", err)
	}

	return message, nil
}

func scanOutboxMessage(row pgx.Row) (*outbox.Message, error) {
	var (
		message           outbox.Message
		eventType, status string
	)
	err := row.Scan(
		&message.ID,
		&message.EventID,
		&eventType,
		&message.AggregateType,
		&message.AggregateID,
		&message.Payload,
		&status,
		&message.Attempts,
		&message.CreatedAt,
		&message.LastAttemptAt,
	)
	if err != nil {
		return nil, err
	}
	message.EventType = shared.EventType(eventType)
	message.Status = shared.OutboxStatus(status)
	return &message, nil
}
