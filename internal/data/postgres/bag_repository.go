package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bloodbank-ledger/internal/domain/bag"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const bagColumns = `id, bag_number, blood_group, donor_id, units_available, status, donation_request_id,
			used_by_request_id, created_at, used_at`

// bagNumberConstraint is the unique constraint on blood_bags.bag_number
const bagNumberConstraint = "uq_blood_bags_bag_number"

const (
	insertBagQuery = `
		INSERT INTO blood_bags (id, bag_number, blood_group, donor_id, units_available, status,
			donation_request_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	selectBagByIDQuery     = `SELECT ` + bagColumns + ` FROM blood_bags WHERE id = $1`
	selectBagByNumberQuery = `SELECT ` + bagColumns + ` FROM blood_bags WHERE bag_number = $1`
	selectAvailableBags    = `SELECT ` + bagColumns + ` FROM blood_bags WHERE status = 'available'`

	// markBagUsedQuery only matches a bag that is still available, so exactly one
	// of any number of concurrent callers gets a row back.
	markBagUsedQuery = `
		UPDATE blood_bags
		SET status = 'used', used_by_request_id = $2, used_at = $3
		WHERE id = $1 AND status = 'available'
		RETURNING ` + bagColumns
)

// BagRepository implements the bag.Repository interface for PostgreSQL
type BagRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewBagRepository creates a new PostgreSQL blood bag repository
func NewBagRepository(logger *slog.Logger, db *persistence.PostgresDB) *BagRepository {
	return &BagRepository{
		querier: db.Querier(),
		logger:  logger,
	}
}

// WithTx returns a copy of the repository bound to tx
func (r *BagRepository) WithTx(tx pgx.Tx) *BagRepository {
	return &BagRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create inserts a bag. A collision on the bag_number constraint becomes
// shared.DuplicateBagNumberError; any other violation is a storage error.
func (r *BagRepository) Create(ctx context.Context, b *bag.BloodBag) error {
	_, err := r.querier.Exec(ctx, insertBagQuery,
		b.ID,
		b.BagNumber,
		string(b.BloodGroup),
		b.DonorID,
		b.UnitsAvailable,
		string(b.Status),
		b.DonationRequestID,
		b.CreatedAt,
	)
	if err != nil {
		if constraint, ok := persistence.UniqueViolation(err); ok && constraint == bagNumberConstraint {
			return shared.DuplicateBagNumberError{BagNumber: b.BagNumber}
		}
		r.logger.Error("Failed to create blood bag", "bag_number", b.BagNumber, "error", err)
		return fmt.Errorf("failed to create blood bag: %w", err)
	}

	return nil
}

// GetByID retrieves a bag by its ID
func (r *BagRepository) GetByID(ctx context.Context, id uuid.UUID) (*bag.BloodBag, error) {
	b, err := scanBag(r.querier.QueryRow(ctx, selectBagByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Entity: "blood bag", ID: id.String()}
		}
		r.logger.Error("Failed to get blood bag", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get blood bag: %w", err)
	}
	return b, nil
}

// GetByNumber retrieves a bag by its bag number
func (r *BagRepository) GetByNumber(ctx context.Context, bagNumber string) (*bag.BloodBag, error) {
	b, err := scanBag(r.querier.QueryRow(ctx, selectBagByNumberQuery, bagNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Entity: "blood bag", ID: bagNumber}
		}
		r.logger.Error("Failed to get blood bag by number", "bag_number", bagNumber, "error", err)
		return nil, fmt.Errorf("failed to get blood bag by number: %w", err)
	}
	return b, nil
}

// ListAvailable returns available bags, oldest first. An empty group lists every group.
func (r *BagRepository) ListAvailable(ctx context.Context, group shared.BloodGroup) ([]*bag.BloodBag, error) {
	query := selectAvailableBags
	var args []interface{}
	if group != "" {
		query += " AND blood_group = $1"
		args = append(args, string(group))
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list available blood bags", "blood_group", string(group), "error", err)
		return nil, fmt.Errorf("failed to list available blood bags: %w", err)
	}
	defer rows.Close()

	bags := []*bag.BloodBag{}
	for rows.Next() {
		b, err := scanBag(rows)
		if err != nil {
			r.logger.Error("Failed to scan blood bag", "error", err)
			return nil, fmt.Errorf("failed to scan blood bag: %w", err)
		}
		bags = append(bags, b)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over blood bags", "error", err)
		return nil, fmt.Errorf("error iterating over blood bags: %w", err)
	}

	return bags, nil
}

// MarkUsed performs the available -> used compare-and-set. When no row matches,
// the bag is re-read to tell an unknown bag from one that is already used.
func (r *BagRepository) MarkUsed(ctx context.Context, id uuid.UUID, requestID uuid.UUID) (*bag.BloodBag, error) {
	b, err := scanBag(r.querier.QueryRow(ctx, markBagUsedQuery, id, requestID, time.Now()))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		r.logger.Error("Failed to mark blood bag used", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to mark blood bag used: %w", err)
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, shared.AlreadyUsedError{BagID: id.String()}
}

func scanBag(row pgx.Row) (*bag.BloodBag, error) {
	var (
		b                  bag.BloodBag
		bloodGroup, status string
	)
	err := row.Scan(
		&b.ID,
		&b.BagNumber,
		&bloodGroup,
		&b.DonorID,
		&b.UnitsAvailable,
		&status,
		&b.DonationRequestID,
		&b.UsedByRequestID,
		&b.CreatedAt,
		&b.UsedAt,
	)
	if err != nil {
		return nil, err
	}
	b.BloodGroup = shared.BloodGroup(bloodGroup)
	b.Status = bag.Status(status)
	return &b, nil
}
