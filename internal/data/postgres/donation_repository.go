package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bloodbank-ledger/internal/domain/donation"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const donationColumns = `id, donor_id, donor_name, blood_group, units, status, blood_bag_number, bag_id,
			rejection_reason, reviewed_by, reviewed_at, version, created_at, updated_at`

const (
	insertDonationQuery = `
		INSERT INTO donation_requests (` + donationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	selectDonationByIDQuery = `SELECT ` + donationColumns + ` FROM donation_requests WHERE id = $1`
	lockDonationQuery       = `SELECT ` + donationColumns + ` FROM donation_requests WHERE id = $1 FOR UPDATE`
	selectDonationsQuery    = `SELECT ` + donationColumns + ` FROM donation_requests`
	countDonationsQuery     = `SELECT COUNT(*) FROM donation_requests`
	updateDonationQuery     = `
		UPDATE donation_requests
		SET status = $1, blood_bag_number = $2, bag_id = $3, rejection_reason = $4, reviewed_by = $5,
			reviewed_at = $6, version = $7, updated_at = $8
		WHERE id = $9 AND version = $10
	`
)

// DonationRepository implements the donation.Repository interface for PostgreSQL
type DonationRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewDonationRepository creates a new PostgreSQL donation request repository
func NewDonationRepository(logger *slog.Logger, db *persistence.PostgresDB) *DonationRepository {
	return &DonationRepository{
		querier: db.Querier(),
		logger:  logger,
	}
}

// WithTx returns a copy of the repository bound to tx
func (r *DonationRepository) WithTx(tx pgx.Tx) *DonationRepository {
	return &DonationRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new donation request
func (r *DonationRepository) Create(ctx context.Context, req *donation.Request) error {
	_, err := r.querier.Exec(ctx, insertDonationQuery,
		req.ID,
		req.DonorID,
		req.DonorName,
		string(req.BloodGroup),
		req.Units,
		string(req.Status),
		req.BloodBagNumber,
		req.BagID,
		req.RejectionReason,
		req.ReviewedBy,
		req.ReviewedAt,
		req.Version,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create donation request", "id", req.ID.String(), "error", err)
		return fmt.Errorf("failed to create donation request: %w", err)
	}

	return nil
}

// GetByID retrieves a donation request by its ID
func (r *DonationRepository) GetByID(ctx context.Context, id uuid.UUID) (*donation.Request, error) {
	return r.getOne(ctx, selectDonationByIDQuery, id, "get donation request")
}

// LockForUpdate obtains a row lock on the donation request; use inside a transaction
func (r *DonationRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*donation.Request, error) {
	return r.getOne(ctx, lockDonationQuery, id, "lock donation request for update")
}

func (r *DonationRepository) getOne(ctx context.Context, query string, id uuid.UUID, op string) (*donation.Request, error) {
	req, err := scanDonation(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Entity: "donation request", ID: id.String()}
		}
		r.logger.Error("Failed to "+op, "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return req, nil
}

// Update persists the review outcome using optimistic locking
func (r *DonationRepository) Update(ctx context.Context, req *donation.Request) error {
	result, err := r.querier.Exec(ctx, updateDonationQuery,
		string(req.Status),
		req.BloodBagNumber,
		req.BagID,
		req.RejectionReason,
		req.ReviewedBy,
		req.ReviewedAt,
		req.Version,
		req.UpdatedAt,
		req.ID,
		req.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update donation request", "id", req.ID.String(), "error", err)
		return fmt.Errorf("failed to update donation request: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ConcurrentModificationError{Entity: "donation request", ID: req.ID.String()}
	}

	return nil
}

// List returns matching donation requests, newest first
func (r *DonationRepository) List(ctx context.Context, filter donation.Filter) ([]*donation.Request, error) {
	w := donationWhere(filter)
	query := selectDonationsQuery + w.String() + " ORDER BY created_at DESC" + w.page(filter.Limit, filter.Offset)

	rows, err := r.querier.Query(ctx, query, w.args...)
	if err != nil {
		r.logger.Error("Failed to list donation requests", "error", err)
		return nil, fmt.Errorf("failed to list donation requests: %w", err)
	}
	defer rows.Close()

	requests := []*donation.Request{}
	for rows.Next() {
		req, err := scanDonation(rows)
		if err != nil {
			r.logger.Error("Failed to scan donation request", "error", err)
			return nil, fmt.Errorf("failed to scan donation request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over donation requests", "error", err)
		return nil, fmt.Errorf("error iterating over donation requests: %w", err)
	}

	return requests, nil
}

// Count returns the number of donation requests matching the filter
func (r *DonationRepository) Count(ctx context.Context, filter donation.Filter) (int64, error) {
	w := donationWhere(filter)

	var count int64
	if err := r.querier.QueryRow(ctx, countDonationsQuery+w.String(), w.args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count donation requests", "error", err)
		return 0, fmt.Errorf("failed to count donation requests: %w", err)
	}
	return count, nil
}

func donationWhere(filter donation.Filter) *where {
	w := &where{}
	if filter.Status != "" {
		w.add("status = $%d", string(filter.Status))
	}
	if filter.DonorID != "" {
		w.add("donor_id = $%d", filter.DonorID)
	}
	return w
}

func scanDonation(row pgx.Row) (*donation.Request, error) {
	var (
		req                donation.Request
		bloodGroup, status string
	)
	err := row.Scan(
		&req.ID,
		&req.DonorID,
		&req.DonorName,
		&bloodGroup,
		&req.Units,
		&status,
		&req.BloodBagNumber,
		&req.BagID,
		&req.RejectionReason,
		&req.ReviewedBy,
		&req.ReviewedAt,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.BloodGroup = shared.BloodGroup(bloodGroup)
	req.Status = donation.Status(status)
	return &req, nil
}
