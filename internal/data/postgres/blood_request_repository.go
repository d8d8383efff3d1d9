package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bloodbank-ledger/internal/domain/bloodrequest"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const requestColumns = `id, blood_group, units_needed, status, review_status, urgency, requester_id, patient_name,
			hospital, contact_phone, reason, required_by, fulfillment_source, donor_id, donor_name, donor_phone,
			assigned_bag_id, units_from_bank, usage_details, rejection_reason, version, created_at, updated_at`

const (
	insertRequestQuery = `
		INSERT INTO blood_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`
	selectRequestByIDQuery = `SELECT ` + requestColumns + ` FROM blood_requests WHERE id = $1`
	lockRequestQuery       = `SELECT ` + requestColumns + ` FROM blood_requests WHERE id = $1 FOR UPDATE`
	selectRequestsQuery    = `SELECT ` + requestColumns + ` FROM blood_requests`
	countRequestsQuery     = `SELECT COUNT(*) FROM blood_requests`
	updateRequestQuery     = `
		UPDATE blood_requests
		SET status = $1, review_status = $2, fulfillment_source = $3, donor_id = $4, donor_name = $5,
			donor_phone = $6, assigned_bag_id = $7, units_from_bank = $8, usage_details = $9,
			rejection_reason = $10, version = $11, updated_at = $12
		WHERE id = $13 AND version = $14
	`
)

// BloodRequestRepository implements the bloodrequest.Repository interface for PostgreSQL
type BloodRequestRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewBloodRequestRepository creates a new PostgreSQL blood request repository
func NewBloodRequestRepository(logger *slog.Logger, db *persistence.PostgresDB) *BloodRequestRepository {
	return &BloodRequestRepository{
		querier: db.Querier(),
		logger:  logger,
	}
}

// WithTx returns a copy of the repository bound to tx
func (r *BloodRequestRepository) WithTx(tx pgx.Tx) *BloodRequestRepository {
	return &BloodRequestRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new blood request
func (r *BloodRequestRepository) Create(ctx context.Context, req *bloodrequest.BloodRequest) error {
	donorID, donorName, donorPhone := donorColumns(req.Donor)
	_, err := r.querier.Exec(ctx, insertRequestQuery,
		req.ID,
		string(req.BloodGroup),
		req.UnitsNeeded,
		string(req.Status),
		string(req.Review),
		string(req.Urgency),
		req.RequesterID,
		req.PatientName,
		req.Hospital,
		req.ContactPhone,
		req.Reason,
		req.RequiredBy,
		string(req.Source),
		donorID,
		donorName,
		donorPhone,
		req.AssignedBagID,
		req.UnitsFromBank,
		req.UsageDetails,
		req.RejectionReason,
		req.Version,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create blood request", "id", req.ID.String(), "error", err)
		return fmt.Errorf("failed to create blood request: %w", err)
	}

	return nil
}

// GetByID retrieves a blood request by its ID
func (r *BloodRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*bloodrequest.BloodRequest, error) {
	return r.getOne(ctx, selectRequestByIDQuery, id, "get blood request")
}

// LockForUpdate obtains a row lock on the request; use inside a transaction
func (r *BloodRequestRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*bloodrequest.BloodRequest, error) {
	return r.getOne(ctx, lockRequestQuery, id, "lock blood request for update")
}

func (r *BloodRequestRepository) getOne(ctx context.Context, query string, id uuid.UUID, op string) (*bloodrequest.BloodRequest, error) {
	req, err := scanRequest(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFoundError{Entity: "blood request", ID: id.String()}
		}
		r.logger.Error("Failed to "+op, "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	return req, nil
}

// Update persists status and assignment fields using optimistic locking
func (r *BloodRequestRepository) Update(ctx context.Context, req *bloodrequest.BloodRequest) error {
	donorID, donorName, donorPhone := donorColumns(req.Donor)
	result, err := r.querier.Exec(ctx, updateRequestQuery,
		string(req.Status),
		string(req.Review),
		string(req.Source),
		donorID,
		donorName,
		donorPhone,
		req.AssignedBagID,
		req.UnitsFromBank,
		req.UsageDetails,
		req.RejectionReason,
		req.Version,
		req.UpdatedAt,
		req.ID,
		req.Version-1, // Check previous version for optimistic locking
	)
	if err != nil {
		r.logger.Error("Failed to update blood request", "id", req.ID.String(), "error", err)
		return fmt.Errorf("failed to update blood request: %w", err)
	}

	if result.RowsAffected() == 0 {
		return shared.ConcurrentModificationError{Entity: "blood request", ID: req.ID.String()}
	}

	return nil
}

// List returns matching requests, newest first
func (r *BloodRequestRepository) List(ctx context.Context, filter bloodrequest.Filter) ([]*bloodrequest.BloodRequest, error) {
	w := requestWhere(filter)
	query := selectRequestsQuery + w.String() + " ORDER BY created_at DESC" + w.page(filter.Limit, filter.Offset)

	rows, err := r.querier.Query(ctx, query, w.args...)
	if err != nil {
		r.logger.Error("Failed to list blood requests", "error", err)
		return nil, fmt.Errorf("failed to list blood requests: %w", err)
	}
	defer rows.Close()

	requests := []*bloodrequest.BloodRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			r.logger.Error("Failed to scan blood request", "error", err)
			return nil, fmt.Errorf("failed to scan blood request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over blood requests", "error", err)
		return nil, fmt.Errorf("error iterating over blood requests: %w", err)
	}

	return requests, nil
}

// Count returns the number of requests matching the filter, ignoring pagination
func (r *BloodRequestRepository) Count(ctx context.Context, filter bloodrequest.Filter) (int64, error) {
	w := requestWhere(filter)

	var count int64
	if err := r.querier.QueryRow(ctx, countRequestsQuery+w.String(), w.args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count blood requests", "error", err)
		return 0, fmt.Errorf("failed to count blood requests: %w", err)
	}
	return count, nil
}

func requestWhere(filter bloodrequest.Filter) *where {
	w := &where{}
	if filter.Status != "" {
		w.add("status = $%d", string(filter.Status))
	}
	if filter.BloodGroup != "" {
		w.add("blood_group = $%d", string(filter.BloodGroup))
	}
	if filter.RequesterID != "" {
		w.add("requester_id = $%d", filter.RequesterID)
	}
	return w
}

func donorColumns(d *bloodrequest.DonorContact) (*string, *string, *string) {
	if d == nil {
		return nil, nil, nil
	}
	return &d.DonorID, &d.Name, &d.Phone
}

func scanRequest(row pgx.Row) (*bloodrequest.BloodRequest, error) {
	var (
		req                                      bloodrequest.BloodRequest
		bloodGroup, status, review, urgency, src string
		donorID, donorName, donorPhone           *string
	)
	err := row.Scan(
		&req.ID,
		&bloodGroup,
		&req.UnitsNeeded,
		&status,
		&review,
		&urgency,
		&req.RequesterID,
		&req.PatientName,
		&req.Hospital,
		&req.ContactPhone,
		&req.Reason,
		&req.RequiredBy,
		&src,
		&donorID,
		&donorName,
		&donorPhone,
		&req.AssignedBagID,
		&req.UnitsFromBank,
		&req.UsageDetails,
		&req.RejectionReason,
		&req.Version,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.BloodGroup = shared.BloodGroup(bloodGroup)
	req.Status = bloodrequest.Status(status)
	req.Review = bloodrequest.ReviewStatus(review)
	req.Urgency = bloodrequest.Urgency(urgency)
	req.Source = bloodrequest.FulfillmentSource(src)
	if donorID != nil {
		req.Donor = &bloodrequest.DonorContact{DonorID: *donorID}
		if donorName != nil {
			req.Donor.Name = *donorName
		}
		if donorPhone != nil {
			req.Donor.Phone = *donorPhone
		}
	}
	return &req, nil
}
