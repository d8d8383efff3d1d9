package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/bloodbank-ledger/internal/domain/bloodrequest"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var requestRowColumns = []string{"id", "blood_group", "units_needed", "status", "review_status", "urgency",
	"requester_id", "patient_name", "hospital", "contact_phone", "reason", "required_by", "fulfillment_source",
	"donor_id", "donor_name", "donor_phone", "assigned_bag_id", "units_from_bank", "usage_details",
	"rejection_reason", "version", "created_at", "updated_at"}

func requestRow(r *bloodrequest.BloodRequest) []interface{} {
	donorID, donorName, donorPhone := donorColumns(r.Donor)
	return []interface{}{r.ID, string(r.BloodGroup), r.UnitsNeeded, string(r.Status), string(r.Review),
		string(r.Urgency), r.RequesterID, r.PatientName, r.Hospital, r.ContactPhone, r.Reason, r.RequiredBy,
		string(r.Source), donorID, donorName, donorPhone, r.AssignedBagID, r.UnitsFromBank, r.UsageDetails,
		r.RejectionReason, r.Version, r.CreatedAt, r.UpdatedAt}
}

func newTestRequest(t *testing.T) *bloodrequest.BloodRequest {
	t.Helper()
	req, err := bloodrequest.NewBloodRequest("requester-1", bloodrequest.Details{
		BloodGroup:  shared.BloodGroupAPos,
		UnitsNeeded: 2,
		Urgency:     bloodrequest.UrgencyUrgent,
		PatientName: "J. Doe",
		Hospital:    "City General",
	})
	require.NoError(t, err)
	return req
}

func TestBloodRequestRepository_Create(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := &BloodRequestRepository{querier: mock, logger: newTestLogger()}
	req := newTestRequest(t)

	mock.ExpectExec(regexp.QuoteMeta(insertRequestQuery)).
		WithArgs(requestRow(req)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(ctx, req))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBloodRequestRepository_LockForUpdate(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := &BloodRequestRepository{querier: mock, logger: newTestLogger()}

	t.Run("round trips donor contact", func(t *testing.T) {
		req := newTestRequest(t)
		require.NoError(t, req.AssignDonor(bloodrequest.DonorContact{DonorID: "donor-3", Name: "Bo", Phone: "555"}))

		mock.ExpectQuery(regexp.QuoteMeta(lockRequestQuery)).
			WithArgs(req.ID).
			WillReturnRows(pgxmock.NewRows(requestRowColumns).AddRow(requestRow(req)...))

		got, err := repo.LockForUpdate(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, req, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.New()
		mock.ExpectQuery(regexp.QuoteMeta(lockRequestQuery)).WithArgs(id).WillReturnError(pgx.ErrNoRows)

		_, err := repo.LockForUpdate(ctx, id)
		var notFound shared.NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "blood request", notFound.Entity)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBloodRequestRepository_Update(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := &BloodRequestRepository{querier: mock, logger: newTestLogger()}
	req := newTestRequest(t)
	bagID := uuid.New()
	require.NoError(t, req.AssignBag(bagID, 1, "surgery", false))

	args := []interface{}{"active", "awaiting", "bank", (*string)(nil), (*string)(nil), (*string)(nil),
		&bagID, 1, "surgery", "", 2, req.UpdatedAt, req.ID, 1}

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(updateRequestQuery)).
			WithArgs(args...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		assert.NoError(t, repo.Update(ctx, req))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version", func(t *testing.T) {
		mock.ExpectExec(regexp.QuoteMeta(updateRequestQuery)).
			WithArgs(args...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		assert.ErrorIs(t, repo.Update(ctx, req), shared.ErrConcurrentModification)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBloodRequestRepository_ListAndCount(t *testing.T) {
	ctx := context.Background()
	mock := newMockPool(t)
	repo := &BloodRequestRepository{querier: mock, logger: newTestLogger()}
	req := newTestRequest(t)
	filter := bloodrequest.Filter{Status: bloodrequest.StatusPending, RequesterID: "requester-1"}

	mock.ExpectQuery(regexp.QuoteMeta(selectRequestsQuery + " WHERE status = $1 AND requester_id = $2 ORDER BY created_at DESC")).
		WithArgs("pending", "requester-1").
		WillReturnRows(pgxmock.NewRows(requestRowColumns).AddRow(requestRow(req)...))
	mock.ExpectQuery(regexp.QuoteMeta(countRequestsQuery + " WHERE status = $1 AND requester_id = $2")).
		WithArgs("pending", "requester-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

	requests, err := repo.List(ctx, filter)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.Nil(t, requests[0].Donor)
	assert.Equal(t, bloodrequest.UrgencyUrgent, requests[0].Urgency)

	count, err := repo.Count(ctx, filter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
