package handler

import (
	"net/http"
	"testing"

	"github.com/bloodbank-ledger/internal/domain/bag"
	"github.com/bloodbank-ledger/internal/domain/bloodrequest"
	"github.com/bloodbank-ledger/internal/domain/profile"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (a *testAPI) submitRequest(t *testing.T, caller shared.Actor, group string, units int) *bloodrequest.BloodRequest {
	t.Helper()
	rr := a.do(t, &caller, http.MethodPost, "/requests", SubmitBloodRequest{
		BloodGroup:  group,
		UnitsNeeded: units,
		Urgency:     "urgent",
		PatientName: "K. Rahman",
		Hospital:    "City General",
	})
	requireStatus(t, rr, http.StatusCreated)

	var req bloodrequest.BloodRequest
	decode(t, rr, &req)
	return &req
}

func (a *testAPI) createBag(t *testing.T, group string, units int, number string) *bag.BloodBag {
	t.Helper()
	rr := a.do(t, &executive, http.MethodPost, "/bags", CreateBagRequest{BloodGroup: group, Units: units, BagNumber: number, DonorID: "donor-9"})
	requireStatus(t, rr, http.StatusCreated)

	var b bag.BloodBag
	decode(t, rr, &b)
	return &b
}

func TestRequestHandler_Submit(t *testing.T) {
	api := newTestAPI(t, nil)

	t.Run("Pending", func(t *testing.T) {
		req := api.submitRequest(t, requester, "AB-", 2)
		assert.Equal(t, bloodrequest.StatusPending, req.Status)
		assert.Equal(t, bloodrequest.ReviewAwaiting, req.Review)
		assert.Equal(t, bloodrequest.UrgencyUrgent, req.Urgency)
		assert.Equal(t, requester.ID, req.RequesterID)
	})

	t.Run("InvalidUrgency", func(t *testing.T) {
		rr := api.do(t, &requester, http.MethodPost, "/requests", SubmitBloodRequest{BloodGroup: "A+", UnitsNeeded: 1, Urgency: "whenever"})
		requireStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("ZeroUnits", func(t *testing.T) {
		rr := api.do(t, &requester, http.MethodPost, "/requests", SubmitBloodRequest{BloodGroup: "A+"})
		requireStatus(t, rr, http.StatusBadRequest)
		assert.Equal(t, "INVALID_UNITS", decode(t, rr, nil).Error.Code)
	})

	t.Run("DonorForbidden", func(t *testing.T) {
		rr := api.do(t, &donor, http.MethodPost, "/requests", SubmitBloodRequest{BloodGroup: "A+", UnitsNeeded: 1})
		requireStatus(t, rr, http.StatusForbidden)
	})
}

func TestRequestHandler_GetAndList(t *testing.T) {
	api := newTestAPI(t, nil)
	first := api.submitRequest(t, requester, "O+", 1)
	api.submitRequest(t, requester, "A+", 1)
	api.submitRequest(t, requester2, "O+", 3)

	t.Run("Get", func(t *testing.T) {
		rr := api.do(t, &executive, http.MethodGet, "/requests/"+first.ID.String(), nil)
		requireStatus(t, rr, http.StatusOK)
		var got bloodrequest.BloodRequest
		decode(t, rr, &got)
		assert.Equal(t, first.ID, got.ID)
	})

	t.Run("GetUnknown", func(t *testing.T) {
		rr := api.do(t, &executive, http.MethodGet, "/requests/"+uuid.NewString(), nil)
		requireStatus(t, rr, http.StatusNotFound)
		assert.Equal(t, "NOT_FOUND", decode(t, rr, nil).Error.Code)
	})

	t.Run("GetMalformedID", func(t *testing.T) {
		rr := api.do(t, &executive, http.MethodGet, "/requests/123", nil)
		requireStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("ListByGroup", func(t *testing.T) {
		rr := api.do(t, &executive, http.MethodGet, "/requests?blood_group=O%2B&status=pending", nil)
		requireStatus(t, rr, http.StatusOK)
		var reqs []*bloodrequest.BloodRequest
		env := decode(t, rr, &reqs)
		assert.Len(t, reqs, 2)
		assert.Equal(t, int64(2), env.Pagination.TotalItems)
	})

	t.Run("ListInvalidStatus", func(t *testing.T) {
		rr := api.do(t, &executive, http.MethodGet, "/requests?status=lost", nil)
		requireStatus(t, rr, http.StatusBadRequest)
	})
}

func TestRequestHandler_AssignFromBank(t *testing.T) {
	api := newTestAPI(t, nil)
	api.seedStock(t, "O+", 5)
	req := api.submitRequest(t, requester, "O+", 2)
	b := api.createBag(t, "O+", 2, "BAG-OP-1")

	rr := api.do(t, &executive, http.MethodPut, "/requests/"+req.ID.String()+"/donate-from-bank", AssignFromBankRequest{
		BagID:        b.ID.String(),
		UsageDetails: "ward 4 transfusion",
	})
	requireStatus(t, rr, http.StatusOK)

	var updated bloodrequest.BloodRequest
	decode(t, rr, &updated)
	assert.Equal(t, bloodrequest.StatusActive, updated.Status)
	assert.Equal(t, bloodrequest.SourceBank, updated.Source)
	assert.Equal(t, 2, updated.UnitsFromBank)

	var level StockLevel
	decode(t, api.do(t, &executive, http.MethodGet, "/stock/O%2B", nil), &level)
	assert.Equal(t, 5, level.Units)

	var usedBag bag.BloodBag
	decode(t, api.do(t, &executive, http.MethodGet, "/bags/"+b.ID.String(), nil), &usedBag)
	assert.Equal(t, bag.StatusUsed, usedBag.Status)

	t.Run("SecondAssignmentConflicts", func(t *testing.T) {
		rr := api.do(t, &executive, http.MethodPut, "/requests/"+req.ID.String()+"/donate-from-bank", AssignFromBankRequest{BagID: b.ID.String()})
		requireStatus(t, rr, http.StatusConflict)
		assert.Equal(t, "INVALID_TRANSITION", decode(t, rr, nil).Error.Code)
	})

	t.Run("UsedBagConflicts", func(t *testing.T) {
		other := api.submitRequest(t, requester, "O+", 1)
		rr := api.do(t, &executive, http.MethodPut, "/requests/"+other.ID.String()+"/donate-from-bank", AssignFromBankRequest{BagID: b.ID.String(), Units: 1})
		requireStatus(t, rr, http.StatusConflict)
		assert.Equal(t, "ALREADY_USED", decode(t, rr, nil).Error.Code)

		decode(t, api.do(t, &executive, http.MethodGet, "/stock/O%2B", nil), &level)
		assert.Equal(t, 5, level.Units)
	})

	t.Run("PartialBagRejected", func(t *testing.T) {
		other := api.submitRequest(t, requester, "O+", 1)
		pair := api.createBag(t, "O+", 2, "BAG-OP-2")
		rr := api.do(t, &executive, http.MethodPut, "/requests/"+other.ID.String()+"/donate-from-bank", AssignFromBankRequest{BagID: pair.ID.String(), Units: 1})
		requireStatus(t, rr, http.StatusBadRequest)
		assert.Equal(t, "INVALID_UNITS", decode(t, rr, nil).Error.Code)

		decode(t, api.do(t, &executive, http.MethodGet, "/stock/O%2B", nil), &level)
		assert.Equal(t, 7, level.Units)
		var stillAvailable bag.BloodBag
		decode(t, api.do(t, &executive, http.MethodGet, "/bags/"+pair.ID.String(), nil), &stillAvailable)
		assert.Equal(t, bag.StatusAvailable, stillAvailable.Status)
	})

	t.Run("GroupMismatch", func(t *testing.T) {
		other := api.submitRequest(t, requester, "O+", 1)
		aBag := api.createBag(t, "A+", 1, "BAG-AP-1")
		rr := api.do(t, &executive, http.MethodPut, "/requests/"+other.ID.String()+"/donate-from-bank", AssignFromBankRequest{BagID: aBag.ID.String()})
		requireStatus(t, rr, http.StatusBadRequest)
		assert.Equal(t, "BLOOD_GROUP_MISMATCH", decode(t, rr, nil).Error.Code)
	})

	t.Run("RequesterForbidden", func(t *testing.T) {
		other := api.submitRequest(t, requester, "O+", 1)
		rr := api.do(t, &requester, http.MethodPut, "/requests/"+other.ID.String()+"/donate-from-bank", AssignFromBankRequest{BagID: b.ID.String()})
		requireStatus(t, rr, http.StatusForbidden)
	})

	t.Run("MissingBagID", func(t *testing.T) {
		rr := api.do(t, &executive, http.MethodPut, "/requests/"+req.ID.String()+"/donate-from-bank", AssignFromBankRequest{})
		requireStatus(t, rr, http.StatusBadRequest)
		assert.Equal(t, "BAD_REQUEST", decode(t, rr, nil).Error.Code)
	})
}

func TestRequestHandler_AssignDonor(t *testing.T) {
	api := newTestAPI(t, nil)
	api.store.PutDonor(profile.DonorProfile{DonorID: donor.ID, Name: "Asha", BloodGroup: shared.BloodGroupBPos})

	t.Run("DonorAssignsThemselves", func(t *testing.T) {
		req := api.submitRequest(t, requester, "B+", 1)
		rr := api.do(t, &donor, http.MethodPut, "/requests/"+req.ID.String()+"/donate", AssignDonorRequest{DonorName: "Asha", DonorPhone: "+8801700000000"})
		requireStatus(t, rr, http.StatusOK)

		var updated bloodrequest.BloodRequest
		decode(t, rr, &updated)
		assert.Equal(t, bloodrequest.StatusActive, updated.Status)
		require.NotNil(t, updated.Donor)
		assert.Equal(t, donor.ID, updated.Donor.DonorID)
	})

	t.Run("GroupMismatch", func(t *testing.T) {
		req := api.submitRequest(t, requester, "O-", 1)
		rr := api.do(t, &donor, http.MethodPut, "/requests/"+req.ID.String()+"/donate", AssignDonorRequest{DonorName: "Asha", DonorPhone: "1"})
		requireStatus(t, rr, http.StatusBadRequest)
		assert.Equal(t, "BLOOD_GROUP_MISMATCH", decode(t, rr, nil).Error.Code)
	})

	t.Run("DonorCannotAssignSomeoneElse", func(t *testing.T) {
		req := api.submitRequest(t, requester, "B+", 1)
		rr := api.do(t, &donor, http.MethodPut, "/requests/"+req.ID.String()+"/donate", AssignDonorRequest{DonorID: "donor-2", DonorName: "X", DonorPhone: "1"})
		requireStatus(t, rr, http.StatusForbidden)
	})

	t.Run("MissingContact", func(t *testing.T) {
		req := api.submitRequest(t, requester, "B+", 1)
		rr := api.do(t, &executive, http.MethodPut, "/requests/"+req.ID.String()+"/donate", AssignDonorRequest{DonorName: "Asha"})
		requireStatus(t, rr, http.StatusBadRequest)
	})
}

func TestRequestHandler_StatusReviewAndCancel(t *testing.T) {
	api := newTestAPI(t, nil)

	t.Run("AdminMovesThroughLifecycle", func(t *testing.T) {
		req := api.submitRequest(t, requester, "A-", 1)
		path := "/requests/" + req.ID.String() + "/status"

		requireStatus(t, api.do(t, &executive, http.MethodPut, path, UpdateStatusRequest{Status: "active"}), http.StatusForbidden)
		requireStatus(t, api.do(t, &admin, http.MethodPut, path, UpdateStatusRequest{Status: "active"}), http.StatusOK)

		rr := api.do(t, &admin, http.MethodPut, path, UpdateStatusRequest{Status: "active"})
		requireStatus(t, rr, http.StatusConflict)
		assert.Equal(t, "INVALID_TRANSITION", decode(t, rr, nil).Error.Code)

		rr = api.do(t, &admin, http.MethodPut, path, UpdateStatusRequest{Status: "fulfilled"})
		requireStatus(t, rr, http.StatusOK)
		var updated bloodrequest.BloodRequest
		decode(t, rr, &updated)
		assert.Equal(t, bloodrequest.StatusFulfilled, updated.Status)

		requireStatus(t, api.do(t, &admin, http.MethodPut, path, UpdateStatusRequest{Status: "unknown"}), http.StatusBadRequest)
	})

	t.Run("ApproveThenReject", func(t *testing.T) {
		req := api.submitRequest(t, requester, "A-", 1)
		base := "/requests/" + req.ID.String()

		rr := api.do(t, &executive, http.MethodPut, base+"/approve", nil)
		requireStatus(t, rr, http.StatusOK)
		var reviewed bloodrequest.BloodRequest
		decode(t, rr, &reviewed)
		assert.Equal(t, bloodrequest.ReviewApproved, reviewed.Review)

		requireStatus(t, api.do(t, &executive, http.MethodPut, base+"/approve", nil), http.StatusConflict)

		rr = api.do(t, &executive, http.MethodPut, base+"/reject", RejectRequest{Reason: "duplicate"})
		requireStatus(t, rr, http.StatusOK)
		decode(t, rr, &reviewed)
		assert.Equal(t, bloodrequest.ReviewRejected, reviewed.Review)
		assert.Equal(t, bloodrequest.StatusCancelled, reviewed.Status)
		assert.Equal(t, "duplicate", reviewed.RejectionReason)
	})

	t.Run("RejectWithoutBody", func(t *testing.T) {
		req := api.submitRequest(t, requester, "A-", 1)
		requireStatus(t, api.do(t, &admin, http.MethodPut, "/requests/"+req.ID.String()+"/reject", nil), http.StatusOK)
	})

	t.Run("OwnerCancels", func(t *testing.T) {
		req := api.submitRequest(t, requester, "A-", 1)
		path := "/requests/" + req.ID.String()

		rr := api.do(t, &requester2, http.MethodDelete, path, nil)
		requireStatus(t, rr, http.StatusForbidden)

		rr = api.do(t, &requester, http.MethodDelete, path, nil)
		requireStatus(t, rr, http.StatusOK)
		var cancelled bloodrequest.BloodRequest
		decode(t, rr, &cancelled)
		assert.Equal(t, bloodrequest.StatusCancelled, cancelled.Status)

		// soft cancel keeps the record
		requireStatus(t, api.do(t, &requester, http.MethodGet, path, nil), http.StatusOK)
		requireStatus(t, api.do(t, &requester, http.MethodDelete, path, nil), http.StatusConflict)
	})
}

func TestBagHandler(t *testing.T) {
	api := newTestAPI(t, nil)
	b := api.createBag(t, "AB+", 1, "BAG-ABP-1")
	api.createBag(t, "O+", 1, "")

	t.Run("DuplicateNumber", func(t *testing.T) {
		rr := api.do(t, &executive, http.MethodPost, "/bags", CreateBagRequest{BloodGroup: "AB+", Units: 1, BagNumber: "BAG-ABP-1"})
		requireStatus(t, rr, http.StatusConflict)
		assert.Equal(t, "DUPLICATE_BAG_NUMBER", decode(t, rr, nil).Error.Code)
	})

	t.Run("ListAvailable", func(t *testing.T) {
		var bags []*bag.BloodBag
		decode(t, api.do(t, &requester, http.MethodGet, "/bags?blood_group=AB%2B", nil), &bags)
		require.Len(t, bags, 1)
		assert.Equal(t, b.ID, bags[0].ID)

		decode(t, api.do(t, &requester, http.MethodGet, "/bags", nil), &bags)
		assert.Len(t, bags, 2)
	})

	t.Run("CreateCreditsStock", func(t *testing.T) {
		var level StockLevel
		decode(t, api.do(t, &executive, http.MethodGet, "/stock/AB%2B", nil), &level)
		assert.Equal(t, 1, level.Units)
	})

	t.Run("NoDirectUse", func(t *testing.T) {
		rr := api.do(t, &executive, http.MethodPut, "/bags/"+b.ID.String()+"/use", map[string]string{"request_id": uuid.NewString()})
		requireStatus(t, rr, http.StatusNotFound)

		var still bag.BloodBag
		decode(t, api.do(t, &executive, http.MethodGet, "/bags/"+b.ID.String(), nil), &still)
		assert.Equal(t, bag.StatusAvailable, still.Status)
	})

	t.Run("UnknownBag", func(t *testing.T) {
		requireStatus(t, api.do(t, &requester, http.MethodGet, "/bags/"+uuid.NewString(), nil), http.StatusNotFound)
	})
}
