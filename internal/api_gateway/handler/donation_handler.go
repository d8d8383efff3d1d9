package handler

import (
	"log/slog"

	"github.com/bloodbank-ledger/internal/api_gateway/service"
	"github.com/bloodbank-ledger/internal/domain/donation"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/gin-gonic/gin"
)

// DonationHandler handles donor submissions, their review, and eligibility lookups
type DonationHandler struct {
	approvals service.ApprovalWorkflow
	logger    *slog.Logger
	errorResponder
}

func NewDonationHandler(logger *slog.Logger, m *metrics.Metrics, approvals service.ApprovalWorkflow) *DonationHandler {
	return &DonationHandler{
		approvals:      approvals,
		logger:         logger,
		errorResponder: errorResponder{logger: logger, metrics: m},
	}
}

// Submit files a donation for the calling donor. Ineligible donors get 400 with every failed rule.
func (h *DonationHandler) Submit(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}

	var req SubmitDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	group, err := optionalGroup(req.BloodGroup)
	if err != nil {
		h.fail(c, "submit_donation", err)
		return
	}

	created, err := h.approvals.SubmitDonation(c.Request.Context(), caller, group, req.Units)
	if err != nil {
		h.fail(c, "submit_donation", err)
		return
	}
	RespondCreated(c, "Donation request submitted", created)
}

func (h *DonationHandler) List(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}

	var query DonationQuery
	var page PaginationParams
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query: "+err.Error())
		return
	}
	if err := c.ShouldBindQuery(&page); err != nil {
		RespondBadRequest(c, "Invalid pagination: "+err.Error())
		return
	}

	filter := donation.Filter{
		Status: donation.Status(query.Status),
		Limit:  page.PageSize,
		Offset: page.Offset(),
	}
	// donors only see their own submissions
	if caller.Role == shared.RoleDonor {
		filter.DonorID = caller.ID
	}

	donations, total, err := h.approvals.ListDonations(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "list_donations", err)
		return
	}
	RespondWithPaginatedData(c, donations, page, total)
}

// Approve stores the donation in a new bag and credits the stock
func (h *DonationHandler) Approve(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req ApproveDonationRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	b, err := h.approvals.ApproveDonation(c.Request.Context(), caller, id, req.BloodBagNumber)
	if err != nil {
		h.fail(c, "approve_donation", err)
		return
	}
	RespondOK(c, "Donation approved", b)
}

func (h *DonationHandler) Reject(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req RejectRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	rejected, err := h.approvals.RejectDonation(c.Request.Context(), caller, id, req.Reason)
	if err != nil {
		h.fail(c, "reject_donation", err)
		return
	}
	RespondOK(c, "Donation rejected", rejected)
}

// Eligibility evaluates a donor against the cooldown, age and weight rules
func (h *DonationHandler) Eligibility(c *gin.Context) {
	result, err := h.approvals.DonorEligibility(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "donor_eligibility", err)
		return
	}
	RespondOK(c, "", result)
}
