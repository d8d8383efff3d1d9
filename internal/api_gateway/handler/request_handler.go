package handler

import (
	"log/slog"

	"github.com/bloodbank-ledger/internal/api_gateway/service"
	"github.com/bloodbank-ledger/internal/domain/bloodrequest"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestHandler handles HTTP requests for the blood request lifecycle and its review
type RequestHandler struct {
	workflow  service.RequestWorkflow
	approvals service.ApprovalWorkflow
	logger    *slog.Logger
	errorResponder
}

func NewRequestHandler(logger *slog.Logger, m *metrics.Metrics, workflow service.RequestWorkflow, approvals service.ApprovalWorkflow) *RequestHandler {
	return &RequestHandler{
		workflow:       workflow,
		approvals:      approvals,
		logger:         logger,
		errorResponder: errorResponder{logger: logger, metrics: m},
	}
}

// Submit opens a pending request awaiting review
func (h *RequestHandler) Submit(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}

	var req SubmitBloodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	group, err := shared.ParseBloodGroup(req.BloodGroup)
	if err != nil {
		h.fail(c, "submit_request", err)
		return
	}
	urgency, valid := bloodrequest.ParseUrgency(req.Urgency)
	if !valid {
		RespondBadRequest(c, "urgency must be one of normal, urgent, emergency")
		return
	}

	created, err := h.workflow.SubmitRequest(c.Request.Context(), caller, bloodrequest.Details{
		BloodGroup:   group,
		UnitsNeeded:  req.UnitsNeeded,
		Urgency:      urgency,
		PatientName:  req.PatientName,
		Hospital:     req.Hospital,
		ContactPhone: req.ContactPhone,
		Reason:       req.Reason,
		RequiredBy:   req.RequiredBy,
	})
	if err != nil {
		h.fail(c, "submit_request", err)
		return
	}
	RespondCreated(c, "Blood request submitted", created)
}

func (h *RequestHandler) List(c *gin.Context) {
	var query RequestQuery
	var page PaginationParams
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query: "+err.Error())
		return
	}
	if err := c.ShouldBindQuery(&page); err != nil {
		RespondBadRequest(c, "Invalid pagination: "+err.Error())
		return
	}

	filter := bloodrequest.Filter{Limit: page.PageSize, Offset: page.Offset()}
	if query.Status != "" {
		status, valid := bloodrequest.ParseStatus(query.Status)
		if !valid {
			RespondBadRequest(c, "Invalid status: "+query.Status)
			return
		}
		filter.Status = status
	}
	group, err := optionalGroup(query.BloodGroup)
	if err != nil {
		h.fail(c, "list_requests", err)
		return
	}
	filter.BloodGroup = group

	requests, total, err := h.workflow.ListRequests(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "list_requests", err)
		return
	}
	RespondWithPaginatedData(c, requests, page, total)
}

func (h *RequestHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	req, err := h.workflow.GetRequest(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get_request", err)
		return
	}
	RespondOK(c, "", req)
}

// AssignDonor attaches a live donor and activates the request
func (h *RequestHandler) AssignDonor(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req AssignDonorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	updated, err := h.workflow.AssignDonor(c.Request.Context(), caller, id, service.DonorAssignment{
		DonorID: req.DonorID,
		Name:    req.DonorName,
		Phone:   req.DonorPhone,
	})
	if err != nil {
		h.fail(c, "assign_donor", err)
		return
	}
	RespondOK(c, "Donor assigned", updated)
}

// AssignFromBank fulfils the request from a stored bag
func (h *RequestHandler) AssignFromBank(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req AssignFromBankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	updated, err := h.workflow.AssignFromBank(c.Request.Context(), caller, id, service.BankAssignment{
		BagID:        uuid.MustParse(req.BagID),
		Units:        req.Units,
		UsageDetails: req.UsageDetails,
	})
	if err != nil {
		h.fail(c, "assign_from_bank", err)
		return
	}
	RespondOK(c, "Blood bag assigned", updated)
}

func (h *RequestHandler) UpdateStatus(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	status, valid := bloodrequest.ParseStatus(req.Status)
	if !valid {
		RespondBadRequest(c, "Invalid status: "+req.Status)
		return
	}

	updated, err := h.workflow.UpdateStatus(c.Request.Context(), caller, id, status)
	if err != nil {
		h.fail(c, "update_request_status", err)
		return
	}
	RespondOK(c, "Status updated", updated)
}

func (h *RequestHandler) Approve(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	updated, err := h.approvals.ApproveBloodRequest(c.Request.Context(), caller, id)
	if err != nil {
		h.fail(c, "approve_request", err)
		return
	}
	RespondOK(c, "Blood request approved", updated)
}

func (h *RequestHandler) Reject(c *gin.Context) {
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

	updated, err := h.approvals.RejectBloodRequest(c.Request.Context(), caller, id, req.Reason)
	if err != nil {
		h.fail(c, "reject_request", err)
		return
	}
	RespondOK(c, "Blood request rejected", updated)
}

// Cancel soft-cancels a pending request; the record is kept
func (h *RequestHandler) Cancel(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	cancelled, err := h.workflow.Cancel(c.Request.Context(), caller, id)
	if err != nil {
		h.fail(c, "cancel_request", err)
		return
	}
	RespondOK(c, "Blood request cancelled", cancelled)
}
