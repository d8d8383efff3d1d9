package handler

import (
	"log/slog"

	"github.com/bloodbank-ledger/internal/api_gateway/service"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/gin-gonic/gin"
)

// BagHandler handles HTTP requests for blood bags
type BagHandler struct {
	bags   service.BloodBagRegistry
	logger *slog.Logger
	errorResponder
}

func NewBagHandler(logger *slog.Logger, m *metrics.Metrics, bags service.BloodBagRegistry) *BagHandler {
	return &BagHandler{
		bags:           bags,
		logger:         logger,
		errorResponder: errorResponder{logger: logger, metrics: m},
	}
}

// Create registers a bag and credits its units to stock. Bags leave the bank
// only through a request's bank assignment.
func (h *BagHandler) Create(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}

	var req CreateBagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	group, err := shared.ParseBloodGroup(req.BloodGroup)
	if err != nil {
		h.fail(c, "create_bag", err)
		return
	}

	b, err := h.bags.CreateBag(c.Request.Context(), caller, group, req.DonorID, req.Units, req.BagNumber)
	if err != nil {
		h.fail(c, "create_bag", err)
		return
	}
	RespondCreated(c, "Blood bag registered", b)
}

// ListAvailable returns available bags, optionally for one group
func (h *BagHandler) ListAvailable(c *gin.Context) {
	group, err := optionalGroup(c.Query("blood_group"))
	if err != nil {
		h.fail(c, "list_bags", err)
		return
	}

	bags, err := h.bags.ListAvailable(c.Request.Context(), group)
	if err != nil {
		h.fail(c, "list_bags", err)
		return
	}
	RespondOK(c, "", bags)
}

func (h *BagHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	b, err := h.bags.GetBag(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "get_bag", err)
		return
	}
	RespondOK(c, "", b)
}
