package handler

import (
	"log/slog"

	"github.com/bloodbank-ledger/internal/api_gateway/service"
	"github.com/bloodbank-ledger/internal/domain/inventory"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StockHandler handles HTTP requests for stock counters and the transaction log
type StockHandler struct {
	ledger service.InventoryLedger
	logger *slog.Logger
	errorResponder
}

// NewStockHandler creates a new stock handler
func NewStockHandler(logger *slog.Logger, m *metrics.Metrics, ledger service.InventoryLedger) *StockHandler {
	return &StockHandler{
		ledger:         ledger,
		logger:         logger,
		errorResponder: errorResponder{logger: logger, metrics: m},
	}
}

// GetAll returns the counter of every blood group
func (h *StockHandler) GetAll(c *gin.Context) {
	stock, err := h.ledger.GetStockAll(c.Request.Context())
	if err != nil {
		h.fail(c, "get_stock_all", err)
		return
	}

	levels := make([]StockLevel, 0, len(stock))
	for _, group := range shared.AllBloodGroups() {
		levels = append(levels, StockLevel{BloodGroup: group.String(), Units: stock[group]})
	}
	RespondOK(c, "", levels)
}

// Get returns one group's counter. The group must be URL-escaped (O%2B).
func (h *StockHandler) Get(c *gin.Context) {
	group, err := shared.ParseBloodGroup(c.Param("group"))
	if err != nil {
		h.fail(c, "get_stock", err)
		return
	}

	stock, err := h.ledger.GetStock(c.Request.Context(), group)
	if err != nil {
		h.fail(c, "get_stock", err)
		return
	}
	RespondOK(c, "", StockLevel{BloodGroup: stock.BloodGroup.String(), Units: stock.Units})
}

// Entry records collected units and returns the new total
func (h *StockHandler) Entry(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}

	var req StockEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	group, err := shared.ParseBloodGroup(req.BloodGroup)
	if err != nil {
		h.fail(c, "stock_entry", err)
		return
	}

	txn, err := h.ledger.RecordEntry(c.Request.Context(), caller, group, req.Units, req.DonorMeta)
	if err != nil {
		h.fail(c, "stock_entry", err)
		return
	}

	RespondCreated(c, "Stock entry recorded", StockChangeResponse{
		Transaction: txn,
		BloodGroup:  group.String(),
		Units:       txn.ResultingStock,
	})
}

// Donate records units handed out and returns the remaining stock
func (h *StockHandler) Donate(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}

	var req StockDonateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	group, err := shared.ParseBloodGroup(req.BloodGroup)
	if err != nil {
		h.fail(c, "stock_donate", err)
		return
	}

	var linked *uuid.UUID
	if req.RequestID != "" {
		id := uuid.MustParse(req.RequestID)
		linked = &id
	}

	txn, err := h.ledger.RecordDonation(c.Request.Context(), caller, group, req.Units, req.ReceiverMeta, linked)
	if err != nil {
		h.fail(c, "stock_donate", err)
		return
	}

	RespondCreated(c, "Donation recorded", StockChangeResponse{
		Transaction: txn,
		BloodGroup:  group.String(),
		Units:       txn.ResultingStock,
	})
}

// Exchange moves units between two groups and returns both counters
func (h *StockHandler) Exchange(c *gin.Context) {
	caller, ok := actor(c)
	if !ok {
		return
	}

	var req StockExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	from, err := shared.ParseBloodGroup(req.FromGroup)
	if err != nil {
		h.fail(c, "stock_exchange", err)
		return
	}
	to, err := shared.ParseBloodGroup(req.ToGroup)
	if err != nil {
		h.fail(c, "stock_exchange", err)
		return
	}

	var meta map[string]string
	if req.Note != "" {
		meta = map[string]string{"note": req.Note}
	}

	result, err := h.ledger.RecordExchange(c.Request.Context(), caller, from, to, req.Units, meta)
	if err != nil {
		h.fail(c, "stock_exchange", err)
		return
	}
	RespondCreated(c, "Exchange recorded", result)
}

// ListTransactions returns the transaction log, newest first
func (h *StockHandler) ListTransactions(c *gin.Context) {
	var query TransactionQuery
	var page PaginationParams
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query: "+err.Error())
		return
	}
	if err := c.ShouldBindQuery(&page); err != nil {
		RespondBadRequest(c, "Invalid pagination: "+err.Error())
		return
	}

	group, err := optionalGroup(query.BloodGroup)
	if err != nil {
		h.fail(c, "list_transactions", err)
		return
	}
	from, err := optionalTime(query.From, false)
	if err != nil {
		RespondBadRequest(c, "Invalid from: "+err.Error())
		return
	}
	to, err := optionalTime(query.To, true)
	if err != nil {
		RespondBadRequest(c, "Invalid to: "+err.Error())
		return
	}

	filter := inventory.Filter{
		Type:       shared.TransactionType(query.Type),
		BloodGroup: group,
		From:       from,
		To:         to,
		Limit:      page.PageSize,
		Offset:     page.Offset(),
	}
	if query.RequestID != "" {
		id := uuid.MustParse(query.RequestID)
		filter.LinkedRequestID = &id
	}

	txns, total, err := h.ledger.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, "list_transactions", err)
		return
	}
	RespondWithPaginatedData(c, txns, page, total)
}
