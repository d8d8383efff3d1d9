package handler

import (
	"log/slog"

	"github.com/bloodbank-ledger/internal/domain/activity"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/gin-gonic/gin"
)

// ActivityHandler serves the activity log projected by the event processor
type ActivityHandler struct {
	repo   activity.Repository
	logger *slog.Logger
	errorResponder
}

// NewActivityHandler creates the handler. A nil repo answers 503.
func NewActivityHandler(logger *slog.Logger, m *metrics.Metrics, repo activity.Repository) *ActivityHandler {
	return &ActivityHandler{
		repo:           repo,
		logger:         logger,
		errorResponder: errorResponder{logger: logger, metrics: m},
	}
}

func (h *ActivityHandler) List(c *gin.Context) {
	if h.repo == nil {
		RespondServiceUnavailable(c, "Activity log is not configured")
		return
	}

	var query ActivityQuery
	var page PaginationParams
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query: "+err.Error())
		return
	}
	if err := c.ShouldBindQuery(&page); err != nil {
		RespondBadRequest(c, "Invalid pagination: "+err.Error())
		return
	}

	filter := activity.Filter{
		AggregateType: shared.AggregateType(query.AggregateType),
		AggregateID:   query.AggregateID,
		EventType:     shared.EventType(query.EventType),
	}

	ctx := c.Request.Context()
	total, err := h.repo.Count(ctx, filter)
	if err != nil {
		h.fail(c, "list_activity", err)
		return
	}
	entries, err := h.repo.List(ctx, filter, page.PageSize, page.Offset())
	if err != nil {
		h.fail(c, "list_activity", err)
		return
	}
	RespondWithPaginatedData(c, entries, page, total)
}
