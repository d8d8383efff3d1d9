package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bloodbank-ledger/internal/api_gateway/middleware"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	kind   error
	status int
	code   string
}

// errorMappings is checked in order with errors.Is
var errorMappings = []errorMapping{
	{shared.ErrInvalidUnits, http.StatusBadRequest, "INVALID_UNITS"},
	{shared.ErrInsufficientStock, http.StatusBadRequest, "INSUFFICIENT_STOCK"},
	{shared.ErrSameGroup, http.StatusBadRequest, "SAME_GROUP"},
	{shared.ErrInvalidBloodGroup, http.StatusBadRequest, "INVALID_BLOOD_GROUP"},
	{shared.ErrBloodGroupMismatch, http.StatusBadRequest, "BLOOD_GROUP_MISMATCH"},
	{shared.ErrIneligible, http.StatusBadRequest, "INELIGIBLE"},
	{shared.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
	{shared.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{shared.ErrDuplicateBagNumber, http.StatusConflict, "DUPLICATE_BAG_NUMBER"},
	{shared.ErrAlreadyUsed, http.StatusConflict, "ALREADY_USED"},
	{shared.ErrInvalidTransition, http.StatusConflict, "INVALID_TRANSITION"},
	{shared.ErrConcurrentModification, http.StatusConflict, "CONCURRENT_MODIFICATION"},
}

// errorResponder turns engine errors into HTTP responses
type errorResponder struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// fail responds with the status mapped from err. Unknown errors are logged and
// answered with a generic 500 so storage details never reach the client.
func (r errorResponder) fail(c *gin.Context, operation string, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.kind) {
			continue
		}

		r.metrics.IncrementRejection(strings.ToLower(m.code))
		r.logger.Warn("Operation rejected",
			"operation", operation,
			"code", m.code,
			"error", err,
			"correlation_id", middleware.GetCorrelationID(c),
		)

		var ineligible shared.IneligibleError
		if errors.As(err, &ineligible) {
			RespondWithError(c, m.status, m.code, ineligible.Error(), ineligible.Reasons...)
			return
		}
		RespondWithError(c, m.status, m.code, err.Error())
		return
	}

	r.logger.Error("Operation failed",
		"operation", operation,
		"error", err,
		"correlation_id", middleware.GetCorrelationID(c),
	)
	RespondInternalError(c)
}

// actor returns the authenticated caller or answers 401
func actor(c *gin.Context) (shared.Actor, bool) {
	a, ok := middleware.GetActor(c)
	if !ok {
		RespondUnauthorized(c)
	}
	return a, ok
}
