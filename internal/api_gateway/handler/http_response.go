package handler

import (
	"net/http"

	"github.com/bloodbank-ledger/internal/api_gateway/middleware"
	"github.com/gin-gonic/gin"
)

// Response is the envelope of every API response
type Response struct {
	Success       bool        `json:"success"`
	Message       string      `json:"message,omitempty"`
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
	Pagination    *Pagination `json:"pagination,omitempty"`
}

// ErrorInfo represents error information in a response
type ErrorInfo struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// Pagination describes the page returned by a list endpoint
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int64 `json:"total_pages"`
	TotalItems int64 `json:"total_items"`
}

// NewPagination computes the page count for totalItems
func NewPagination(page, pageSize int, totalItems int64) *Pagination {
	totalPages := totalItems / int64(pageSize)
	if totalItems%int64(pageSize) > 0 {
		totalPages++
	}

	return &Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		TotalItems: totalItems,
	}
}

// RespondWithData sends a successful JSON response
func RespondWithData(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, &Response{
		Success:       true,
		Message:       message,
		Data:          data,
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// RespondWithError sends a failed JSON response
func RespondWithError(c *gin.Context, statusCode int, code, message string, details ...string) {
	c.JSON(statusCode, &Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// RespondWithPaginatedData sends one page of a list
func RespondWithPaginatedData(c *gin.Context, data interface{}, page PaginationParams, totalItems int64) {
	c.JSON(http.StatusOK, &Response{
		Success:       true,
		Data:          data,
		CorrelationID: middleware.GetCorrelationID(c),
		Pagination:    NewPagination(page.Page, page.PageSize, totalItems),
	})
}

// RespondOK sends a 200 OK response with data
func RespondOK(c *gin.Context, message string, data interface{}) {
	RespondWithData(c, http.StatusOK, message, data)
}

// RespondCreated sends a 201 Created response with data
func RespondCreated(c *gin.Context, message string, data interface{}) {
	RespondWithData(c, http.StatusCreated, message, data)
}

// RespondBadRequest sends a 400 Bad Request response with an error
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

// RespondUnauthorized sends a 401 when no actor is attached to the request
func RespondUnauthorized(c *gin.Context) {
	RespondWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
}

// RespondNotFound sends a 404 Not Found response with an error
func RespondNotFound(c *gin.Context, message string) {
	if message == "" {
		message = "Resource not found"
	}
	RespondWithError(c, http.StatusNotFound, "NOT_FOUND", message)
}

// RespondServiceUnavailable sends a 503 for a dependency that is not configured
func RespondServiceUnavailable(c *gin.Context, message string) {
	RespondWithError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message)
}

// RespondInternalError sends a 500 Internal Server Error response with an error
func RespondInternalError(c *gin.Context) {
	RespondWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
}
