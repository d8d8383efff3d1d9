package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecoveringRouter(buf *bytes.Buffer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewJSONHandler(buf, nil))

	router := gin.New()
	router.Use(CorrelationID(), Recovery(logger))
	router.Use(func(c *gin.Context) {
		c.Set(ActorKey, shared.Actor{ID: "admin-1", Role: shared.RoleAdmin})
		c.Next()
	})
	router.PUT("/api/v1/requests/:id/approve", func(c *gin.Context) {
		panic("nil approval workflow")
	})
	router.GET("/api/v1/activity", func(c *gin.Context) {
		c.String(http.StatusOK, `{"success":true,`)
		panic("cursor closed mid-stream")
	})
	router.GET("/api/v1/stock", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRecoveryMiddleware_PanicBecomesEnvelope(t *testing.T) {
	var buf bytes.Buffer
	router := newRecoveringRouter(&buf)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/requests/r-1/approve", nil)
	req.Header.Set(CorrelationIDHeader, "corr-approve-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		CorrelationID string `json:"correlation_id"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "INTERNAL_SERVER_ERROR", body.Error.Code)
	assert.Equal(t, "An internal server error occurred", body.Error.Message)
	assert.Equal(t, "corr-approve-1", body.CorrelationID)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "ERROR", line["level"])
	assert.Equal(t, "Panic recovered", line["msg"])
	assert.Equal(t, "nil approval workflow", line["error"])
	assert.Equal(t, "/api/v1/requests/:id/approve", line["route"])
	assert.Equal(t, "PUT", line["method"])
	assert.Equal(t, "corr-approve-1", line["correlation_id"])
	assert.Equal(t, "admin-1", line["actor_id"])
	assert.NotEmpty(t, line["stack"])
}

func TestRecoveryMiddleware_PanicAfterWrite(t *testing.T) {
	var buf bytes.Buffer
	router := newRecoveringRouter(&buf)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/activity", nil))

	assert.Equal(t, http.StatusOK, rr.Code, "status already sent cannot change")
	assert.Equal(t, `{"success":true,`, rr.Body.String())
	assert.Contains(t, buf.String(), "cursor closed mid-stream")
}

func TestRecoveryMiddleware_NoPanic(t *testing.T) {
	var buf bytes.Buffer
	router := newRecoveringRouter(&buf)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/stock", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, buf.String())
}
