package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bloodbank-ledger/internal/api_gateway/middleware"
	"github.com/bloodbank-ledger/internal/api_gateway/service"
	"github.com/bloodbank-ledger/internal/data/memory"
	"github.com/bloodbank-ledger/internal/domain/activity"
	"github.com/bloodbank-ledger/internal/domain/eligibility"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "handler-test-signing-key"

var (
	admin      = shared.Actor{ID: "admin-1", Name: "Admin", Role: shared.RoleAdmin}
	executive  = shared.Actor{ID: "exec-1", Name: "Exec", Role: shared.RoleExecutive}
	requester  = shared.Actor{ID: "req-1", Name: "Ward 4", Role: shared.RoleRequester}
	requester2 = shared.Actor{ID: "req-2", Name: "Ward 9", Role: shared.RoleRequester}
	donor      = shared.Actor{ID: "donor-1", Name: "Asha", Role: shared.RoleDonor}
)

// envelope mirrors Response with the payload left raw for typed decoding
type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Error      *ErrorInfo      `json:"error"`
	Pagination *Pagination     `json:"pagination"`
}

type testAPI struct {
	router   *gin.Engine
	store    *memory.Store
	verifier *middleware.TokenVerifier
	metrics  *metrics.Metrics
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestAPI serves every handler over the in-memory engine
func newTestAPI(t *testing.T, activityRepo activity.Repository) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := newTestLogger()
	store := memory.NewStore(logger)
	m := metrics.New(prometheus.NewRegistry())

	ledger := service.NewInventoryLedger(logger, store, m)
	bags := service.NewBloodBagRegistry(logger, store, ledger)
	requests := service.NewRequestWorkflow(logger, store, ledger, bags, store, m, service.RequestWorkflowConfig{})
	approvals := service.NewApprovalWorkflow(logger, store, ledger, bags, store, eligibility.NewEvaluator(eligibility.DefaultRules()), m)

	verifier := middleware.NewTokenVerifier(testSigningKey, "")

	stockHandler := NewStockHandler(logger, m, ledger)
	bagHandler := NewBagHandler(logger, m, bags)
	requestHandler := NewRequestHandler(logger, m, requests, approvals)
	donationHandler := NewDonationHandler(logger, m, approvals)
	activityHandler := NewActivityHandler(logger, m, activityRepo)

	r := gin.New()
	r.Use(middleware.CorrelationID())
	v1 := r.Group("/api/v1", middleware.Authenticate(verifier, logger))
	v1.GET("/stock", stockHandler.GetAll)
	v1.GET("/stock/:group", stockHandler.Get)
	v1.POST("/stock/entry", stockHandler.Entry)
	v1.POST("/stock/donate", stockHandler.Donate)
	v1.POST("/stock/exchange", stockHandler.Exchange)
	v1.GET("/transactions", stockHandler.ListTransactions)
	v1.POST("/bags", bagHandler.Create)
	v1.GET("/bags", bagHandler.ListAvailable)
	v1.GET("/bags/:id", bagHandler.Get)
	v1.POST("/requests", requestHandler.Submit)
	v1.GET("/requests", requestHandler.List)
	v1.GET("/requests/:id", requestHandler.Get)
	v1.PUT("/requests/:id/donate", requestHandler.AssignDonor)
	v1.PUT("/requests/:id/donate-from-bank", requestHandler.AssignFromBank)
	v1.PUT("/requests/:id/status", requestHandler.UpdateStatus)
	v1.PUT("/requests/:id/approve", requestHandler.Approve)
	v1.PUT("/requests/:id/reject", requestHandler.Reject)
	v1.DELETE("/requests/:id", requestHandler.Cancel)
	v1.POST("/donation-requests", donationHandler.Submit)
	v1.GET("/donation-requests", donationHandler.List)
	v1.PUT("/donation-requests/:id/approve", donationHandler.Approve)
	v1.PUT("/donation-requests/:id/reject", donationHandler.Reject)
	v1.GET("/donors/:id/eligibility", donationHandler.Eligibility)
	v1.GET("/activity", activityHandler.List)

	return &testAPI{router: r, store: store, verifier: verifier, metrics: m}
}

// do sends a request as caller. A nil caller sends no token; a nil body sends none.
func (a *testAPI) do(t *testing.T, caller *shared.Actor, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, "/api/v1"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != nil {
		token, err := a.verifier.Issue(*caller, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

// decode unmarshals the envelope and, when out is non-nil, its data
func decode(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out), string(env.Data))
	}
	return env
}

func requireStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rr.Code, rr.Body.String())
}

func (a *testAPI) seedStock(t *testing.T, group string, units int) {
	t.Helper()
	rr := a.do(t, &admin, http.MethodPost, "/stock/entry", StockEntryRequest{BloodGroup: group, Units: units})
	requireStatus(t, rr, http.StatusCreated)
}

func serve(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
	return rr
}
