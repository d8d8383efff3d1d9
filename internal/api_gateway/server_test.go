package api_gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bloodbank-ledger/internal/api_gateway/middleware"
	"github.com/bloodbank-ledger/internal/api_gateway/service"
	"github.com/bloodbank-ledger/internal/config"
	"github.com/bloodbank-ledger/internal/data/memory"
	"github.com/bloodbank-ledger/internal/domain/eligibility"
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signingKey = "server-test-signing-key"

type reserver struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (r *reserver) Reserve(_ context.Context, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.keys[key] {
		return false, nil
	}
	r.keys[key] = true
	return true, nil
}

func (r *reserver) Release(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.keys, key)
	return nil
}

func newTestServer(t *testing.T, health map[string]HealthCheck) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore(logger)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	ledger := service.NewInventoryLedger(logger, store, m)
	bags := service.NewBloodBagRegistry(logger, store, ledger)

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 0, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second},
		Auth:   config.AuthConfig{JWTSecret: signingKey},
	}

	return NewServer(logger, cfg, Dependencies{
		Ledger:      ledger,
		Bags:        bags,
		Requests:    service.NewRequestWorkflow(logger, store, ledger, bags, store, m, service.RequestWorkflowConfig{}),
		Approvals:   service.NewApprovalWorkflow(logger, store, ledger, bags, store, eligibility.NewEvaluator(eligibility.DefaultRules()), m),
		Idempotency: &reserver{keys: map[string]bool{}},
		Metrics:     m,
		Registry:    reg,
		Health:      health,
	})
}

func send(t *testing.T, s *Server, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func bearer(t *testing.T, actor shared.Actor) map[string]string {
	t.Helper()
	token, err := middleware.NewTokenVerifier(signingKey, "").Issue(actor, time.Minute)
	require.NoError(t, err)
	return map[string]string{"Authorization": "Bearer " + token}
}

func TestServer_Health(t *testing.T) {
	t.Run("AllHealthy", func(t *testing.T) {
		s := newTestServer(t, map[string]HealthCheck{
			"storage": func(context.Context) error { return nil },
		})

		rr := send(t, s, http.MethodGet, "/health", nil, nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "ok", body["status"])
		assert.Equal(t, map[string]interface{}{"storage": "ok"}, body["components"])
	})

	t.Run("DependencyDown", func(t *testing.T) {
		s := newTestServer(t, map[string]HealthCheck{
			"storage": func(context.Context) error { return nil },
			"redis":   func(context.Context) error { return errors.New("connection refused") },
		})

		rr := send(t, s, http.MethodGet, "/health", nil, nil)

		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "degraded", body["status"])
		assert.Equal(t, "connection refused", body["components"].(map[string]interface{})["redis"])
	})

	t.Run("NoAuthRequired", func(t *testing.T) {
		s := newTestServer(t, nil)
		assert.Equal(t, http.StatusOK, send(t, s, http.MethodGet, "/health", nil, nil).Code)
	})
}

func TestServer_APIRequiresToken(t *testing.T) {
	s := newTestServer(t, nil)

	rr := send(t, s, http.MethodGet, "/api/v1/stock", nil, nil)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Correlation-ID"))
}

func TestServer_EntryWithIdempotencyKey(t *testing.T) {
	s := newTestServer(t, nil)
	headers := bearer(t, shared.Actor{ID: "exec-1", Role: shared.RoleExecutive})
	headers[middleware.IdempotencyKeyHeader] = "entry-1"

	body := map[string]interface{}{"blood_group": "O-", "units": 4}

	first := send(t, s, http.MethodPost, "/api/v1/stock/entry", body, headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	replay := send(t, s, http.MethodPost, "/api/v1/stock/entry", body, headers)
	assert.Equal(t, http.StatusConflict, replay.Code)

	rr := send(t, s, http.MethodGet, "/api/v1/stock/O-", nil, bearer(t, shared.Actor{ID: "req-1", Role: shared.RoleRequester}))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"units":4`)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	send(t, s, http.MethodGet, "/api/v1/stock", nil, bearer(t, shared.Actor{ID: "admin-1", Role: shared.RoleAdmin}))

	rr := send(t, s, http.MethodGet, "/metrics", nil, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "bloodbank_http_request_duration_seconds")
	assert.Contains(t, rr.Body.String(), `route="/api/v1/stock"`)
}

func TestServer_StopWithoutStart(t *testing.T) {
	s := newTestServer(t, nil)
	assert.NoError(t, s.Stop(context.Background()))
}
