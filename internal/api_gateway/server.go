package api_gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bloodbank-ledger/internal/api_gateway/handler"
	"github.com/bloodbank-ledger/internal/api_gateway/middleware"
	"github.com/bloodbank-ledger/internal/api_gateway/service"
	"github.com/bloodbank-ledger/internal/config"
	"github.com/bloodbank-ledger/internal/domain/activity"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Dependencies are the engine services and infrastructure the HTTP surface needs.
// Activity, Idempotency, Registry and Health may be left nil.
type Dependencies struct {
	Ledger    service.InventoryLedger
	Bags      service.BloodBagRegistry
	Requests  service.RequestWorkflow
	Approvals service.ApprovalWorkflow

	Activity    activity.Repository
	Idempotency middleware.KeyReserver
	Metrics     *metrics.Metrics
	Registry    *prometheus.Registry
	Health      map[string]HealthCheck
}

// Server handles HTTP requests and manages the application's lifecycle
type Server struct {
	logger     *slog.Logger
	httpServer *http.Server
	httpRouter *gin.Engine
}

// NewServer creates and configures a new HTTP server with the given services
func NewServer(log *slog.Logger, cfg *config.Config, deps Dependencies) *Server {
	if cfg.Application.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	httpRouter := gin.New()

	setupRouter(log, httpRouter, routes{
		verifier:    middleware.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
		idempotency: deps.Idempotency,
		metrics:     deps.Metrics,
		registry:    deps.Registry,
		health:      deps.Health,
		stock:       handler.NewStockHandler(log, deps.Metrics, deps.Ledger),
		bags:        handler.NewBagHandler(log, deps.Metrics, deps.Bags),
		requests:    handler.NewRequestHandler(log, deps.Metrics, deps.Requests, deps.Approvals),
		donations:   handler.NewDonationHandler(log, deps.Metrics, deps.Approvals),
		activity:    handler.NewActivityHandler(log, deps.Metrics, deps.Activity),
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		logger:     log,
		httpServer: httpServer,
		httpRouter: httpRouter,
	}
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpRouter
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests, bounded by ctx
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to stop HTTP server: %w", err)
	}
	return nil
}
