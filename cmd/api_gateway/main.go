package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bloodbank-ledger/internal/api_gateway"
	"github.com/bloodbank-ledger/internal/api_gateway/middleware"
	"github.com/bloodbank-ledger/internal/api_gateway/service"
	"github.com/bloodbank-ledger/internal/config"
	"github.com/bloodbank-ledger/internal/data/memory"
	"github.com/bloodbank-ledger/internal/data/mongo"
	"github.com/bloodbank-ledger/internal/data/postgres"
	redisstore "github.com/bloodbank-ledger/internal/data/redis"
	"github.com/bloodbank-ledger/internal/domain/activity"
	"github.com/bloodbank-ledger/internal/domain/eligibility"
	"github.com/bloodbank-ledger/internal/domain/profile"
	"github.com/bloodbank-ledger/internal/domain/uow"
	"github.com/bloodbank-ledger/internal/logger"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/bloodbank-ledger/internal/platform/persistence"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg, "api_gateway")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	health := map[string]api_gateway.HealthCheck{}
	var closers []func(ctx context.Context)

	// Storage behind the engine
	var (
		unitOfWork uow.UnitOfWork
		profiles   profile.Provider
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
		if err != nil {
			log.Error("Failed to initialize PostgreSQL", "error", err)
			os.Exit(1)
		}
		unitOfWork = postgres.NewUnitOfWork(log, postgresDB)
		profiles = postgres.NewDonorProfileRepository(log, postgresDB)
		health["postgres"] = postgresDB.Ping
		closers = append(closers, func(context.Context) { postgresDB.Close() })

	case config.StorageDriverMemory:
		log.Warn("Using in-memory storage; state is lost on restart and events are not published")
		store := memory.NewStore(log)
		unitOfWork = store
		profiles = store
	}

	// Activity log is optional for the gateway; GET /activity answers 503 without it
	var activityRepo activity.Repository
	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Warn("MongoDB unavailable, activity log disabled", "error", err)
	} else {
		activityRepo = mongo.NewActivityRepository(log, mongoDB.Database())
		closers = append(closers, func(ctx context.Context) {
			if err := mongoDB.Close(ctx); err != nil {
				log.Error("Error closing MongoDB connection", "error", err)
			}
		})
	}

	// Idempotency keys are only honoured when Redis is configured
	var idempotency middleware.KeyReserver
	redisClient, err := persistence.NewRedisClient(appCtx, log, &cfg.Redis)
	if err != nil {
		log.Error("Failed to initialize Redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		idempotency = redisstore.NewIdempotencyStore(redisClient, cfg.Redis.KeyPrefix, cfg.Redis.IdempotencyTTL)
		health["redis"] = redisClient.Health
		closers = append(closers, func(context.Context) {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing Redis client", "error", err)
			}
		})
	}

	// Initialize services
	ledger := service.NewInventoryLedger(log, unitOfWork, m)
	bags := service.NewBloodBagRegistry(log, unitOfWork, ledger)
	requests := service.NewRequestWorkflow(log, unitOfWork, ledger, bags, profiles, m, service.RequestWorkflowConfig{
		BankAssignmentFulfills: cfg.Workflow.BankAssignmentFulfills,
	})
	approvals := service.NewApprovalWorkflow(log, unitOfWork, ledger, bags, profiles, eligibility.NewEvaluator(eligibility.Rules{
		CooldownMonths: cfg.Eligibility.CooldownMonths,
		MinAge:         cfg.Eligibility.MinAge,
		MaxAge:         cfg.Eligibility.MaxAge,
		MinWeightKg:    cfg.Eligibility.MinWeightKg,
	}), m)

	if err := refreshStockGauge(appCtx, ledger, m); err != nil {
		log.Warn("Failed to read initial stock levels", "error", err)
	}

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, api_gateway.Dependencies{
		Ledger:      ledger,
		Bags:        bags,
		Requests:    requests,
		Approvals:   approvals,
		Activity:    activityRepo,
		Idempotency: idempotency,
		Metrics:     m,
		Registry:    reg,
		Health:      health,
	})
	log.Info("REST server initialized",
		"storage", cfg.Storage.Driver,
		"activity_log", activityRepo != nil,
		"idempotency", idempotency != nil,
	)

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Drain HTTP before releasing the stores it uses
	stopErr := server.Stop(shutdownCtx)
	if stopErr != nil {
		log.Error("Error during server shutdown", "error", stopErr)
	}
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i](shutdownCtx)
	}

	if serverErr != nil || stopErr != nil {
		log.Error("Server shutdown completed with errors", "error", serverErr)
		os.Exit(1)
	}
	log.Info("Server shutdown completed successfully")
}

// refreshStockGauge publishes current stock levels so the gauge is populated before the first write
func refreshStockGauge(ctx context.Context, ledger service.InventoryLedger, m *metrics.Metrics) error {
	levels, err := ledger.GetStockAll(ctx)
	if err != nil {
		return err
	}
	for group, units := range levels {
		m.SetStock(group.String(), units)
	}
	return nil
}
