package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bloodbank-ledger/internal/config"
	"github.com/bloodbank-ledger/internal/data/mongo"
	"github.com/bloodbank-ledger/internal/data/postgres"
	"github.com/bloodbank-ledger/internal/event_processor/consumer"
	"github.com/bloodbank-ledger/internal/event_processor/outbox_poller"
	"github.com/bloodbank-ledger/internal/event_processor/service"
	"github.com/bloodbank-ledger/internal/logger"
	"github.com/bloodbank-ledger/internal/platform/messaging/consumers"
	"github.com/bloodbank-ledger/internal/platform/messaging/producers"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/bloodbank-ledger/internal/platform/persistence"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Cancelled on SIGINT/SIGTERM; every component below stops with it
	appCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg, err := config.LoadConfig("event_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg, "event_processor")
	log.Info("Starting Event Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}
	if err := mongoDB.EnsureIndexes(appCtx, mongo.ActivityCollectionName, mongo.ActivityIndexes()...); err != nil {
		log.Error("Failed to ensure activity log indexes", "error", err)
		os.Exit(1)
	}

	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	activityRepo := mongo.NewActivityRepository(log, mongoDB.Database())

	eventProducer, err := producers.NewEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize event producer", "error", err)
		os.Exit(1)
	}

	// nil when no DLQ topic is configured; the handler then drops bad events
	dlqProducer, err := producers.NewDeadLetterProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ producer", "error", err)
		os.Exit(1)
	}

	projector, err := service.NewWorkerPoolProjectionService(
		service.NewActivityProjectionService(log, activityRepo, m),
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		log,
	)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	eventHandler := consumer.NewEventHandler(log, projector, dlqProducer)
	kafkaConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka)
	poller := outbox_poller.NewPoller(
		&cfg.Outbox,
		outboxRepo,
		outbox_poller.NewKafkaRelay(outboxRepo, eventProducer, log),
		log,
		m,
	)

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
	}

	g, ctx := errgroup.WithContext(appCtx)

	g.Go(func() error {
		poller.Start(ctx)
		return nil
	})

	g.Go(func() error {
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.EventsTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Run(ctx, eventHandler.HandleMessage); err != nil {
			return fmt.Errorf("kafka consumer error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("Serving metrics", "port", cfg.Server.Port)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	serviceErr := g.Wait()
	if serviceErr != nil {
		log.Error("Service error occurred", "error", serviceErr)
	}

	log.Info("Starting graceful shutdown...")

	log.Info("Shutting down worker pool", "running_workers", projector.Running())
	projector.Shutdown()

	if err := kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}
	if err := eventProducer.Close(); err != nil {
		log.Error("Error closing event producer", "error", err)
	}
	if err := dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ producer", "error", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}
	postgresDB.Close()

	if serviceErr != nil {
		log.Error("Event Processor shutdown completed with errors")
		os.Exit(1)
	}
	log.Info("Event Processor shutdown completed successfully")
}
