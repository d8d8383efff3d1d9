package api_gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/bloodbank-ledger/internal/api_gateway/handler"
	"github.com/bloodbank-ledger/internal/api_gateway/middleware"
	"github.com/bloodbank-ledger/internal/platform/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// routes bundles what setupRouter mounts
type routes struct {
	verifier    *middleware.TokenVerifier
	idempotency middleware.KeyReserver
	metrics     *metrics.Metrics
	registry    *prometheus.Registry
	health      map[string]HealthCheck

	stock     *handler.StockHandler
	bags      *handler.BagHandler
	requests  *handler.RequestHandler
	donations *handler.DonationHandler
	activity  *handler.ActivityHandler
}

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, rt routes) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(rt.metrics))

	// API v1 endpoints, all authenticated
	v1 := r.Group("/api/v1",
		middleware.Authenticate(rt.verifier, logger),
		middleware.Idempotency(rt.idempotency, logger),
	)
	{
		stock := v1.Group("/stock")
		{
			stock.GET("", rt.stock.GetAll)
			stock.GET("/:group", rt.stock.Get)
			stock.POST("/entry", rt.stock.Entry)
			stock.POST("/donate", rt.stock.Donate)
			stock.POST("/exchange", rt.stock.Exchange)
		}
		v1.GET("/transactions", rt.stock.ListTransactions)

		bags := v1.Group("/bags")
		{
			bags.POST("", rt.bags.Create)
			bags.GET("", rt.bags.ListAvailable)
			bags.GET("/:id", rt.bags.Get)
		}

		requests := v1.Group("/requests")
		{
			requests.POST("", rt.requests.Submit)
			requests.GET("", rt.requests.List)
			requests.GET("/:id", rt.requests.Get)
			requests.PUT("/:id/donate", rt.requests.AssignDonor)
			requests.PUT("/:id/donate-from-bank", rt.requests.AssignFromBank)
			requests.PUT("/:id/status", rt.requests.UpdateStatus)
			requests.PUT("/:id/approve", rt.requests.Approve)
			requests.PUT("/:id/reject", rt.requests.Reject)
			requests.DELETE("/:id", rt.requests.Cancel)
		}

		donations := v1.Group("/donation-requests")
		{
			donations.POST("", rt.donations.Submit)
			donations.GET("", rt.donations.List)
			donations.PUT("/:id/approve", rt.donations.Approve)
			donations.PUT("/:id/reject", rt.donations.Reject)
		}
		v1.GET("/donors/:id/eligibility", rt.donations.Eligibility)

		v1.GET("/activity", rt.activity.List)
	}

	if rt.registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{})))
	}

	// Health check endpoint for monitoring
	r.GET("/health", healthHandler(rt.health))
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		components := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				components[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			components[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "components": components, "timestamp": time.Now().UTC()})
	}
}
