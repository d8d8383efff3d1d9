package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// probeRoutes are polled by orchestrators and scrapers; successful hits log at debug
var probeRoutes = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// Logger logs one line per request. Server errors are logged at error level,
// rejected requests at warn.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		requestLogger := logger
		if correlationID := GetCorrelationID(c); correlationID != "" {
			requestLogger = requestLogger.With("correlation_id", correlationID)
		}
		if actor, ok := GetActor(c); ok {
			requestLogger = requestLogger.With("actor_id", actor.ID, "role", string(actor.Role))
		}

		status := c.Writer.Status()
		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		case probeRoutes[c.FullPath()]:
			level = slog.LevelDebug
		}

		requestLogger.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method,
			"path", path,
			"route", c.FullPath(),
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
		)
	}
}
