package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery turns a panic in the handler chain into a 500 envelope carrying the
// correlation id. When the handler already started writing, the response is cut short.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			attrs := []any{
				"error", r,
				"stack", string(debug.Stack()),
				"route", c.FullPath(),
				"method", c.Request.Method,
				"correlation_id", GetCorrelationID(c),
			}
			if actor, ok := GetActor(c); ok {
				attrs = append(attrs, "actor_id", actor.ID)
			}
			logger.Error("Panic recovered", attrs...)

			if c.Writer.Written() {
				c.Abort()
				return
			}
			abortWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "An internal server error occurred")
		}()

		c.Next()
	}
}
