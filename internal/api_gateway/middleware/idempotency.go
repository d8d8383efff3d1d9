package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader lets clients retry a mutation without applying it twice
const IdempotencyKeyHeader = "Idempotency-Key"

// KeyReserver claims and releases idempotency keys
type KeyReserver interface {
	Reserve(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// Idempotency rejects a repeated POST, PUT or DELETE carrying an Idempotency-Key
// that has already been seen. A key is kept only when the request succeeded, so a
// failed attempt can be retried with the same key. Requests without the header,
// and every request when store is nil, pass straight through.
func Idempotency(store KeyReserver, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if store == nil || key == "" || !mutating(c.Request.Method) {
			c.Next()
			return
		}

		scoped := c.Request.Method + ":" + c.Request.URL.Path + ":" + key
		if actor, ok := GetActor(c); ok {
			scoped = actor.ID + ":" + scoped
		}

		reserved, err := store.Reserve(c.Request.Context(), scoped)
		if err != nil {
			// Redis being down must not take the API with it
			logger.Warn("Idempotency check skipped", "error", err, "correlation_id", GetCorrelationID(c))
			c.Next()
			return
		}
		if !reserved {
			abortWithError(c, http.StatusConflict, "DUPLICATE_REQUEST", "a request with this Idempotency-Key was already processed")
			return
		}

		c.Next()

		if status := c.Writer.Status(); status < 200 || status >= 300 {
			if err := store.Release(context.WithoutCancel(c.Request.Context()), scoped); err != nil {
				logger.Warn("Failed to release idempotency key", "error", err, "correlation_id", GetCorrelationID(c))
			}
		}
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
