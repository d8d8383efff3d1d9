package middleware

import (
	"github.com/bloodbank-ledger/internal/domain/shared"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	CorrelationIDHeader = "X-Correlation-ID"
	CorrelationIDKey    = "correlation_id"

	maxCorrelationIDLength = 128
)

// CorrelationID gives every request an identifier. A caller supplied id is kept when it
// is short printable ASCII; otherwise a UUID is generated. The id is echoed in the
// response header and copied onto the request context, where the outbox picks it up.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if !validCorrelationID(correlationID) {
			correlationID = uuid.NewString()
		}

		c.Header(CorrelationIDHeader, correlationID)
		c.Set(CorrelationIDKey, correlationID)
		c.Request = c.Request.WithContext(shared.WithCorrelationID(c.Request.Context(), correlationID))

		c.Next()
	}
}

func validCorrelationID(id string) bool {
	if id == "" || len(id) > maxCorrelationIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// GetCorrelationID returns the id set by CorrelationID, or "" outside that middleware
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(CorrelationIDKey)
}
