package middleware

import "github.com/gin-gonic/gin"

// abortWithError stops the chain with the API error envelope
func abortWithError(c *gin.Context, status int, code, message string) {
	body := gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
	if correlationID := GetCorrelationID(c); correlationID != "" {
		body["correlation_id"] = correlationID
	}
	c.AbortWithStatusJSON(status, body)
}
