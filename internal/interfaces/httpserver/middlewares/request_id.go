package middlewares

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-Id"
	// Caps forwarded ids so a hostile client cannot bloat every log line
	// and event payload downstream.
	maxRequestIDLen = 64
)

// RequestID ensures every request carries an id, minting a UUID when the
// client did not send a usable one. The id is echoed on the response and
// stored in the gin context for the logging and tracing middlewares.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := sanitizeRequestID(c.GetHeader(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		c.Request.Header.Set(requestIDHeader, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Set(requestIDHeader, id)
		c.Next()
	}
}

// sanitizeRequestID trims and truncates a client supplied id. Ids with
// embedded whitespace are discarded rather than repaired.
func sanitizeRequestID(id string) string {
	id = strings.TrimSpace(id)
	if strings.ContainsAny(id, " \t\r\n") {
		return ""
	}
	if len(id) > maxRequestIDLen {
		id = id[:maxRequestIDLen]
	}
	return id
}

// RequestIDFromContext returns the request id stored by RequestID, or the
// empty string outside its scope.
func RequestIDFromContext(c *gin.Context) string {
	val, _ := c.Get(requestIDHeader)
	id, _ := val.(string)
	return id
}
