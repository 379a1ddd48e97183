package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// RequestIDHeader is the canonical HTTP header used to propagate the request identifier.
	RequestIDHeader = "X-Request-ID"

	// RequestIDKey is the gin.Context key under which the request ID string is stored so
	// that handlers and other middleware can retrieve it without reading the response header.
	RequestIDKey = "request_id"
)

// RequestIDMiddleware ensures every request carries a unique identifier,
// propagated as an X-Request-ID header. An inbound X-Request-ID set by the
// frontend is reused unchanged; otherwise a UUID v4 is generated. The id is
// stored in gin.Context under RequestIDKey and echoed in the response header so
// the frontend can correlate a failed call with the gateway's log entries.
//
// Register this middleware early so all downstream logging includes the id.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		// Store in context for use by handlers and other middleware (e.g. logging).
		c.Set(RequestIDKey, id)

		// Echo back to caller so they can correlate their request with server-side logs.
		c.Header(RequestIDHeader, id)

		c.Next()
	}
}
