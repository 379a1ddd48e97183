// Package middleware holds the gin middleware the gateway router installs
// ahead of every handler: request-id tagging, Prometheus instrumentation, and
// the session guard.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bandroomhq/bandroom/internal/telemetry"
)

// MetricsMiddleware records http_requests_total and
// http_request_duration_seconds for every request. Labels carry the matched
// route template (/api/v1/workspaces/:id, not the raw URL) so workspace ids
// never widen the label space; unmatched requests are bucketed under
// "<no-route>". Register it after gin.Recovery so statuses written by the
// panic handler are still counted.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "<no-route>"
		}
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
