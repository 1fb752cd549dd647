package middleware

import (
	"strconv"
	"time"

	"github.com/ErlanBelekov/interview-genie/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records request count and latency per route template, so
// /users/:id is one series regardless of the id.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
	}
}
