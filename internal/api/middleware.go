package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codyseavey/card-vault/internal/api/handlers"
	"github.com/codyseavey/card-vault/internal/metrics"
)

// UserIDHeader scopes a request to one collection owner
const UserIDHeader = "X-User-ID"

// userScope stores the caller from X-User-ID, falling back to the default user
func userScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if id == "" {
			id = handlers.DefaultUserID
		}
		c.Set(handlers.UserIDKey, id)
		c.Next()
	}
}

// requestMetrics records request counts and latency per route template
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
