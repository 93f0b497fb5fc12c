package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware returns a gin middleware that admits requests through the
// limiter, keyed by client IP and route pattern. Denied requests get a 429
// with a Retry-After header.
func (l *Limiter) Middleware(maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		d := l.Admit(c.Request.Context(), c.ClientIP(), endpoint, maxRequests, window)
		if !d.Allowed {
			c.Header("Retry-After", strconv.Itoa(d.RetryAfterSeconds()))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests. Please slow down.",
				"retry_after": d.RetryAfterSeconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
