package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RateLimiter checks a counter behind key and reports whether the caller
// exceeded limit within duration.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, duration time.Duration) (bool, error)
}

// RateLimit returns a gin middleware limiting requests per client IP.
func RateLimit(limiter RateLimiter, maxRequests int, window time.Duration) gin.HandlerFunc {
	if limiter == nil {
		panic("RateLimiter cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		key := "ratelimit:" + c.ClientIP()

		exceeded, err := limiter.CheckRateLimit(c.Request.Context(), key, maxRequests, window)
		if err != nil {
			logrus.WithError(err).Error("RateLimit: counter check failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limiting error"})
			c.Abort()
			return
		}
		if exceeded {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}

		c.Next()
	}
}
