package middleware

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/observability"
	"messaging-service/internal/ratelimit"
)

// RateLimit gates message-creation requests through the sliding-window
// limiter. The client key is the authenticated user when present, otherwise
// the client IP.
func RateLimit(limiter *ratelimit.Limiter, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := clientKey(c)
		decision := limiter.Allow(key)

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			observability.IncRateLimited()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":               "rate limit exceeded",
				"retry_after_seconds": retryAfter,
			})
			return
		}

		c.Next()
	}
}

func clientKey(c *gin.Context) string {
	if userID := UserID(c); userID > 0 {
		return "user:" + strconv.FormatInt(userID, 10)
	}
	return "ip:" + c.ClientIP()
}
