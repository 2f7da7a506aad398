package errors

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitMessage is the plain-text body of 429 responses.
const RateLimitMessage = "Rate limit exceeded"

// AbortWithRateLimit sends a plain-text 429 and aborts the request.
// retryAfter is rounded up to whole seconds for the Retry-After header; zero omits it.
func AbortWithRateLimit(c *gin.Context, retryAfter time.Duration) {
	if retryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
	}
	c.Abort()
	c.String(http.StatusTooManyRequests, RateLimitMessage)
}
