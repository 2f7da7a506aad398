package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ForbiddenMessage is the plain-text body of 403 responses.
const ForbiddenMessage = "Forbidden"

// AbortWithForbidden rejects a request from a non-local origin with a plain-text 403.
func AbortWithForbidden(c *gin.Context) {
	c.Abort()
	c.String(http.StatusForbidden, ForbiddenMessage)
}
