package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// MessageRequired is returned when a notification has no message.
const MessageRequired = "Message required"

// AbortWithBadRequest sends a 400 Bad Request response and aborts the request.
func AbortWithBadRequest(c *gin.Context, message string, details map[string]any) {
	c.AbortWithStatusJSON(http.StatusBadRequest, NewAPIError(message, details))
}
