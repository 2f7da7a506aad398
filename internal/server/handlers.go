package server

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/eternisai/voice-server/internal/errors"
	"github.com/eternisai/voice-server/internal/notify"
	"github.com/eternisai/voice-server/internal/sanitize"
	"github.com/gin-gonic/gin"
)

// notifyBody keeps every field untyped so wrong types surface as validation errors
// rather than JSON errors.
type notifyBody struct {
	Title        any `json:"title"`
	Message      any `json:"message"`
	VoiceEnabled any `json:"voice_enabled"`
	Voice        any `json:"voice"`
}

type healthResponse struct {
	Status         string `json:"status"`
	Port           int    `json:"port"`
	VoiceSystem    string `json:"voice_system"`
	DefaultVoice   string `json:"default_voice"`
	APIKeyRequired bool   `json:"api_key_required"`
}

type notifyResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, healthResponse{
		Status:         "healthy",
		Port:           s.cfg.Port,
		VoiceSystem:    s.cfg.VoiceSystem(),
		DefaultVoice:   s.service.DefaultVoice(),
		APIKeyRequired: s.service.RequiresAPIKey(),
	})
}

// handleNotify serves /notify and its aliases; defaultTitle is used when the body has none.
func (s *Server) handleNotify(defaultTitle string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body notifyBody
		if err := c.ShouldBindJSON(&body); err != nil {
			s.logger.LogError(c.Request.Context(), err, "failed to decode notification body")
			apierrors.AbortWithInternal(c, err.Error(), nil)
			return
		}

		req, err := s.service.Prepare(notify.RawRequest{
			Title:        body.Title,
			Message:      body.Message,
			VoiceEnabled: body.VoiceEnabled,
			Voice:        body.Voice,
		}, defaultTitle)
		if err != nil {
			s.reject("invalid")

			var ve *sanitize.ValidationError
			switch {
			case errors.Is(err, notify.ErrMessageRequired):
				apierrors.AbortWithBadRequest(c, apierrors.MessageRequired, nil)
			case errors.As(err, &ve):
				apierrors.AbortWithBadRequest(c, ve.Message, map[string]any{"field": ve.Field})
			default:
				apierrors.AbortWithInternal(c, err.Error(), nil)
			}
			return
		}

		// The caller often hangs up right away; speech should still finish.
		s.service.Notify(context.WithoutCancel(c.Request.Context()), req)

		c.JSON(http.StatusOK, notifyResponse{
			Status:  "success",
			Message: "Notification sent",
		})
	}
}
