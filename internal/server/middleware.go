package server

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	apierrors "github.com/eternisai/voice-server/internal/errors"
	"github.com/eternisai/voice-server/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

// localClientID keys rate limiting for requests that carry no forwarded address.
const localClientID = "localhost"

// CORSMiddleware adds CORS headers for the allowed origins and answers every OPTIONS
// request with 204 and no body.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", logger.RequestIDHeader},
		ExposedHeaders: []string{logger.RequestIDHeader, "Retry-After"},
		MaxAge:         600,
	})

	return func(ctx *gin.Context) {
		c.HandlerFunc(ctx.Writer, ctx.Request)

		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusNoContent)
			return
		}

		ctx.Next()
	}
}

func (s *Server) localhostOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := clientAddress(c.Request)
		if isLocal(addr) {
			c.Next()
			return
		}

		s.logger.WithContext(c.Request.Context()).WithComponent("http").Warn("rejected non-local request",
			"client_address", addr,
			"path", c.Request.URL.Path)
		s.reject("forbidden")
		apierrors.AbortWithForbidden(c)
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := clientID(c.Request)
		decision := s.limiter.Check(id)
		if decision.Allowed {
			c.Request = c.Request.WithContext(logger.WithClientID(c.Request.Context(), id))
			c.Next()
			return
		}

		s.logger.WithContext(c.Request.Context()).WithComponent("http").Warn("rate limit exceeded",
			"client_id", id,
			"count", decision.Count,
			"reset_at", decision.ResetAt)
		s.reject("rate_limited")
		apierrors.AbortWithRateLimit(c, decision.RetryAfter(time.Now()))
	}
}

func (s *Server) reject(reason string) {
	if s.metrics != nil {
		s.metrics.Rejections.WithLabelValues(reason).Inc()
	}
}

// firstForwarded returns the first X-Forwarded-For entry, the originating client.
func firstForwarded(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded == "" {
		return ""
	}
	first, _, _ := strings.Cut(forwarded, ",")
	return strings.TrimSpace(first)
}

// clientAddress resolves where a request came from. Forwarding headers are only believed
// when the socket peer is itself local, i.e. a proxy on this machine; then the first
// X-Forwarded-For entry wins, then X-Real-IP.
func clientAddress(r *http.Request) string {
	peer := peerAddress(r)
	if !isLocal(peer) {
		return peer
	}

	if forwarded := firstForwarded(r); forwarded != "" {
		return forwarded
	}

	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	return peer
}

func peerAddress(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// clientID is the rate limit key: the forwarded address, or one shared key for direct
// local callers.
func clientID(r *http.Request) string {
	if forwarded := firstForwarded(r); forwarded != "" {
		return forwarded
	}
	return localClientID
}

func isLocal(addr string) bool {
	if strings.EqualFold(addr, "localhost") {
		return true
	}

	ip, err := netip.ParseAddr(strings.Trim(addr, "[]"))
	if err != nil {
		return false
	}
	return ip.Unmap().IsLoopback()
}
