// Package server exposes the notification service over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eternisai/voice-server/internal/config"
	apierrors "github.com/eternisai/voice-server/internal/errors"
	"github.com/eternisai/voice-server/internal/logger"
	"github.com/eternisai/voice-server/internal/metrics"
	"github.com/eternisai/voice-server/internal/notify"
	"github.com/eternisai/voice-server/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// Options wires a Server. Metrics may be nil.
type Options struct {
	Config  *config.Config
	Service *notify.Service
	Limiter *ratelimit.Limiter
	Metrics *metrics.Metrics
	Logger  *logger.Logger
}

// Server owns the gin router and the underlying http.Server.
type Server struct {
	cfg     *config.Config
	service *notify.Service
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
	logger  *logger.Logger

	router     *gin.Engine
	httpServer *http.Server
}

func New(opts Options) *Server {
	s := &Server{
		cfg:     opts.Config,
		service: opts.Service,
		limiter: opts.Limiter,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if s.logger == nil {
		s.logger = logger.Discard()
	}

	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              s.cfg.Address(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.RequestLoggingMiddleware(s.logger))
	if s.metrics != nil {
		router.Use(s.metrics.Middleware())
	}
	router.Use(CORSMiddleware(s.cfg.CORSAllowedOrigins))
	router.Use(s.localhostOnly())

	// Scrapes are not counted against the notification budget.
	if s.metrics != nil && s.cfg.MetricsEnabled {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	limited := router.Group("/", s.rateLimit())
	{
		limited.GET("/health", s.handleHealth)
		limited.POST("/notify", s.handleNotify(s.cfg.DefaultTitle))
		limited.POST("/pai", s.handleNotify(s.cfg.AssistantName))
	}

	router.NoRoute(s.rateLimit(), func(c *gin.Context) {
		apierrors.AbortWithNotFound(c, "Not found", nil)
	})

	return router
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) ListenAndServe() error {
	requests, window := s.limiter.Limit()
	s.logger.Info("voice server listening",
		"address", s.httpServer.Addr,
		"voice_system", s.cfg.VoiceSystem(),
		"default_voice", s.service.DefaultVoice(),
		"rate_limit", fmt.Sprintf("%d per %s", requests, window),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight notifications.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
