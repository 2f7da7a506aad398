package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eternisai/voice-server/internal/command"
	"github.com/eternisai/voice-server/internal/config"
	"github.com/eternisai/voice-server/internal/desktop"
	"github.com/eternisai/voice-server/internal/events"
	"github.com/eternisai/voice-server/internal/logger"
	"github.com/eternisai/voice-server/internal/metrics"
	"github.com/eternisai/voice-server/internal/notify"
	"github.com/eternisai/voice-server/internal/ratelimit"
	"github.com/eternisai/voice-server/internal/server"
	"github.com/eternisai/voice-server/internal/speech"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logConfig := logger.FromConfig(cfg.LogLevel, cfg.LogFormat)
	appLogger := logger.New(logConfig)
	log := appLogger.WithComponent("main")

	log.Info("starting voice server",
		slog.String("log_level", cfg.LogLevel),
		slog.String("log_format", logConfig.Format),
		slog.String("speech_backend", cfg.SpeechBackend),
		slog.String("notify_backend", cfg.NotifyBackend))

	gin.SetMode(cfg.GinMode)

	m := metrics.New()

	synth := newSynthesizer(cfg, appLogger)
	dispatcher := newDispatcher(cfg)
	publisher := newPublisher(cfg, log)

	service := notify.NewService(notify.Options{
		DefaultTitle:     cfg.DefaultTitle,
		DefaultVoice:     cfg.SpeakingVoice(),
		MaxMessageLength: cfg.MaxMessageLength,
		Synthesizer:      synth,
		Dispatcher:       dispatcher,
		Publisher:        publisher,
		Catalog:          speech.NewCatalog(cfg.Voices),
		Metrics:          m,
		Logger:           appLogger,
	})

	limiter := ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitWindow)
	sweeper, err := ratelimit.NewSweeper(limiter, cfg.RateLimitSweepSchedule, appLogger, func(remaining int) {
		m.TrackedClients.Set(float64(remaining))
	})
	if err != nil {
		log.Error("failed to schedule rate limit sweeps", slog.String("error", err.Error()))
		os.Exit(1)
	}
	sweeper.Start()

	srv := server.New(server.Options{
		Config:  cfg,
		Service: service,
		Limiter: limiter,
		Metrics: m,
		Logger:  appLogger,
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			log.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	sweeper.Stop(ctx)

	if err := publisher.Close(); err != nil {
		log.Error("failed to close event publisher", slog.String("error", err.Error()))
	}

	log.Info("server exited")
}

func newSynthesizer(cfg *config.Config, appLogger *logger.Logger) speech.Synthesizer {
	runner := command.NewExecRunner(cfg.SpeechTimeout)

	switch cfg.SpeechBackend {
	case config.SpeechBackendElevenLabs:
		return speech.NewElevenLabsSynthesizer(speech.ElevenLabsConfig{
			APIKey:  cfg.ElevenLabsAPIKey,
			BaseURL: cfg.ElevenLabsBaseURL,
			ModelID: cfg.ElevenLabsModelID,
			Player:  cfg.PlayerCommand,
			Timeout: cfg.SpeechTimeout,
		}, runner, appLogger)
	case config.SpeechBackendSay, config.SpeechBackendEspeak:
		return speech.NewCommandSynthesizer(cfg.SpeechCommand, runner)
	}
	return speech.Silent{}
}

func newDispatcher(cfg *config.Config) desktop.Dispatcher {
	runner := command.NewExecRunner(cfg.NotifyTimeout)

	switch cfg.NotifyBackend {
	case config.NotifyBackendOSAScript:
		return desktop.NewOSAScriptDispatcher(runner)
	case config.NotifyBackendNotifySend:
		return desktop.NewNotifySendDispatcher(runner)
	}
	return desktop.Nop{}
}

// newPublisher connects to NATS when configured. A NATS outage at startup only disables events.
func newPublisher(cfg *config.Config, log *logger.Logger) events.Publisher {
	if cfg.NatsURL == "" {
		return events.Nop{}
	}

	nc, err := events.Connect(cfg.NatsURL, "voice-server-"+logger.GetInstanceID())
	if err != nil {
		log.Warn("notification events disabled", slog.String("error", err.Error()))
		return events.Nop{}
	}

	log.Info("publishing notification events",
		slog.String("nats_url", cfg.NatsURL),
		slog.String("subject", cfg.NatsSubject))
	return events.NewNATSPublisher(nc, cfg.NatsSubject)
}
