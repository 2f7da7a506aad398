// Package logger provides the structured logger shared by the server, the notification
// pipeline and the HTTP middleware.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
)

// instanceID tells apart log lines of concurrently running server processes.
var instanceID = resolveInstanceID()

func resolveInstanceID() string {
	for _, key := range []string{"INSTANCE_ID", "HOSTNAME"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	return uuid.NewString()[:8]
}

// GetInstanceID returns the instance ID stamped on every record.
func GetInstanceID() string {
	return instanceID
}

// Config selects the level, the format ("text" or "json") and the destination.
type Config struct {
	Level  slog.Level
	Format string
	// Output defaults to os.Stdout.
	Output io.Writer
}

type contextKey string

const (
	// ContextKeyRequestID carries the X-Request-ID of the HTTP request being served.
	ContextKeyRequestID contextKey = "request_id"
	// ContextKeyClientID carries the rate limit key of the caller.
	ContextKeyClientID contextKey = "client_id"
)

// Logger wraps slog.Logger.
type Logger struct {
	*slog.Logger
}

// New builds a logger: tint for humans, JSON for log shippers.
func New(config Config) *Logger {
	out := config.Output
	if out == nil {
		out = os.Stdout
	}

	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       config.Level,
			AddSource:   true,
			ReplaceAttr: rfc3339Time,
		})
	} else {
		handler = tint.NewHandler(out, &tint.Options{
			Level:      config.Level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
	}

	return &Logger{Logger: slog.New(handler).With(slog.String("instance_id", instanceID))}
}

func rfc3339Time(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.String(a.Key, a.Value.Time().Format(time.RFC3339))
	}
	return a
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// FromConfig maps LOG_LEVEL and LOG_FORMAT to a Config. Unknown levels fall back to
// info; APP_ENV=production forces JSON.
func FromConfig(logLevel, logFormat string) Config {
	level := slog.LevelInfo
	if logLevel != "" {
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			level = slog.LevelInfo
		}
	}

	format := "text"
	if logFormat != "" {
		format = logFormat
	}
	if os.Getenv("APP_ENV") == "production" {
		format = "json"
	}

	return Config{Level: level, Format: format}
}

// WithContext adds the request and client IDs found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var attrs []any
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok && requestID != "" {
		attrs = append(attrs, slog.String("request_id", requestID))
	}
	if clientID, ok := ctx.Value(ContextKeyClientID).(string); ok && clientID != "" {
		attrs = append(attrs, slog.String("client_id", clientID))
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{Logger: l.With(attrs...)}
}

// WithComponent tags records with the part of the pipeline that wrote them.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.With(slog.String("component", component))}
}

// LogError logs err at error level with the context IDs attached.
func (l *Logger) LogError(ctx context.Context, err error, msg string, args ...any) {
	l.WithContext(ctx).Error(msg, append([]any{slog.String("error", err.Error())}, args...)...)
}

// Timed runs one pipeline step and logs how long it took. A failing step is logged at
// warn level and its error returned unchanged.
func (l *Logger) Timed(ctx context.Context, step string, fn func() error) error {
	log := l.WithContext(ctx).With(slog.String("step", step))

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	if err != nil {
		log.Warn("step failed", slog.Duration("elapsed", elapsed), slog.String("error", err.Error()))
		return err
	}
	log.Debug("step finished", slog.Duration("elapsed", elapsed))
	return nil
}
