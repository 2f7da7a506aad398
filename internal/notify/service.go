// Package notify turns a validated notification request into speech, a desktop
// notification and an event.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/eternisai/voice-server/internal/desktop"
	"github.com/eternisai/voice-server/internal/events"
	"github.com/eternisai/voice-server/internal/logger"
	"github.com/eternisai/voice-server/internal/metrics"
	"github.com/eternisai/voice-server/internal/sanitize"
	"github.com/eternisai/voice-server/internal/speech"
)

// ErrMessageRequired is returned by Prepare when the message is missing or empty.
var ErrMessageRequired = errors.New("message required")

// RawRequest is a notification request as decoded from JSON, before any type checks.
type RawRequest struct {
	Title        any
	Message      any
	VoiceEnabled any
	Voice        any
}

// Request is a validated and sanitized notification.
type Request struct {
	Title        string
	Message      string
	VoiceEnabled bool
	// Voice is the caller's voice choice, empty for the configured default.
	Voice string
}

// Outcome reports what happened to each side effect. Errors in it are informational only.
type Outcome struct {
	Voice      string
	Spoken     bool
	SpeechErr  error
	DesktopErr error
	PublishErr error
}

// Options configures a Service.
type Options struct {
	DefaultTitle     string
	DefaultVoice     string
	MaxMessageLength int

	Synthesizer speech.Synthesizer
	Dispatcher  desktop.Dispatcher
	Publisher   events.Publisher
	Catalog     *speech.Catalog
	Metrics     *metrics.Metrics
	Logger      *logger.Logger
}

// Service runs the speak, display and publish steps for each notification.
type Service struct {
	defaultTitle string
	defaultVoice string
	maxLength    int

	synth     speech.Synthesizer
	dispatch  desktop.Dispatcher
	publisher events.Publisher
	catalog   *speech.Catalog
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewService(opts Options) *Service {
	s := &Service{
		defaultTitle: opts.DefaultTitle,
		defaultVoice: opts.DefaultVoice,
		maxLength:    opts.MaxMessageLength,
		synth:        opts.Synthesizer,
		dispatch:     opts.Dispatcher,
		publisher:    opts.Publisher,
		catalog:      opts.Catalog,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}

	if s.maxLength <= 0 {
		s.maxLength = sanitize.DefaultMaxLength
	}
	if s.synth == nil {
		s.synth = speech.Silent{}
	}
	if s.dispatch == nil {
		s.dispatch = desktop.Nop{}
	}
	if s.publisher == nil {
		s.publisher = events.Nop{}
	}
	if s.logger == nil {
		s.logger = logger.Discard()
	}

	return s
}

// Prepare validates and sanitizes raw. The title falls back to defaultTitle, or to the
// service default when defaultTitle is empty.
func (s *Service) Prepare(raw RawRequest, defaultTitle string) (Request, error) {
	if raw.Message == nil || raw.Message == "" {
		return Request{}, ErrMessageRequired
	}

	message, err := sanitize.Field("message", raw.Message, s.maxLength)
	if err != nil {
		return Request{}, err
	}
	if message == "" {
		return Request{}, &sanitize.ValidationError{
			Reason:  sanitize.ReasonEmpty,
			Field:   "message",
			Message: sanitize.ErrEmpty.Message,
		}
	}

	if defaultTitle == "" {
		defaultTitle = s.defaultTitle
	}
	title := defaultTitle
	if raw.Title != nil && raw.Title != "" {
		title, err = sanitize.Field("title", raw.Title, s.maxLength)
		if err != nil {
			return Request{}, err
		}
		if title == "" {
			title = defaultTitle
		}
	}

	var voice string
	switch v := raw.Voice.(type) {
	case nil:
	case string:
		voice = sanitize.Voice(v)
	default:
		return Request{}, &sanitize.ValidationError{
			Reason:  sanitize.ReasonInvalidType,
			Field:   "voice",
			Message: sanitize.ErrInvalidType.Message,
		}
	}

	// Only a literal false turns speech off.
	enabled, isBool := raw.VoiceEnabled.(bool)
	voiceEnabled := !isBool || enabled

	return Request{
		Title:        title,
		Message:      message,
		VoiceEnabled: voiceEnabled,
		Voice:        voice,
	}, nil
}

// ResolveVoice maps a requested voice through the catalog, falling back to the default.
func (s *Service) ResolveVoice(requested string) string {
	if requested == "" {
		return s.defaultVoice
	}
	if resolved := s.catalog.Resolve(requested); resolved != "" {
		return resolved
	}
	return s.defaultVoice
}

// Notify speaks the message when enabled, shows the desktop notification and publishes an
// event, in that order. Failures are logged and counted but never stop the later steps.
func (s *Service) Notify(ctx context.Context, req Request) Outcome {
	base := s.logger.WithComponent("notify")
	out := Outcome{}

	voiceLabel := "disabled"
	if req.VoiceEnabled {
		voiceLabel = "enabled"
		out.Voice = s.ResolveVoice(req.Voice)
		out.SpeechErr = base.Timed(ctx, "speak", func() error {
			return s.synth.Speak(ctx, req.Message, out.Voice)
		})
		if out.SpeechErr != nil {
			s.observe(func(m *metrics.Metrics) { m.SpeechFailures.WithLabelValues(s.synth.Name()).Inc() })
		} else {
			out.Spoken = true
		}
	}

	out.DesktopErr = s.dispatch.Notify(ctx, req.Title, req.Message)
	if out.DesktopErr != nil {
		base.LogError(ctx, out.DesktopErr, "desktop notification failed", "backend", s.dispatch.Name())
		s.observe(func(m *metrics.Metrics) { m.DesktopFailures.WithLabelValues(s.dispatch.Name()).Inc() })
	}

	event := events.NewEvent(req.Title, req.Message)
	event.RequestID = logger.RequestID(ctx)
	event.Voice = out.Voice
	event.VoiceEnabled = req.VoiceEnabled
	if out.SpeechErr != nil {
		event.SpeechError = out.SpeechErr.Error()
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		out.PublishErr = fmt.Errorf("failed to publish event %s: %w", event.ID, err)
		base.LogError(ctx, out.PublishErr, "event publish failed")
		s.observe(func(m *metrics.Metrics) { m.PublishFailures.Inc() })
	}

	s.observe(func(m *metrics.Metrics) { m.Notifications.WithLabelValues(voiceLabel).Inc() })

	base.WithContext(ctx).Info("notification delivered",
		"title", req.Title,
		"message_length", len(req.Message),
		"voice_enabled", req.VoiceEnabled,
		"voice", out.Voice,
		"spoken", out.Spoken,
		"displayed", out.DesktopErr == nil)

	return out
}

// SpeechBackend names the active speech backend.
func (s *Service) SpeechBackend() string {
	return s.synth.Name()
}

// DefaultVoice is the voice used when a request names none.
func (s *Service) DefaultVoice() string {
	return s.defaultVoice
}

// RequiresAPIKey reports whether the active speech backend needs credentials.
func (s *Service) RequiresAPIKey() bool {
	return s.synth.RequiresAPIKey()
}

func (s *Service) observe(fn func(*metrics.Metrics)) {
	if s.metrics != nil {
		fn(s.metrics)
	}
}
