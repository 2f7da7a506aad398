package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/eternisai/voice-server/internal/events"
	"github.com/eternisai/voice-server/internal/logger"
	"github.com/eternisai/voice-server/internal/metrics"
	"github.com/eternisai/voice-server/internal/sanitize"
	"github.com/eternisai/voice-server/internal/speech"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spoken struct {
	text  string
	voice string
}

type fakeSynth struct {
	mu    sync.Mutex
	calls []spoken
	err   error
}

func (f *fakeSynth) Speak(_ context.Context, text, voice string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, spoken{text: text, voice: voice})
	return f.err
}

func (f *fakeSynth) Name() string         { return "fake" }
func (f *fakeSynth) RequiresAPIKey() bool { return false }

type shown struct {
	title   string
	message string
}

type fakeDispatcher struct {
	mu    sync.Mutex
	calls []shown
	err   error
}

func (f *fakeDispatcher) Notify(_ context.Context, title, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, shown{title: title, message: message})
	return f.err
}

func (f *fakeDispatcher) Name() string { return "fake" }

type fakePublisher struct {
	events []events.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, event events.Event) error {
	f.events = append(f.events, event)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

type fixture struct {
	service   *Service
	synth     *fakeSynth
	dispatch  *fakeDispatcher
	publisher *fakePublisher
	metrics   *metrics.Metrics
}

func newFixture() *fixture {
	f := &fixture{
		synth:     &fakeSynth{},
		dispatch:  &fakeDispatcher{},
		publisher: &fakePublisher{},
		metrics:   metrics.New(),
	}
	f.service = NewService(Options{
		DefaultTitle:     "PAI Notification",
		DefaultVoice:     "Samantha",
		MaxMessageLength: 500,
		Synthesizer:      f.synth,
		Dispatcher:       f.dispatch,
		Publisher:        f.publisher,
		Catalog:          speech.NewCatalog(map[string]string{"kai": "Daniel"}),
		Metrics:          f.metrics,
		Logger:           logger.Discard(),
	})
	return f
}

func TestPrepare(t *testing.T) {
	tests := []struct {
		name       string
		raw        RawRequest
		title      string
		want       Request
		wantErr    error
		wantReason sanitize.Reason
	}{
		{
			name: "defaults",
			raw:  RawRequest{Message: "Build succeeded"},
			want: Request{Title: "PAI Notification", Message: "Build succeeded", VoiceEnabled: true},
		},
		{
			name:  "route default title",
			raw:   RawRequest{Message: "hi"},
			title: "PAI Assistant",
			want:  Request{Title: "PAI Assistant", Message: "hi", VoiceEnabled: true},
		},
		{
			name: "sanitizes title message and voice",
			raw:  RawRequest{Title: "Done `now`", Message: "Tests $(pass)!", Voice: "Kai; rm"},
			want: Request{Title: "Done now", Message: "Tests pass!", VoiceEnabled: true, Voice: "Kai rm"},
		},
		{
			name: "title with nothing left falls back",
			raw:  RawRequest{Title: "<<>>", Message: "hi"},
			want: Request{Title: "PAI Notification", Message: "hi", VoiceEnabled: true},
		},
		{
			name: "empty title falls back",
			raw:  RawRequest{Title: "", Message: "hi"},
			want: Request{Title: "PAI Notification", Message: "hi", VoiceEnabled: true},
		},
		{
			name: "voice disabled only by literal false",
			raw:  RawRequest{Message: "hi", VoiceEnabled: false},
			want: Request{Title: "PAI Notification", Message: "hi", VoiceEnabled: false},
		},
		{
			name: "string false keeps voice on",
			raw:  RawRequest{Message: "hi", VoiceEnabled: "false"},
			want: Request{Title: "PAI Notification", Message: "hi", VoiceEnabled: true},
		},
		{
			name: "zero keeps voice on",
			raw:  RawRequest{Message: "hi", VoiceEnabled: float64(0)},
			want: Request{Title: "PAI Notification", Message: "hi", VoiceEnabled: true},
		},
		{
			name:    "missing message",
			raw:     RawRequest{Title: "Done"},
			wantErr: ErrMessageRequired,
		},
		{
			name:       "message wrong type",
			raw:        RawRequest{Message: float64(42)},
			wantErr:    sanitize.ErrInvalidType,
			wantReason: sanitize.ReasonInvalidType,
		},
		{
			name:    "empty message",
			raw:     RawRequest{Message: ""},
			wantErr: ErrMessageRequired,
		},
		{
			name:       "message too long",
			raw:        RawRequest{Message: strings.Repeat("a", 501)},
			wantErr:    sanitize.ErrTooLong,
			wantReason: sanitize.ReasonTooLong,
		},
		{
			name:       "title too long",
			raw:        RawRequest{Title: strings.Repeat("t", 501), Message: "hi"},
			wantErr:    sanitize.ErrTooLong,
			wantReason: sanitize.ReasonTooLong,
		},
		{
			name:       "message with nothing speakable",
			raw:        RawRequest{Message: "✅🎉"},
			wantErr:    sanitize.ErrEmpty,
			wantReason: sanitize.ReasonEmpty,
		},
		{
			name:       "voice wrong type",
			raw:        RawRequest{Message: "hi", Voice: true},
			wantErr:    sanitize.ErrInvalidType,
			wantReason: sanitize.ReasonInvalidType,
		},
	}

	f := newFixture()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.service.Prepare(tt.raw, tt.title)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				if tt.wantReason != "" {
					var ve *sanitize.ValidationError
					require.True(t, errors.As(err, &ve))
					assert.Equal(t, tt.wantReason, ve.Reason)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNotifySpeaksAndDisplays(t *testing.T) {
	f := newFixture()
	ctx := logger.WithRequestID(context.Background(), "req-1")

	out := f.service.Notify(ctx, Request{Title: "Done", Message: "Build succeeded", VoiceEnabled: true})

	assert.True(t, out.Spoken)
	assert.Equal(t, "Samantha", out.Voice)
	assert.Equal(t, []spoken{{text: "Build succeeded", voice: "Samantha"}}, f.synth.calls)
	assert.Equal(t, []shown{{title: "Done", message: "Build succeeded"}}, f.dispatch.calls)

	require.Len(t, f.publisher.events, 1)
	event := f.publisher.events[0]
	assert.Equal(t, "req-1", event.RequestID)
	assert.Equal(t, "Samantha", event.Voice)
	assert.True(t, event.VoiceEnabled)
	assert.Empty(t, event.SpeechError)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Notifications.WithLabelValues("enabled")))
}

func TestNotifyVoiceDisabled(t *testing.T) {
	f := newFixture()

	out := f.service.Notify(context.Background(), Request{Title: "Done", Message: "hi"})

	assert.False(t, out.Spoken)
	assert.Empty(t, f.synth.calls)
	assert.Len(t, f.dispatch.calls, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Notifications.WithLabelValues("disabled")))
}

func TestNotifyResolvesVoiceAlias(t *testing.T) {
	f := newFixture()

	f.service.Notify(context.Background(), Request{Title: "t", Message: "hi", VoiceEnabled: true, Voice: "KAI"})
	f.service.Notify(context.Background(), Request{Title: "t", Message: "hi", VoiceEnabled: true, Voice: "Karen"})

	require.Len(t, f.synth.calls, 2)
	assert.Equal(t, "Daniel", f.synth.calls[0].voice)
	assert.Equal(t, "Karen", f.synth.calls[1].voice)
}

func TestNotifySpeechFailureStillDisplays(t *testing.T) {
	f := newFixture()
	f.synth.err = errors.New("voice not found")

	out := f.service.Notify(context.Background(), Request{Title: "Done", Message: "hi", VoiceEnabled: true, Voice: "Nobody"})

	assert.False(t, out.Spoken)
	assert.EqualError(t, out.SpeechErr, "voice not found")
	assert.Len(t, f.dispatch.calls, 1)
	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, "voice not found", f.publisher.events[0].SpeechError)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.SpeechFailures.WithLabelValues("fake")))
}

func TestNotifyDependencyFailuresAreContained(t *testing.T) {
	f := newFixture()
	f.synth.err = errors.New("say crashed")
	f.dispatch.err = errors.New("osascript crashed")
	f.publisher.err = errors.New("nats: connection closed")

	out := f.service.Notify(context.Background(), Request{Title: "Done", Message: "hi", VoiceEnabled: true})

	assert.Error(t, out.SpeechErr)
	assert.Error(t, out.DesktopErr)
	require.Error(t, out.PublishErr)
	assert.Contains(t, out.PublishErr.Error(), "connection closed")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.DesktopFailures.WithLabelValues("fake")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PublishFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Notifications.WithLabelValues("enabled")))
}

func TestNewServiceDefaults(t *testing.T) {
	s := NewService(Options{DefaultVoice: "Samantha"})

	out := s.Notify(context.Background(), Request{Title: "t", Message: "hi", VoiceEnabled: true})
	assert.True(t, out.Spoken)
	assert.Equal(t, "none", s.SpeechBackend())
	assert.Equal(t, "Samantha", s.DefaultVoice())
	assert.False(t, s.RequiresAPIKey())
}
