package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/eternisai/voice-server/internal/command"
	"github.com/eternisai/voice-server/internal/logger"
	"github.com/sony/gobreaker"
)

const (
	defaultElevenLabsBaseURL = "https://api.elevenlabs.io"
	maxAudioBytes            = 20 << 20
)

// ElevenLabsConfig configures the cloud speech backend.
type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	ModelID string
	// Player is the local program that plays the returned MP3, e.g. afplay.
	Player string
	// Timeout bounds a single API call.
	Timeout time.Duration
}

type elevenLabsRequest struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id,omitempty"`
	VoiceSettings elevenLabsSettings `json:"voice_settings"`
}

type elevenLabsSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// ElevenLabsSynthesizer fetches speech from the ElevenLabs API and plays it locally.
// API calls go through a circuit breaker so an outage is not hammered on every notification.
type ElevenLabsSynthesizer struct {
	config  ElevenLabsConfig
	client  *http.Client
	runner  command.Runner
	breaker *gobreaker.CircuitBreaker
	logger  *logger.Logger
}

// NewElevenLabsSynthesizer creates the cloud backend. The voice passed to Speak is an ElevenLabs voice ID.
func NewElevenLabsSynthesizer(cfg ElevenLabsConfig, runner command.Runner, log *logger.Logger) *ElevenLabsSynthesizer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultElevenLabsBaseURL
	}
	if cfg.Player == "" {
		cfg.Player = "afplay"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	log = log.WithComponent("elevenlabs")

	s := &ElevenLabsSynthesizer{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		runner: runner,
		logger: log,
	}

	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "elevenlabs",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return s
}

func (s *ElevenLabsSynthesizer) Name() string {
	return "elevenlabs"
}

func (s *ElevenLabsSynthesizer) RequiresAPIKey() bool {
	return true
}

// Speak synthesizes text with voiceID and waits for playback to finish.
func (s *ElevenLabsSynthesizer) Speak(ctx context.Context, text, voiceID string) error {
	if voiceID == "" {
		return errors.New("elevenlabs voice id is required")
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.synthesize(ctx, text, voiceID)
	})
	if err != nil {
		return fmt.Errorf("elevenlabs synthesis: %w", err)
	}

	return s.play(ctx, result.([]byte))
}

func (s *ElevenLabsSynthesizer) synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	payload, err := json.Marshal(elevenLabsRequest{
		Text:    text,
		ModelID: s.config.ModelID,
		VoiceSettings: elevenLabsSettings{
			Stability:       0.5,
			SimilarityBoost: 0.5,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := strings.TrimRight(s.config.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("empty audio response")
	}

	return audio, nil
}

func (s *ElevenLabsSynthesizer) play(ctx context.Context, audio []byte) error {
	f, err := os.CreateTemp("", "voice-*.mp3")
	if err != nil {
		return fmt.Errorf("failed to create audio file: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(audio); err != nil {
		f.Close()
		return fmt.Errorf("failed to write audio file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write audio file: %w", err)
	}

	if err := s.runner.Run(ctx, s.config.Player, path); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}
