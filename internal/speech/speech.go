// Package speech turns sanitized notification text into audible speech.
package speech

import (
	"context"
	"fmt"

	"github.com/eternisai/voice-server/internal/command"
)

// Synthesizer speaks text with a voice. Errors are for logging; callers treat speech as best effort.
type Synthesizer interface {
	Speak(ctx context.Context, text, voice string) error
	// Name identifies the backend in logs and metrics.
	Name() string
	RequiresAPIKey() bool
}

// CommandSynthesizer speaks through a local TTS program that takes "-v <voice> -- <text>",
// such as macOS say or espeak.
type CommandSynthesizer struct {
	command string
	runner  command.Runner
}

// NewCommandSynthesizer creates a synthesizer invoking program through runner.
func NewCommandSynthesizer(program string, runner command.Runner) *CommandSynthesizer {
	return &CommandSynthesizer{command: program, runner: runner}
}

func (s *CommandSynthesizer) Speak(ctx context.Context, text, voice string) error {
	args := make([]string, 0, 4)
	if voice != "" {
		args = append(args, "-v", voice)
	}
	// The allow-list keeps '-', so text must never be parsed as an option.
	args = append(args, "--", text)

	if err := s.runner.Run(ctx, s.command, args...); err != nil {
		return fmt.Errorf("speak with voice %q: %w", voice, err)
	}
	return nil
}

func (s *CommandSynthesizer) Name() string {
	return s.command
}

func (s *CommandSynthesizer) RequiresAPIKey() bool {
	return false
}

// Silent is the synthesizer used when speech is turned off entirely.
type Silent struct{}

func (Silent) Speak(context.Context, string, string) error { return nil }
func (Silent) Name() string                                 { return "none" }
func (Silent) RequiresAPIKey() bool                         { return false }
