// Package sanitize validates and cleans text that ends up as a subprocess argument or
// in a desktop notification.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength is the longest message accepted for speech or display.
const DefaultMaxLength = 500

// Reason classifies a validation failure.
type Reason string

const (
	ReasonInvalidType Reason = "invalid_type"
	ReasonTooLong     Reason = "too_long"
	ReasonEmpty       Reason = "empty"
)

// MaxVoiceLength bounds voice names and voice IDs.
const MaxVoiceLength = 64

var (
	// ErrInvalidType matches validation errors for missing or non-string input.
	ErrInvalidType = &ValidationError{Reason: ReasonInvalidType, Message: "Invalid input type"}
	// ErrTooLong matches validation errors for input over the length limit.
	ErrTooLong = &ValidationError{Reason: ReasonTooLong, Message: "Message too long"}
	// ErrEmpty matches input with nothing left after sanitization.
	ErrEmpty = &ValidationError{Reason: ReasonEmpty, Message: "Message has no speakable characters"}
)

// ValidationError describes why an input was rejected. Message is safe to return to clients.
type ValidationError struct {
	Reason  Reason
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is matches any ValidationError with the same Reason.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Reason == e.Reason
}

var (
	// disallowed is everything outside letters, digits, whitespace and . , ! ? - '
	disallowed = regexp.MustCompile(`[^a-zA-Z0-9\s.,!?\-']`)
	// voiceDisallowed also keeps parentheses and underscores, which appear in
	// names like "Samantha (Enhanced)" and model IDs, but no other whitespace than spaces.
	voiceDisallowed = regexp.MustCompile(`[^a-zA-Z0-9 .()_\-']`)
)

// Validate checks that input is a string of at most maxLen characters.
func Validate(input any, maxLen int) error {
	s, ok := input.(string)
	if !ok || s == "" {
		return &ValidationError{Reason: ReasonInvalidType, Message: ErrInvalidType.Message}
	}

	if utf8.RuneCountInString(s) > maxLen {
		return &ValidationError{
			Reason:  ReasonTooLong,
			Message: fmt.Sprintf("%s (max %d characters)", ErrTooLong.Message, maxLen),
		}
	}

	return nil
}

// Sanitize strips characters outside the allow-list, trims surrounding whitespace and
// truncates the result to maxLen characters.
func Sanitize(input string, maxLen int) string {
	cleaned := strings.TrimSpace(disallowed.ReplaceAllString(input, ""))
	// Only ASCII survives the allow-list, so byte and character lengths agree.
	if len(cleaned) > maxLen {
		cleaned = strings.TrimSpace(cleaned[:maxLen])
	}
	return cleaned
}

// Field validates then sanitizes a single named input.
func Field(name string, input any, maxLen int) (string, error) {
	if err := Validate(input, maxLen); err != nil {
		if ve, ok := err.(*ValidationError); ok {
			ve.Field = name
		}
		return "", err
	}
	return Sanitize(input.(string), maxLen), nil
}

// Voice cleans a voice name or voice ID for use as a subprocess argument or URL segment.
func Voice(input string) string {
	cleaned := strings.TrimSpace(voiceDisallowed.ReplaceAllString(input, ""))
	if len(cleaned) > MaxVoiceLength {
		cleaned = strings.TrimSpace(cleaned[:MaxVoiceLength])
	}
	return cleaned
}
