// Package desktop shows OS-level notification banners.
package desktop

import (
	"context"
	"fmt"
	"strings"

	"github.com/eternisai/voice-server/internal/command"
)

// Dispatcher displays a transient notification. Failures are reported for logging only.
type Dispatcher interface {
	Notify(ctx context.Context, title, message string) error
	Name() string
}

// OSAScriptDispatcher uses AppleScript's "display notification" on macOS.
type OSAScriptDispatcher struct {
	runner command.Runner
}

func NewOSAScriptDispatcher(runner command.Runner) *OSAScriptDispatcher {
	return &OSAScriptDispatcher{runner: runner}
}

func (d *OSAScriptDispatcher) Notify(ctx context.Context, title, message string) error {
	script := fmt.Sprintf("display notification %s with title %s", appleScriptString(message), appleScriptString(title))
	if err := d.runner.Run(ctx, "osascript", "-e", script); err != nil {
		return fmt.Errorf("display notification: %w", err)
	}
	return nil
}

func (d *OSAScriptDispatcher) Name() string {
	return "osascript"
}

// appleScriptString quotes s as an AppleScript string literal.
func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// NotifySendDispatcher uses libnotify's notify-send on Linux desktops.
type NotifySendDispatcher struct {
	runner command.Runner
}

func NewNotifySendDispatcher(runner command.Runner) *NotifySendDispatcher {
	return &NotifySendDispatcher{runner: runner}
}

func (d *NotifySendDispatcher) Notify(ctx context.Context, title, message string) error {
	// "--" keeps a title starting with "-" from being read as a flag.
	if err := d.runner.Run(ctx, "notify-send", "--", title, message); err != nil {
		return fmt.Errorf("notify-send: %w", err)
	}
	return nil
}

func (d *NotifySendDispatcher) Name() string {
	return "notify-send"
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) error { return nil }
func (Nop) Name() string                                 { return "none" }
