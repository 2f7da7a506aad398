// Command notify posts a notification to a running voice server. Hook scripts call it
// when a task finishes.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/eternisai/voice-server/internal/client"
	"github.com/spf13/cobra"
)

// NotifyConfig holds the parsed command line.
type NotifyConfig struct {
	URL     string
	Timeout time.Duration
	Title   string
	Message string
	Voice   string
	NoVoice bool
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify [message]",
		Short: "Speak and display a notification through the voice server",
		Long: `Send a notification to the local voice server.

The message is taken from --message or, when that is empty, from the arguments.
The server speaks it (unless --no-voice is given) and shows a desktop notification.`,
		Example: `  notify "Build succeeded"
  notify --title "Tests" --message "All green" --voice Daniel
  notify --no-voice "Deploy finished"`,
		SilenceUsage: true,
		// Words after the flags are the message, not subcommand names.
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := notifyConfigFromFlags(cmd, args)
			if err != nil {
				return err
			}
			return runNotify(cmd, cfg)
		},
	}

	defaultURL := os.Getenv("VOICE_SERVER_URL")
	if defaultURL == "" {
		defaultURL = client.DefaultURL
	}

	cmd.PersistentFlags().String("url", defaultURL, "Voice server base URL (env VOICE_SERVER_URL)")
	cmd.PersistentFlags().Duration("timeout", 15*time.Second, "Request timeout")
	cmd.Flags().StringP("title", "t", "", "Notification title (server default when empty)")
	cmd.Flags().StringP("message", "m", "", "Message to speak and display")
	cmd.Flags().String("voice", "", "Voice name, alias or voice ID")
	cmd.Flags().Bool("no-voice", false, "Only show the desktop notification")

	cmd.AddCommand(newHealthCmd())

	return cmd
}

func newHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the voice server status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			url, _ := cmd.Flags().GetString("url")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			health, err := client.New(url, timeout).Health(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s on port %d, voice system %s, default voice %s\n",
				health.Status, health.Port, health.VoiceSystem, health.DefaultVoice)
			return nil
		},
	}
}

func notifyConfigFromFlags(cmd *cobra.Command, args []string) (*NotifyConfig, error) {
	cfg := &NotifyConfig{}
	cfg.URL, _ = cmd.Flags().GetString("url")
	cfg.Timeout, _ = cmd.Flags().GetDuration("timeout")
	cfg.Title, _ = cmd.Flags().GetString("title")
	cfg.Message, _ = cmd.Flags().GetString("message")
	cfg.Voice, _ = cmd.Flags().GetString("voice")
	cfg.NoVoice, _ = cmd.Flags().GetBool("no-voice")

	if cfg.Message == "" {
		cfg.Message = strings.TrimSpace(strings.Join(args, " "))
	} else if len(args) > 0 {
		return nil, fmt.Errorf("message given both as --message and as arguments")
	}
	if cfg.Message == "" {
		return nil, fmt.Errorf("a message is required")
	}

	return cfg, nil
}

func runNotify(cmd *cobra.Command, cfg *NotifyConfig) error {
	n := client.Notification{
		Title:   cfg.Title,
		Message: cfg.Message,
		Voice:   cfg.Voice,
	}
	if cfg.NoVoice {
		disabled := false
		n.VoiceEnabled = &disabled
	}

	resp, err := client.New(cfg.URL, cfg.Timeout).Notify(cmd.Context(), n)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
	return nil
}
