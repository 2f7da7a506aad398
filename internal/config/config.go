package config

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

const (
	SpeechBackendSay        = "say"
	SpeechBackendEspeak     = "espeak"
	SpeechBackendElevenLabs = "elevenlabs"
	SpeechBackendNone       = "none"

	NotifyBackendOSAScript  = "osascript"
	NotifyBackendNotifySend = "notify-send"
	NotifyBackendNone       = "none"
)

// Config is resolved once at startup and handed to every component that needs it.
type Config struct {
	Host    string
	Port    int
	GinMode string

	// Notifications
	DefaultTitle     string
	AssistantName    string
	MaxMessageLength int

	// Speech
	SpeechBackend     string
	SpeechCommand     string
	PlayerCommand     string
	DefaultVoice      string
	SpeechTimeout     time.Duration
	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsModelID string
	ElevenLabsBaseURL string

	// Desktop notifications
	NotifyBackend string
	NotifyTimeout time.Duration

	// Rate Limiting
	RateLimitRequests      int
	RateLimitWindow        time.Duration
	RateLimitSweepSchedule string

	// CORS
	CORSAllowedOrigins []string

	// Metrics
	MetricsEnabled bool

	// NATS event fan-out, disabled when NatsURL is empty.
	NatsURL     string
	NatsSubject string

	// Logging
	LogLevel  string
	LogFormat string

	// Server
	ServerShutdownTimeoutSeconds int

	// Voice aliases loaded from CONFIG_FILE.
	Voices map[string]string `yaml:"voices"`
}

// Address is the listen address of the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// VoiceSystem is the human readable name of the active speech backend, reported by /health.
func (c *Config) VoiceSystem() string {
	switch c.SpeechBackend {
	case SpeechBackendElevenLabs:
		return "ElevenLabs"
	case SpeechBackendSay:
		return "macOS Say"
	case SpeechBackendEspeak:
		return "eSpeak"
	case SpeechBackendNone:
		return "disabled"
	}
	return c.SpeechBackend
}

// SpeakingVoice is the voice used when a request names none. The ElevenLabs backend
// takes a voice ID, so its configured voice wins there.
func (c *Config) SpeakingVoice() string {
	if c.SpeechBackend == SpeechBackendElevenLabs && c.ElevenLabsVoiceID != "" {
		return c.ElevenLabsVoiceID
	}
	return c.DefaultVoice
}

// Validate reports configuration that would make the service unusable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("max message length must be positive, got %d", c.MaxMessageLength)
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("rate limit must have positive values, got %d per %s", c.RateLimitRequests, c.RateLimitWindow)
	}

	switch c.SpeechBackend {
	case SpeechBackendSay, SpeechBackendEspeak, SpeechBackendNone:
	case SpeechBackendElevenLabs:
		if c.ElevenLabsAPIKey == "" {
			return fmt.Errorf("speech backend %q requires ELEVENLABS_API_KEY", c.SpeechBackend)
		}
	default:
		return fmt.Errorf("unknown speech backend %q", c.SpeechBackend)
	}

	switch c.NotifyBackend {
	case NotifyBackendOSAScript, NotifyBackendNotifySend, NotifyBackendNone:
	default:
		return fmt.Errorf("unknown notify backend %q", c.NotifyBackend)
	}

	return nil
}

// LoadConfig reads the environment (and an optional .env and CONFIG_FILE) into a Config.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	elevenLabsKey := strings.TrimSpace(getEnvOrDefault("ELEVENLABS_API_KEY", ""))
	speechBackend := getEnvOrDefault("SPEECH_BACKEND", defaultSpeechBackend(elevenLabsKey))

	cfg := &Config{
		Host:    getEnvOrDefault("HOST", "127.0.0.1"),
		Port:    getEnvAsInt("PORT", 8888),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),

		// Notifications
		DefaultTitle:     getEnvOrDefault("DEFAULT_TITLE", "PAI Notification"),
		AssistantName:    getEnvOrDefault("ASSISTANT_NAME", "PAI Assistant"),
		MaxMessageLength: getEnvAsInt("MAX_MESSAGE_LENGTH", 500),

		// Speech
		SpeechBackend:     speechBackend,
		SpeechCommand:     getEnvOrDefault("SPEECH_COMMAND", defaultSpeechCommand(speechBackend)),
		PlayerCommand:     getEnvOrDefault("PLAYER_COMMAND", "afplay"),
		DefaultVoice:      getEnvOrDefault("DEFAULT_VOICE", defaultVoice(speechBackend)),
		SpeechTimeout:     getEnvAsDuration("SPEECH_TIMEOUT", 10*time.Second),
		ElevenLabsAPIKey:  elevenLabsKey,
		ElevenLabsVoiceID: getEnvOrDefault("ELEVENLABS_VOICE_ID", ""),
		ElevenLabsModelID: getEnvOrDefault("ELEVENLABS_MODEL_ID", "eleven_turbo_v2_5"),
		ElevenLabsBaseURL: getEnvOrDefault("ELEVENLABS_BASE_URL", "https://api.elevenlabs.io"),

		// Desktop notifications
		NotifyBackend: getEnvOrDefault("NOTIFY_BACKEND", defaultNotifyBackend()),
		NotifyTimeout: getEnvAsDuration("NOTIFY_TIMEOUT", 5*time.Second),

		// Rate Limiting
		RateLimitRequests:      getEnvAsInt("RATE_LIMIT_REQUESTS", 10),
		RateLimitWindow:        getEnvAsDuration("RATE_LIMIT_WINDOW", 60*time.Second),
		RateLimitSweepSchedule: getEnvOrDefault("RATE_LIMIT_SWEEP_SCHEDULE", "@every 5m"),

		// CORS
		CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost,http://localhost:*,http://127.0.0.1,http://127.0.0.1:*")),

		// Metrics
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),

		// NATS
		NatsURL:     getEnvOrDefault("NATS_URL", ""),
		NatsSubject: getEnvOrDefault("NATS_SUBJECT", "pai.notifications"),

		// Logging
		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),

		// Server
		ServerShutdownTimeoutSeconds: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 10),
	}

	// The config file only carries settings that have no environment form, like voice aliases.
	if configFilePath := getEnvOrDefault("CONFIG_FILE", ""); configFilePath != "" {
		log.Printf("Loading config file: %v", configFilePath)

		configFile, err := os.Open(configFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer configFile.Close()

		if err := LoadConfigFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.SpeechBackend == SpeechBackendElevenLabs && cfg.SpeakingVoice() == "" {
		log.Println("Warning: neither ELEVENLABS_VOICE_ID nor DEFAULT_VOICE is set, requests without a voice will not be spoken.")
	}

	return cfg, nil
}

// LoadConfigFile decodes YAML settings from reader on top of config.
func LoadConfigFile(reader io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(config); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	return nil
}

func defaultSpeechBackend(elevenLabsKey string) string {
	if elevenLabsKey != "" {
		return SpeechBackendElevenLabs
	}
	if runtime.GOOS == "darwin" {
		return SpeechBackendSay
	}
	return SpeechBackendEspeak
}

func defaultSpeechCommand(backend string) string {
	if backend == SpeechBackendEspeak {
		return "espeak"
	}
	return "say"
}

// defaultVoice is a voice the backend actually has. ElevenLabs takes voice IDs, so it has
// no usable default besides ELEVENLABS_VOICE_ID.
func defaultVoice(backend string) string {
	switch backend {
	case SpeechBackendSay:
		return "Samantha"
	case SpeechBackendEspeak:
		return "en"
	}
	return ""
}

func defaultNotifyBackend() string {
	if runtime.GOOS == "darwin" {
		return NotifyBackendOSAScript
	}
	return NotifyBackendNotifySend
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as bool, using default %t: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
