package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the voice relay service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Deepgram STT API configuration
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" required:"true"`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, enhanced, base
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"es"`  // Language code (en, es, fr, etc.)

	// Conversational agent endpoint
	AgentURL     string `envconfig:"AGENT_URL" required:"true"`
	AgentTimeout int    `envconfig:"AGENT_TIMEOUT" default:"30"` // seconds

	// Speech synthesis endpoint
	TTSURL     string `envconfig:"TTS_URL" required:"true"`
	TTSVoiceID string `envconfig:"TTS_VOICE_ID" default:"default"`

	// Audio processing configuration
	SourceSampleRate int `envconfig:"SOURCE_SAMPLE_RATE" default:"44100"` // Client microphone rate in Hz
	TargetSampleRate int `envconfig:"TARGET_SAMPLE_RATE" default:"16000"` // STT transport rate in Hz
	FrameMillis      int `envconfig:"FRAME_MILLIS" default:"20"`          // Frame duration handed to STT

	// Voice activity detection (drives automatic barge-in)
	VADEnabled         bool    `envconfig:"VAD_ENABLED" default:"true"`
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"` // RMS threshold for speech
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"15"`      // Frames of silence to mark speech end

	// Circuit breaker guarding the agent boundary
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// FrameBytes returns the size of one audio frame handed to the STT
// transport: 16-bit mono PCM at the target rate for FrameMillis.
func (c *Config) FrameBytes() int {
	return c.TargetSampleRate * 2 * c.FrameMillis / 1000
}

// Load reads configuration from environment variables.
// It first attempts to load from a .env file if one exists, then from
// the environment.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load a .env file (useful for containerized
// deployments).
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.DeepgramAPIKey == "" {
		return fmt.Errorf("DEEPGRAM_API_KEY is required")
	}
	if c.AgentURL == "" {
		return fmt.Errorf("AGENT_URL is required")
	}
	if c.TTSURL == "" {
		return fmt.Errorf("TTS_URL is required")
	}
	if c.SourceSampleRate <= 0 || c.TargetSampleRate <= 0 {
		return fmt.Errorf("sample rates must be positive (source=%d, target=%d)", c.SourceSampleRate, c.TargetSampleRate)
	}
	if c.FrameMillis <= 0 {
		return fmt.Errorf("FRAME_MILLIS must be positive, got %d", c.FrameMillis)
	}
	return nil
}
