package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/satriahrh/kyc-voice/adapters/jsonfile"
	"github.com/satriahrh/kyc-voice/adapters/llm"
	"github.com/satriahrh/kyc-voice/adapters/tts"
)

// AudioMode selects how the session speaks and listens
type AudioMode string

const (
	AudioModeConsole AudioMode = "console"
	AudioModeLocal   AudioMode = "local"
	AudioModeRemote  AudioMode = "remote"
)

// Config holds everything cmd/kyc-voice needs to wire a session
type Config struct {
	AudioMode      AudioMode
	OutputFile     string
	Language       string
	SampleRate     int
	ListenTimeout  time.Duration
	PhraseLimit    time.Duration
	MaxRetries     int
	RequireConsent bool

	NormalizeWithGemini bool
	GeminiAPIKey        string
	GeminiModel         string

	MongoURI      string
	MongoDatabase string

	Port         string
	JWTSecret    string
	DeviceID     string
	DeviceSecret string

	ElevenLabsAPIKey string

	LogLevel    string
	Development bool
}

// Load reads .env when present, then the environment
func Load() (*Config, error) {
	// A missing .env is fine; real deployments use the environment
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds a Config from environment variables only
func FromEnv() (*Config, error) {
	c := &Config{
		AudioMode:        AudioMode(strings.ToLower(os.Getenv("KYC_AUDIO_MODE"))),
		OutputFile:       getEnv("KYC_OUTPUT_FILE", jsonfile.DefaultPath),
		Language:         getEnv("KYC_LANGUAGE", "en-IN"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      os.Getenv("GEMINI_MODEL"),
		MongoURI:         os.Getenv("MONGODB_URI"),
		MongoDatabase:    os.Getenv("MONGODB_DATABASE"),
		Port:             getEnv("PORT", "8080"),
		JWTSecret:        os.Getenv("KYC_JWT_SECRET"),
		DeviceID:         getEnv("KYC_DEVICE_ID", "kyc-device-1"),
		DeviceSecret:     os.Getenv("KYC_DEVICE_SECRET"),
		ElevenLabsAPIKey: os.Getenv("ELEVEN_LABS_API_KEY"),
		LogLevel:         getEnv("KYC_LOG_LEVEL", "warn"),
		Development:      os.Getenv("KYC_ENV") == "development",
	}

	var err error
	if c.SampleRate, err = getInt("KYC_SAMPLE_RATE", 16000); err != nil {
		return nil, err
	}
	if c.MaxRetries, err = getInt("KYC_MAX_RETRIES", 2); err != nil {
		return nil, err
	}
	if c.ListenTimeout, err = getDuration("KYC_LISTEN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if c.PhraseLimit, err = getDuration("KYC_PHRASE_LIMIT", 10*time.Second); err != nil {
		return nil, err
	}
	if c.RequireConsent, err = getBool("KYC_REQUIRE_CONSENT", true); err != nil {
		return nil, err
	}
	if c.NormalizeWithGemini, err = getBool("KYC_NORMALIZE_WITH_GEMINI", false); err != nil {
		return nil, err
	}

	if c.AudioMode == "" {
		c.AudioMode = c.defaultAudioMode()
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// defaultAudioMode picks local speech when cloud credentials are present
func (c *Config) defaultAudioMode() AudioMode {
	if c.ElevenLabsAPIKey != "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
		return AudioModeLocal
	}
	return AudioModeConsole
}

// Validate rejects impossible combinations
func (c *Config) Validate() error {
	switch c.AudioMode {
	case AudioModeConsole, AudioModeLocal, AudioModeRemote:
	default:
		return fmt.Errorf("KYC_AUDIO_MODE must be console, local or remote, got %q", c.AudioMode)
	}

	if c.AudioMode != AudioModeConsole && c.ElevenLabsAPIKey == "" {
		return fmt.Errorf("ELEVEN_LABS_API_KEY is required for %s audio mode", c.AudioMode)
	}
	if c.AudioMode == AudioModeRemote {
		if len(c.JWTSecret) < 16 {
			return fmt.Errorf("KYC_JWT_SECRET of at least 16 bytes is required for remote audio mode")
		}
		if c.DeviceID == "" {
			return fmt.Errorf("KYC_DEVICE_ID is required for remote audio mode")
		}
	}
	if c.NormalizeWithGemini && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when KYC_NORMALIZE_WITH_GEMINI is set")
	}

	if c.OutputFile == "" {
		return fmt.Errorf("KYC_OUTPUT_FILE cannot be empty")
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("KYC_SAMPLE_RATE must be positive, got %d", c.SampleRate)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("KYC_MAX_RETRIES cannot be negative, got %d", c.MaxRetries)
	}
	if c.ListenTimeout <= 0 || c.PhraseLimit <= 0 {
		return fmt.Errorf("listen timeout and phrase limit must be positive")
	}
	return nil
}

// ElevenLabs reads the ELEVEN_LABS_* settings. The output format is always
// raw PCM at SampleRate since both the players and the device expect it.
func (c *Config) ElevenLabs() tts.ElevenLabsConfig {
	ec := tts.NewElevenLabsConfigFromEnv()
	ec.APIKey = c.ElevenLabsAPIKey
	ec.OutputFormat = fmt.Sprintf("pcm_%d", c.SampleRate)
	return ec
}

// Gemini reads the GEMINI_* settings
func (c *Config) Gemini() llm.GeminiConfig {
	gc := llm.NewGeminiConfigFromEnv()
	gc.APIKey = c.GeminiAPIKey
	gc.Model = c.GeminiModel
	return gc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

// getDuration accepts Go durations ("10s") or a bare number of seconds
func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
