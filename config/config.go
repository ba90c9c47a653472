package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted by the *_PROVIDER variables
const (
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderDeepgram   = "deepgram"
	ProviderElevenLabs = "elevenlabs"
	ProviderCommand    = "command"
	ProviderHTTP       = "http"
)

// Config holds all server configuration
type Config struct {
	Host            string
	Port            int
	LogLevel        string
	AllowedOrigins  []string
	MaxSessions     int
	SessionTimeout  time.Duration
	RedisURL        string
	RedisPassword   string
	MaxAudioBytes   int64 // Largest binary frame accepted from a client
	RateLimitPerMin int   // WebSocket upgrades per client IP per minute
	RateLimitBurst  int
	HistoryLimit    int // Conversation messages kept per session
	OutputDir       string
	WebDir          string
	TraceStdout     bool

	STTProvider    string
	LLMProvider    string
	TTSProvider    string
	AvatarProvider string

	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
	Deepgram   DeepgramConfig
	ElevenLabs ElevenLabsConfig
	Avatar     AvatarConfig
}

// OpenAIConfig covers Whisper, chat completions and speech
type OpenAIConfig struct {
	APIKey       string
	Model        string
	WhisperModel string
	MaxTokens    int
	TTSModel     string
	TTSVoice     string
}

// GeminiConfig configures the genai language model
type GeminiConfig struct {
	APIKey string
	Model  string
}

// DeepgramConfig configures Deepgram listen and speak
type DeepgramConfig struct {
	APIKey   string
	STTModel string
	TTSModel string
}

// ElevenLabsConfig configures ElevenLabs speech
type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	ModelID string
}

// AvatarConfig is handed to the external avatar generator
type AvatarConfig struct {
	Command       string // Executable (plus leading args) for the command provider
	URL           string // Endpoint for the http provider
	CheckpointDir string
	LoRAPath      string
	Size          string
	InferFrames   int
	SampleSteps   int
	EnableFP8     bool
	EnableCompile bool
	Prompt        string
	Image         string
}

// LoadConfig loads configuration from environment variables with defaults
func LoadConfig() (*Config, error) {
	// Load .env file if it exists (doesn't error if missing)
	_ = godotenv.Load()

	config := &Config{
		Host:            "0.0.0.0",
		Port:            8000,
		LogLevel:        "info",
		AllowedOrigins:  []string{"*"},
		MaxSessions:     100,
		SessionTimeout:  30 * time.Minute,
		RedisURL:        "localhost:6379",
		MaxAudioBytes:   10 * 1024 * 1024, // 10MB default
		RateLimitPerMin: 60,
		RateLimitBurst:  10,
		HistoryLimit:    10,
		OutputDir:       "output/interactive",
		WebDir:          "web_interface",
		STTProvider:     ProviderOpenAI,
		LLMProvider:     ProviderOpenAI,
		TTSProvider:     ProviderOpenAI,
		AvatarProvider:  ProviderCommand,
		OpenAI: OpenAIConfig{
			Model:        "gpt-3.5-turbo",
			WhisperModel: "whisper-1",
			MaxTokens:    150,
			TTSModel:     "tts-1",
			TTSVoice:     "alloy",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		Deepgram: DeepgramConfig{
			STTModel: "nova-3",
			TTSModel: "aura-2-thalia-en",
		},
		ElevenLabs: ElevenLabsConfig{
			VoiceID: "21m00Tcm4TlvDq8ikWAM",
			ModelID: "eleven_turbo_v2_5",
		},
		Avatar: AvatarConfig{
			CheckpointDir: "ckpt/Wan2.2-S2V-14B/",
			LoRAPath:      "Quark-Vision/Live-Avatar",
			Size:          "704*384",
			InferFrames:   32,
			SampleSteps:   2,
			EnableCompile: true,
			Prompt:        "A person speaking naturally",
			Image:         "examples/man.png",
		},
	}

	if err := config.loadServer(); err != nil {
		return nil, err
	}
	if err := config.loadProviders(); err != nil {
		return nil, err
	}
	if err := config.loadAvatar(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) loadServer() error {
	var err error

	setString(&c.Host, "HOST")
	if err = setInt(&c.Port, "PORT"); err != nil {
		return err
	}
	setString(&c.LogLevel, "LOG_LEVEL")

	// Optional: ALLOWED_ORIGINS (comma-separated)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}

	if err = setInt(&c.MaxSessions, "MAX_SESSIONS"); err != nil {
		return err
	}

	// Optional: SESSION_TIMEOUT (in minutes)
	if timeout := os.Getenv("SESSION_TIMEOUT"); timeout != "" {
		t, err := strconv.Atoi(timeout)
		if err != nil {
			return fmt.Errorf("invalid SESSION_TIMEOUT: %w", err)
		}
		c.SessionTimeout = time.Duration(t) * time.Minute
	}

	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.RedisPassword, "REDIS_PASSWORD")

	if v := os.Getenv("MAX_AUDIO_BYTES"); v != "" {
		b, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MAX_AUDIO_BYTES: %w", err)
		}
		c.MaxAudioBytes = b
	}

	if err = setInt(&c.RateLimitPerMin, "RATE_LIMIT_PER_MIN"); err != nil {
		return err
	}
	if err = setInt(&c.RateLimitBurst, "RATE_LIMIT_BURST"); err != nil {
		return err
	}
	if err = setInt(&c.HistoryLimit, "HISTORY_LIMIT"); err != nil {
		return err
	}
	setString(&c.OutputDir, "OUTPUT_DIR")
	setString(&c.WebDir, "WEB_DIR")
	return setBool(&c.TraceStdout, "TRACE_STDOUT")
}

func (c *Config) loadProviders() error {
	setString(&c.STTProvider, "STT_PROVIDER")
	setString(&c.LLMProvider, "LLM_PROVIDER")
	setString(&c.TTSProvider, "TTS_PROVIDER")
	setString(&c.AvatarProvider, "AVATAR_PROVIDER")

	setString(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.OpenAI.Model, "OPENAI_MODEL")
	setString(&c.OpenAI.WhisperModel, "OPENAI_WHISPER_MODEL")
	if err := setInt(&c.OpenAI.MaxTokens, "OPENAI_MAX_TOKENS"); err != nil {
		return err
	}
	setString(&c.OpenAI.TTSModel, "OPENAI_TTS_MODEL")
	setString(&c.OpenAI.TTSVoice, "OPENAI_TTS_VOICE")

	setString(&c.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Gemini.Model, "GEMINI_MODEL")

	setString(&c.Deepgram.APIKey, "DEEPGRAM_API_KEY")
	setString(&c.Deepgram.STTModel, "DEEPGRAM_STT_MODEL")
	setString(&c.Deepgram.TTSModel, "DEEPGRAM_TTS_MODEL")

	setString(&c.ElevenLabs.APIKey, "ELEVENLABS_API_KEY")
	setString(&c.ElevenLabs.VoiceID, "ELEVENLABS_VOICE_ID")
	setString(&c.ElevenLabs.ModelID, "ELEVENLABS_MODEL_ID")
	return nil
}

func (c *Config) loadAvatar() error {
	a := &c.Avatar
	setString(&a.Command, "AVATAR_COMMAND")
	setString(&a.URL, "AVATAR_URL")
	setString(&a.CheckpointDir, "LIVEAVATAR_CKPT_DIR")
	setString(&a.LoRAPath, "LIVEAVATAR_LORA_PATH")
	setString(&a.Size, "LIVEAVATAR_SIZE")
	if err := setInt(&a.InferFrames, "LIVEAVATAR_INFER_FRAMES"); err != nil {
		return err
	}
	if err := setInt(&a.SampleSteps, "LIVEAVATAR_SAMPLE_STEPS"); err != nil {
		return err
	}
	if err := setBool(&a.EnableFP8, "ENABLE_FP8"); err != nil {
		return err
	}
	if err := setBool(&a.EnableCompile, "ENABLE_COMPILE"); err != nil {
		return err
	}
	setString(&a.Prompt, "DEFAULT_AVATAR_PROMPT")
	setString(&a.Image, "DEFAULT_AVATAR_IMAGE")
	return nil
}

// Validate checks that every selected provider is known and has credentials.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("invalid MAX_SESSIONS: must be positive")
	}
	if c.HistoryLimit < 0 {
		return fmt.Errorf("invalid HISTORY_LIMIT: must not be negative")
	}

	switch c.STTProvider {
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable is required for STT_PROVIDER=openai")
		}
	case ProviderDeepgram:
		if c.Deepgram.APIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY environment variable is required for STT_PROVIDER=deepgram")
		}
	default:
		return fmt.Errorf("invalid STT_PROVIDER: must be 'openai' or 'deepgram'")
	}

	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable is required for LLM_PROVIDER=openai")
		}
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY environment variable is required for LLM_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("invalid LLM_PROVIDER: must be 'openai' or 'gemini'")
	}

	switch c.TTSProvider {
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable is required for TTS_PROVIDER=openai")
		}
	case ProviderElevenLabs:
		if c.ElevenLabs.APIKey == "" {
			return fmt.Errorf("ELEVENLABS_API_KEY environment variable is required for TTS_PROVIDER=elevenlabs")
		}
	case ProviderDeepgram:
		if c.Deepgram.APIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY environment variable is required for TTS_PROVIDER=deepgram")
		}
	default:
		return fmt.Errorf("invalid TTS_PROVIDER: must be 'openai', 'elevenlabs' or 'deepgram'")
	}

	switch c.AvatarProvider {
	case ProviderCommand:
		if c.Avatar.Command == "" {
			return fmt.Errorf("AVATAR_COMMAND environment variable is required for AVATAR_PROVIDER=command")
		}
	case ProviderHTTP:
		if c.Avatar.URL == "" {
			return fmt.Errorf("AVATAR_URL environment variable is required for AVATAR_PROVIDER=http")
		}
	default:
		return fmt.Errorf("invalid AVATAR_PROVIDER: must be 'command' or 'http'")
	}

	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}
