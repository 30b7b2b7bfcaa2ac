package stt

import (
	"fmt"
	"time"

	. "github.com/roelfdiedericks/minutes/internal/logging"
)

// DefaultTimeout bounds a single transcription call.
const DefaultTimeout = 60 * time.Second

// Config holds STT configuration.
type Config struct {
	Provider       string           `json:"provider" toml:"provider" yaml:"provider"` // "google", "openai", "groq", "mock", "whispercpp"
	LanguageCode   string           `json:"languageCode" toml:"languageCode" yaml:"languageCode"`
	TimeoutSeconds int              `json:"timeoutSeconds" toml:"timeoutSeconds" yaml:"timeoutSeconds"`
	Google         GoogleConfig     `json:"google" toml:"google" yaml:"google"`
	OpenAI         OpenAIConfig     `json:"openai" toml:"openai" yaml:"openai"`
	Groq           GroqConfig       `json:"groq" toml:"groq" yaml:"groq"`
	Mock           MockConfig       `json:"mock" toml:"mock" yaml:"mock"`
	WhisperCpp     WhisperCppConfig `json:"whispercpp" toml:"whispercpp" yaml:"whispercpp"`
}

// GoogleConfig holds Google Cloud STT configuration.
// Exactly one credential source is used, in this order:
// CredentialsJSON, CredentialsFile, APIKey, $GOOGLE_APPLICATION_CREDENTIALS.
// An explicit API key wins over the environment variable.
type GoogleConfig struct {
	APIKey          string `json:"apiKey" toml:"apiKey" yaml:"apiKey"`
	CredentialsJSON string `json:"credentialsJSON" toml:"credentialsJSON" yaml:"credentialsJSON"` // Inline service-account JSON
	CredentialsFile string `json:"credentialsFile" toml:"credentialsFile" yaml:"credentialsFile"` // Path to service-account JSON
	Model           string `json:"model" toml:"model" yaml:"model"`                               // "default", "latest_long", ...
	SampleRateHertz int    `json:"sampleRateHertz" toml:"sampleRateHertz" yaml:"sampleRateHertz"` // Fallback when the audio header has none
	Endpoint        string `json:"endpoint,omitempty" toml:"endpoint" yaml:"endpoint"`
}

// OpenAIConfig holds configuration for an OpenAI-compatible transcription API.
type OpenAIConfig struct {
	APIKey  string `json:"apiKey" toml:"apiKey" yaml:"apiKey"`
	BaseURL string `json:"baseURL" toml:"baseURL" yaml:"baseURL"` // empty = api.openai.com
	Model   string `json:"model" toml:"model" yaml:"model"`       // "whisper-1"
}

// GroqConfig holds Groq Whisper configuration.
type GroqConfig struct {
	APIKey string `json:"apiKey" toml:"apiKey" yaml:"apiKey"`
	Model  string `json:"model" toml:"model" yaml:"model"` // "whisper-large-v3", "whisper-large-v3-turbo"
}

// MockConfig configures the offline placeholder provider.
type MockConfig struct {
	Text string `json:"text" toml:"text" yaml:"text"` // fixed transcript; empty = describe the audio
}

// WhisperCppConfig holds configuration for Whisper.cpp.
type WhisperCppConfig struct {
	ModelsDir string `json:"modelsDir" toml:"modelsDir" yaml:"modelsDir"` // Directory containing whisper models
	Model     string `json:"model" toml:"model" yaml:"model"`             // Model name (e.g., "ggml-base.bin")
	Threads   uint   `json:"threads" toml:"threads" yaml:"threads"`       // Number of threads (0 = auto)
}

// Timeout returns the configured per-call timeout.
func (c Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// New builds the provider selected by cfg.Provider.
// Returns (nil, nil) if no provider is configured.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "":
		L_debug("stt: no provider configured")
		return nil, nil
	case "google":
		return NewGoogleProvider(cfg.Google, cfg.LanguageCode, cfg.Timeout())
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI, cfg.LanguageCode, cfg.Timeout())
	case "groq":
		return NewGroqProvider(cfg.Groq, cfg.LanguageCode, cfg.Timeout())
	case "mock":
		return NewMockProvider(cfg.Mock), nil
	case "whispercpp":
		return NewWhisperCppProvider(cfg.WhisperCpp, cfg.LanguageCode)
	default:
		return nil, fmt.Errorf("stt: unknown provider: %s", cfg.Provider)
	}
}
