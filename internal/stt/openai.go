package stt

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	. "github.com/roelfdiedericks/minutes/internal/logging"
	"github.com/sashabaranov/go-openai"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

// OpenAIProvider implements STT against any OpenAI-compatible
// /audio/transcriptions endpoint (OpenAI itself, Groq, self-hosted gateways).
type OpenAIProvider struct {
	name     string
	model    string
	language string
	client   *openai.Client
}

// NewOpenAIProvider creates a new OpenAI Whisper STT provider.
func NewOpenAIProvider(cfg OpenAIConfig, languageCode string, timeout time.Duration) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key not configured")
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return newOpenAICompatible("openai", cfg.APIKey, cfg.BaseURL, model, languageCode, timeout), nil
}

// NewGroqProvider creates a new Groq Whisper STT provider.
// Groq speaks the OpenAI protocol under a different base URL.
func NewGroqProvider(cfg GroqConfig, languageCode string, timeout time.Duration) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq API key not configured")
	}

	model := cfg.Model
	if model == "" {
		model = "whisper-large-v3"
	}

	return newOpenAICompatible("groq", cfg.APIKey, groqBaseURL, model, languageCode, timeout), nil
}

func newOpenAICompatible(name, apiKey, baseURL, model, languageCode string, timeout time.Duration) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	lang := languageCode
	if lang == "" {
		lang = DefaultLanguageCode
	}

	L_info("stt: "+name+" provider initialized", "model", model, "baseURL", clientCfg.BaseURL)

	return &OpenAIProvider{
		name:     name,
		model:    model,
		language: lang,
		client:   openai.NewClientWithConfig(clientCfg),
	}
}

// Transcribe uploads the audio as a multipart file and returns the text.
// Whisper accepts OGG/Opus directly - no conversion needed.
func (o *OpenAIProvider) Transcribe(ctx context.Context, req Request) (string, error) {
	if len(req.Audio) == 0 {
		return "", ErrEmptyAudio
	}
	req = req.resolve(o.language)

	L_debug("stt: sending to "+o.name, "model", o.model, "encoding", req.Encoding, "bytes", len(req.Audio))

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: req.Encoding.Filename(), // used as the multipart filename
		Reader:   bytes.NewReader(req.Audio),
		Language: baseLanguage(req.LanguageCode),
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		L_error("stt: "+o.name+" request failed", "error", err)
		return "", fmt.Errorf("%s API error: %w", o.name, err)
	}

	transcript := JoinTranscripts([]string{resp.Text})
	L_debug("stt: "+o.name+" transcription complete", "length", len(transcript))
	return transcript, nil
}

// Name returns the provider name.
func (o *OpenAIProvider) Name() string {
	return o.name
}

// Close releases any resources (none for HTTP client).
func (o *OpenAIProvider) Close() error {
	return nil
}
