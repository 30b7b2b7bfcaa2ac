package stt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/pion/opus/pkg/oggreader"
	. "github.com/roelfdiedericks/minutes/internal/logging"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleRecognizeURL = "https://speech.googleapis.com/v1/speech:recognize"
	googleScope        = "https://www.googleapis.com/auth/cloud-platform"
	googleCredsEnv     = "GOOGLE_APPLICATION_CREDENTIALS"
	defaultOggRate     = 48000
)

// GoogleProvider implements STT using Google Cloud Speech-to-Text API.
type GoogleProvider struct {
	config   GoogleConfig
	language string
	endpoint string
	auth     string // "apiKey" or "serviceAccount", for logs
	client   *http.Client
}

// NewGoogleProvider creates a new Google Cloud STT provider.
// Credential material is only parsed here, never stored outside the HTTP client.
func NewGoogleProvider(cfg GoogleConfig, languageCode string, timeout time.Duration) (*GoogleProvider, error) {
	lang := languageCode
	if lang == "" {
		lang = DefaultLanguageCode
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = googleRecognizeURL
	}

	g := &GoogleProvider{
		config:   GoogleConfig{Model: cfg.Model, SampleRateHertz: cfg.SampleRateHertz},
		language: lang,
		endpoint: endpoint,
	}

	credsJSON, source, err := googleCredentials(cfg)
	if err != nil {
		return nil, err
	}

	switch {
	case credsJSON != nil:
		creds, err := google.CredentialsFromJSON(context.Background(), credsJSON, googleScope)
		if err != nil {
			return nil, fmt.Errorf("google credentials (%s): %w", source, err)
		}
		g.client = oauth2.NewClient(context.Background(), creds.TokenSource)
		g.auth = "serviceAccount"
	case cfg.APIKey != "":
		g.client = &http.Client{}
		g.config.APIKey = cfg.APIKey
		g.auth = "apiKey"
	default:
		return nil, fmt.Errorf("google credentials not configured (set apiKey, credentialsJSON, credentialsFile or $%s)", googleCredsEnv)
	}
	g.client.Timeout = timeout

	L_info("stt: google provider initialized", "language", lang, "auth", g.auth, "source", source)
	return g, nil
}

// googleCredentials resolves service-account JSON from config or environment.
// Returns nil bytes when only an API key (or nothing) is available.
func googleCredentials(cfg GoogleConfig) ([]byte, string, error) {
	if cfg.CredentialsJSON != "" {
		return []byte(cfg.CredentialsJSON), "inline", nil
	}

	path, source := cfg.CredentialsFile, "file"
	if path == "" && cfg.APIKey == "" {
		path, source = os.Getenv(googleCredsEnv), "env"
	}
	if path == "" {
		return nil, "apiKey", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, source, fmt.Errorf("read google credentials file: %w", err)
	}
	return data, source, nil
}

// oggSampleRate reads the sample rate from an OGG/Opus header.
// Returns 0 if it cannot be determined.
func oggSampleRate(audio []byte) int {
	_, header, err := oggreader.NewWith(bytes.NewReader(audio))
	if err != nil {
		return 0
	}
	return int(header.SampleRate)
}

// sampleRateFor picks the rate to declare for the request.
// OGG headers win over the declared rate; the declared rate is a fallback.
func (g *GoogleProvider) sampleRateFor(req Request) int {
	declared := req.SampleRate
	if declared == 0 {
		declared = g.config.SampleRateHertz
	}

	switch req.Encoding {
	case EncodingOggOpus:
		if rate := oggSampleRate(req.Audio); rate > 0 {
			if declared > 0 && declared != rate {
				L_warn("stt: declared sample rate differs from audio header, using header", "declared", declared, "header", rate)
			}
			return rate
		}
		if declared > 0 {
			return declared
		}
		return defaultOggRate
	case EncodingLinear16, EncodingAMR:
		return declared
	default:
		// Let Google detect for MP3/FLAC/WEBM
		return req.SampleRate
	}
}

type googleRecognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

// Transcribe sends the audio to Google Cloud Speech-to-Text.
// Google accepts OGG_OPUS directly - no conversion needed.
func (g *GoogleProvider) Transcribe(ctx context.Context, req Request) (string, error) {
	if len(req.Audio) == 0 {
		return "", ErrEmptyAudio
	}
	req = req.resolve(g.language)

	model := g.config.Model
	if model == "" {
		model = "default"
	}

	config := map[string]interface{}{
		"languageCode":               req.LanguageCode,
		"model":                      model,
		"enableAutomaticPunctuation": true,
	}
	if req.Encoding != EncodingUnspecified {
		config["encoding"] = string(req.Encoding)
	}
	if rate := g.sampleRateFor(req); rate > 0 {
		config["sampleRateHertz"] = rate
	}

	reqBody := map[string]interface{}{
		"config": config,
		"audio": map[string]interface{}{
			"content": base64.StdEncoding.EncodeToString(req.Audio),
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := g.endpoint
	if g.config.APIKey != "" {
		endpoint += "?key=" + url.QueryEscape(g.config.APIKey)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	L_debug("stt: sending to google", "encoding", req.Encoding, "language", req.LanguageCode, "bytes", len(req.Audio))

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		L_error("stt: google request failed", "status", resp.StatusCode, "body", string(body))

		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("google API error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("google API error: status %d", resp.StatusCode)
	}

	var result googleRecognizeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}

	// Top alternative of each result, in order
	parts := make([]string, 0, len(result.Results))
	for _, r := range result.Results {
		if len(r.Alternatives) > 0 {
			parts = append(parts, r.Alternatives[0].Transcript)
		}
	}

	transcript := JoinTranscripts(parts)
	L_debug("stt: google transcription complete", "results", len(result.Results), "length", len(transcript))
	return transcript, nil
}

// Name returns the provider name.
func (g *GoogleProvider) Name() string {
	return "google"
}

// Close releases any resources (none for HTTP client).
func (g *GoogleProvider) Close() error {
	return nil
}
