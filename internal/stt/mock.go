package stt

import (
	"context"
	"fmt"

	. "github.com/roelfdiedericks/minutes/internal/logging"
)

// MockProvider is an offline placeholder. It never contacts a service
// and needs no credentials.
type MockProvider struct {
	text string
}

// NewMockProvider creates the placeholder provider.
func NewMockProvider(cfg MockConfig) *MockProvider {
	L_info("stt: mock provider initialized")
	return &MockProvider{text: cfg.Text}
}

// Transcribe returns the configured text, or a description of the audio.
func (m *MockProvider) Transcribe(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(req.Audio) == 0 {
		return "", ErrEmptyAudio
	}
	if m.text != "" {
		return m.text, nil
	}

	req = req.resolve("")
	format := string(req.Encoding)
	if format == "" {
		format = DetectMIME(req.Audio)
	}
	return fmt.Sprintf("Transcrição simulada de %d bytes de áudio (%s).", len(req.Audio), format), nil
}

// Name returns the provider name.
func (m *MockProvider) Name() string {
	return "mock"
}

// Close is a no-op.
func (m *MockProvider) Close() error {
	return nil
}
