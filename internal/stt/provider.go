// Package stt provides speech-to-text transcription for uploaded audio.
package stt

import (
	"context"
	"errors"
	"strings"
)

// DefaultLanguageCode is used when neither the request nor the config sets one.
const DefaultLanguageCode = "pt-BR"

var (
	// ErrNoProvider is returned when no provider is configured.
	ErrNoProvider = errors.New("no transcription provider configured")
	// ErrEmptyAudio is returned for a request without audio bytes.
	ErrEmptyAudio = errors.New("audio is empty")
)

// Provider is the interface for STT implementations.
type Provider interface {
	// Transcribe converts audio bytes to text.
	// A provider that recognizes no speech returns "" and a nil error.
	Transcribe(ctx context.Context, req Request) (string, error)

	// Name returns the provider name (e.g., "google", "openai")
	Name() string

	// Close releases any resources held by the provider.
	Close() error
}

// JoinTranscripts concatenates per-result transcripts in provider order,
// separated by single spaces. Blank parts are skipped.
func JoinTranscripts(parts []string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
