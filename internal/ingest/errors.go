package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSpeech is the cause recorded when a provider returns an empty transcript.
	ErrNoSpeech = errors.New("no speech detected in audio")

	// ErrInvalidTransition is returned when a draft operation is not allowed
	// in the draft's current state.
	ErrInvalidTransition = errors.New("invalid draft transition")

	// ErrNoAudio is returned when a draft is given no audio.
	ErrNoAudio = errors.New("no audio selected")
)

// TranscriptionError is any failure of the transcription collaborator.
// Message carries the provider's own text and is meant to be shown as-is.
type TranscriptionError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *TranscriptionError) Error() string {
	if e.Provider == "" {
		return "transcription failed: " + e.Message
	}
	return fmt.Sprintf("transcription failed (%s): %s", e.Provider, e.Message)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Cause
}

// transitionError wraps ErrInvalidTransition with the offending states.
func transitionError(op string, from State) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, op, from)
}
