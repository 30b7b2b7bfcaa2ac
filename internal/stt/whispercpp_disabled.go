//go:build !whispercpp

package stt

import "fmt"

// NewWhisperCppProvider reports that local transcription was not compiled in.
// Build with -tags whispercpp (and libwhisper available to cgo) to enable it.
func NewWhisperCppProvider(cfg WhisperCppConfig, languageCode string) (Provider, error) {
	return nil, fmt.Errorf("whispercpp provider not available: binary built without the whispercpp tag")
}
