//go:build whispercpp

package stt

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	. "github.com/roelfdiedericks/minutes/internal/logging"
	"github.com/roelfdiedericks/minutes/internal/paths"
)

// WhisperCppProvider implements STT using a local whisper.cpp model.
type WhisperCppProvider struct {
	mu       sync.Mutex // whisper contexts share the model; one run at a time
	model    whisper.Model
	config   WhisperCppConfig
	language string
}

// NewWhisperCppProvider loads the configured model.
func NewWhisperCppProvider(cfg WhisperCppConfig, languageCode string) (Provider, error) {
	if cfg.ModelsDir == "" {
		return nil, fmt.Errorf("whisper.cpp modelsDir not configured")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("whisper.cpp model not configured")
	}

	modelsDir, err := paths.ExpandTilde(cfg.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("expand models dir: %w", err)
	}

	modelPath := filepath.Join(modelsDir, cfg.Model)
	L_info("stt: loading whisper.cpp model", "path", modelPath)

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model: %w", err)
	}

	lang := baseLanguage(languageCode)
	if lang == "" {
		lang = "auto"
	}

	L_info("stt: whisper.cpp model loaded", "multilingual", model.IsMultilingual(), "language", lang)

	return &WhisperCppProvider{
		model:    model,
		config:   cfg,
		language: lang,
	}, nil
}

// Transcribe decodes the audio to 16kHz mono and runs the model.
func (w *WhisperCppProvider) Transcribe(ctx context.Context, req Request) (string, error) {
	if len(req.Audio) == 0 {
		return "", ErrEmptyAudio
	}
	req = req.resolve("")

	samples, err := ConvertToFloat32(req.Audio, req.Encoding)
	if err != nil {
		return "", fmt.Errorf("convert audio: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	L_debug("stt: audio converted", "samples", len(samples), "duration_sec", float64(len(samples))/float64(targetSampleRate))

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model == nil {
		return "", fmt.Errorf("whisper.cpp model closed")
	}
	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create whisper context: %w", err)
	}

	lang := w.language
	if req.LanguageCode != "" {
		lang = baseLanguage(req.LanguageCode)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		L_warn("stt: failed to set language", "language", lang, "error", err)
	}
	if w.config.Threads > 0 {
		wctx.SetThreads(w.config.Threads)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("get segment: %w", err)
		}
		parts = append(parts, strings.TrimSpace(segment.Text))
	}

	transcript := JoinTranscripts(parts)
	L_debug("stt: whisper.cpp transcription complete", "segments", len(parts), "length", len(transcript))
	return transcript, nil
}

// Name returns the provider name.
func (w *WhisperCppProvider) Name() string {
	return "whispercpp"
}

// Close releases the whisper model. It waits for a running Process.
func (w *WhisperCppProvider) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.model == nil {
		return nil
	}
	L_debug("stt: closing whisper.cpp model")
	err := w.model.Close()
	w.model = nil
	return err
}
