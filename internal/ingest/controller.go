// Package ingest turns manual input and transcribed audio into notes.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roelfdiedericks/minutes/internal/bus"
	. "github.com/roelfdiedericks/minutes/internal/logging"
	. "github.com/roelfdiedericks/minutes/internal/metrics"
	"github.com/roelfdiedericks/minutes/internal/notes"
	"github.com/roelfdiedericks/minutes/internal/stt"
)

// SuggestedTitleLayout is the default title offered for a transcribed note.
const SuggestedTitleLayout = "Reunião em 02/01/2006"

// Transcriber is the subset of stt.Provider the controller needs.
// *stt.Manager satisfies it, which lets the provider change on config reload.
type Transcriber interface {
	Transcribe(ctx context.Context, req stt.Request) (string, error)
	Name() string
}

// Controller validates input from both note-producing flows and funnels it
// into a notes.Store. It never creates a note from a transcription on its own.
type Controller struct {
	store       *notes.Store
	transcriber Transcriber
	now         func() time.Time
}

// NewController wires a store to a transcriber. transcriber may be nil,
// in which case every transcription request fails.
func NewController(store *notes.Store, transcriber Transcriber) *Controller {
	return &Controller{
		store:       store,
		transcriber: transcriber,
		now:         time.Now,
	}
}

// Store returns the underlying note store.
func (c *Controller) Store() *notes.Store {
	return c.store
}

// ProviderName returns the name of the transcription backend, or "none".
func (c *Controller) ProviderName() string {
	if c.transcriber == nil {
		return "none"
	}
	return c.transcriber.Name()
}

// SubmitManualNote validates and stores a hand-written note.
func (c *Controller) SubmitManualNote(title, content string) (notes.Note, error) {
	return c.submit("manual", title, content)
}

// SubmitTranscribedNote stores a user-confirmed transcript. The transcript is
// ordinary content: an empty one fails validation like any other.
func (c *Controller) SubmitTranscribedNote(title, transcript string) (notes.Note, error) {
	return c.submit("transcribed", title, transcript)
}

func (c *Controller) submit(source, title, content string) (notes.Note, error) {
	note, err := c.store.Append(title, content)
	if err != nil {
		var verr *notes.ValidationError
		if errors.As(err, &verr) {
			MetricInc("notes", "rejected_"+verr.Field)
		}
		L_debug("ingest: note rejected", "source", source, "error", err)
		return notes.Note{}, err
	}

	MetricInc("notes", "created")
	MetricInc("notes", "created_"+source)
	c.publishChange("append")
	L_info("ingest: note saved", "source", source, "id", note.ID, "title", note.Title)
	return note, nil
}

// DeleteNote removes the note at displayIndex (newest first).
func (c *Controller) DeleteNote(displayIndex int) (notes.Note, error) {
	note, err := c.store.DeleteAt(displayIndex)
	if err != nil {
		L_warn("ingest: delete with stale index", "index", displayIndex, "error", err)
		return notes.Note{}, err
	}
	MetricInc("notes", "deleted")
	c.publishChange("delete")
	return note, nil
}

// ClearNotes empties the store.
func (c *Controller) ClearNotes() {
	c.store.Clear()
	MetricInc("notes", "cleared")
	c.publishChange("clear")
}

func (c *Controller) publishChange(action string) {
	count := c.store.Len()
	MetricSet("notes", "stored", int64(count))
	bus.PublishEvent(bus.TopicNotesChanged, bus.NotesChanged{Action: action, Count: count})
}

// SuggestedTitle returns the default title for a note transcribed at t.
func SuggestedTitle(t time.Time) string {
	return t.Format(SuggestedTitleLayout)
}

// SuggestedTitle returns the default title for a note transcribed now.
func (c *Controller) SuggestedTitle() string {
	return SuggestedTitle(c.now())
}

// RequestTranscription transcribes raw audio in languageCode. The encoding
// is sniffed from the audio.
func (c *Controller) RequestTranscription(ctx context.Context, audio []byte, languageCode string) (string, error) {
	return c.Transcribe(ctx, stt.Request{Audio: audio, LanguageCode: languageCode})
}

// Transcribe runs req through the transcriber. It never touches the store.
// Every failure, including an empty transcript, is a *TranscriptionError.
func (c *Controller) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	provider := c.ProviderName()

	if c.transcriber == nil {
		MetricFailWithReason("stt", "transcribe", "no_provider")
		return "", &TranscriptionError{Provider: provider, Message: stt.ErrNoProvider.Error(), Cause: stt.ErrNoProvider}
	}

	start := time.Now()
	text, err := c.callTranscriber(ctx, req)
	elapsed := time.Since(start)
	MetricDuration("stt", "latency", elapsed)

	if err == nil && text == "" {
		err = ErrNoSpeech
	}

	bus.PublishEvent(bus.TopicTranscribed, bus.Transcribed{Provider: provider, OK: err == nil, Duration: elapsed})

	if err != nil {
		MetricFailWithReason("stt", "transcribe", provider)
		L_warn("ingest: transcription failed", "provider", provider, "bytes", len(req.Audio), "elapsed", elapsed, "error", err)
		return "", &TranscriptionError{Provider: provider, Message: err.Error(), Cause: err}
	}

	MetricSuccess("stt", "transcribe")
	L_info("ingest: transcription complete", "provider", provider, "chars", len(text), "elapsed", elapsed)
	return text, nil
}

// callTranscriber turns a provider panic into an ordinary error.
func (c *Controller) callTranscriber(ctx context.Context, req stt.Request) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			L_error("ingest: transcriber panicked", "provider", c.ProviderName(), "panic", r)
			text, err = "", fmt.Errorf("transcription provider crashed: %v", r)
		}
	}()
	return c.transcriber.Transcribe(ctx, req)
}
