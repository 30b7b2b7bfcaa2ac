package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/roelfdiedericks/minutes/internal/notes"
	"github.com/roelfdiedericks/minutes/internal/stt"
)

// fakeTranscriber returns canned results and records requests.
type fakeTranscriber struct {
	mu      sync.Mutex
	text    string
	err     error
	calls   int
	lastReq stt.Request
	block   chan struct{} // when set, Transcribe waits for it
	started chan struct{}
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastReq = req
	block, started := f.block, f.started
	text, err := f.text, f.err
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return text, err
}

func (f *fakeTranscriber) Name() string { return "fake" }

func newTestController(tr Transcriber) *Controller {
	c := NewController(notes.NewStore(), tr)
	c.now = func() time.Time { return time.Date(2025, 3, 7, 14, 30, 0, 0, time.UTC) }
	return c
}

func TestSubmitManualNoteNewestFirst(t *testing.T) {
	c := newTestController(nil)

	if _, err := c.SubmitManualNote("Kickoff", "Discussed scope"); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := c.SubmitManualNote("Follow-up", "Assigned tasks"); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	list := c.Store().List()
	if len(list) != 2 || list[0].Title != "Follow-up" || list[1].Title != "Kickoff" {
		t.Errorf("list = %+v, want [Follow-up, Kickoff]", list)
	}
}

func TestSubmitRejectsBlankFields(t *testing.T) {
	c := newTestController(nil)

	tests := []struct {
		name    string
		title   string
		content string
		field   string
	}{
		{"empty title", "", "conteúdo", notes.FieldTitle},
		{"whitespace title", "   \t", "conteúdo", notes.FieldTitle},
		{"empty content", "Título", "", notes.FieldContent},
		{"whitespace content", "Título", "\n  ", notes.FieldContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, submit := range []func(string, string) (notes.Note, error){c.SubmitManualNote, c.SubmitTranscribedNote} {
				_, err := submit(tt.title, tt.content)
				var verr *notes.ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("err = %v, want ValidationError", err)
				}
				if verr.Field != tt.field {
					t.Errorf("field = %q, want %q", verr.Field, tt.field)
				}
			}
			if c.Store().Len() != 0 {
				t.Errorf("store grew to %d", c.Store().Len())
			}
		})
	}
}

func TestEmptyTranscriptCannotBeSavedUnedited(t *testing.T) {
	c := newTestController(nil)

	_, err := c.SubmitTranscribedNote(c.SuggestedTitle(), "")
	var verr *notes.ValidationError
	if !errors.As(err, &verr) || verr.Field != notes.FieldContent {
		t.Errorf("err = %v, want content ValidationError", err)
	}
}

func TestSuggestedTitle(t *testing.T) {
	c := newTestController(nil)
	if got := c.SuggestedTitle(); got != "Reunião em 07/03/2025" {
		t.Errorf("SuggestedTitle = %q", got)
	}
	if got := SuggestedTitle(time.Date(2024, 12, 31, 23, 59, 0, 0, time.UTC)); got != "Reunião em 31/12/2024" {
		t.Errorf("SuggestedTitle = %q", got)
	}
}

func TestRequestTranscriptionSuccess(t *testing.T) {
	tr := &fakeTranscriber{text: "bom dia a todos"}
	c := newTestController(tr)

	got, err := c.RequestTranscription(context.Background(), []byte("audio"), "pt-BR")
	if err != nil {
		t.Fatalf("RequestTranscription: %v", err)
	}
	if got != "bom dia a todos" {
		t.Errorf("transcript = %q", got)
	}
	if tr.lastReq.LanguageCode != "pt-BR" || string(tr.lastReq.Audio) != "audio" {
		t.Errorf("request = %+v", tr.lastReq)
	}
	if c.Store().Len() != 0 {
		t.Error("transcription must not create a note")
	}
}

func TestRequestTranscriptionFailures(t *testing.T) {
	providerErr := errors.New("google API error: The caller does not have permission")

	tests := []struct {
		name    string
		tr      Transcriber
		message string
		cause   error
	}{
		{"provider error", &fakeTranscriber{err: providerErr}, providerErr.Error(), providerErr},
		{"no speech", &fakeTranscriber{text: ""}, ErrNoSpeech.Error(), ErrNoSpeech},
		{"no provider", nil, stt.ErrNoProvider.Error(), stt.ErrNoProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController(tt.tr)

			_, err := c.RequestTranscription(context.Background(), []byte("audio"), "")
			var terr *TranscriptionError
			if !errors.As(err, &terr) {
				t.Fatalf("err = %v, want TranscriptionError", err)
			}
			if terr.Message != tt.message {
				t.Errorf("message = %q, want %q", terr.Message, tt.message)
			}
			if !errors.Is(err, tt.cause) {
				t.Errorf("cause not preserved: %v", err)
			}
			if c.Store().Len() != 0 {
				t.Error("failed transcription touched the store")
			}
		})
	}
}

func TestTranscriptionErrorMessage(t *testing.T) {
	err := &TranscriptionError{Provider: "google", Message: "quota exceeded"}
	if !strings.Contains(err.Error(), "google") || !strings.Contains(err.Error(), "quota exceeded") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestDeleteAndClear(t *testing.T) {
	c := newTestController(nil)
	for _, title := range []string{"A", "B", "C"} {
		if _, err := c.SubmitManualNote(title, "x"); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := c.DeleteNote(1)
	if err != nil {
		t.Fatalf("DeleteNote: %v", err)
	}
	if removed.Title != "B" {
		t.Errorf("removed %q, want B", removed.Title)
	}

	var ierr *notes.IndexError
	if _, err := c.DeleteNote(5); !errors.As(err, &ierr) {
		t.Errorf("err = %v, want IndexError", err)
	}

	c.ClearNotes()
	c.ClearNotes()
	if c.Store().Len() != 0 {
		t.Errorf("len = %d after clear", c.Store().Len())
	}
}
