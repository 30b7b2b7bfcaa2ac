package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roelfdiedericks/minutes/internal/notes"
	"github.com/roelfdiedericks/minutes/internal/stt"
)

func selectedDraft(t *testing.T, c *Controller) *Draft {
	t.Helper()
	d := c.NewDraft()
	if d.State() != StateIdle {
		t.Fatalf("new draft state = %s", d.State())
	}
	if err := d.SelectAudio(stt.Request{Audio: []byte("ogg bytes"), LanguageCode: "pt-BR"}); err != nil {
		t.Fatalf("SelectAudio: %v", err)
	}
	return d
}

func TestDraftHappyPath(t *testing.T) {
	c := newTestController(&fakeTranscriber{text: "pauta aprovada"})
	d := selectedDraft(t, c)

	text, err := d.Transcribe(context.Background())
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "pauta aprovada" {
		t.Errorf("text = %q", text)
	}

	snap := d.Snapshot()
	if snap.State != StateSucceeded || snap.SuggestedTitle != "Reunião em 07/03/2025" {
		t.Errorf("snapshot = %+v", snap)
	}
	if c.Store().Len() != 0 {
		t.Fatal("successful transcription created a note before save")
	}

	note, err := d.Save("Reunião de diretoria", "pauta aprovada, com ressalvas")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if note.Content != "pauta aprovada, com ressalvas" {
		t.Errorf("saved content = %q", note.Content)
	}
	if d.State() != StateSaved || c.Store().Len() != 1 {
		t.Errorf("state = %s, len = %d", d.State(), c.Store().Len())
	}

	if _, err := d.Save("again", "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second save err = %v", err)
	}
	if err := d.Discard(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("discard after save err = %v", err)
	}
	if err := d.Reset(); err != nil || d.State() != StateIdle {
		t.Errorf("Reset = %v, state %s", err, d.State())
	}
}

func TestDraftRetryAfterFailure(t *testing.T) {
	tr := &fakeTranscriber{err: errors.New("deadline exceeded")}
	c := newTestController(tr)
	d := selectedDraft(t, c)

	if _, err := d.Transcribe(context.Background()); err == nil {
		t.Fatal("expected failure")
	}
	snap := d.Snapshot()
	if snap.State != StateFailed || snap.Error == "" {
		t.Errorf("snapshot = %+v", snap)
	}
	if _, err := d.Save("t", "c"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("save from failed err = %v", err)
	}

	tr.mu.Lock()
	tr.err, tr.text = nil, "segunda tentativa"
	tr.mu.Unlock()

	text, err := d.Transcribe(context.Background())
	if err != nil || text != "segunda tentativa" {
		t.Fatalf("retry = %q, %v", text, err)
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.calls != 2 {
		t.Errorf("calls = %d, want 2", tr.calls)
	}
}

func TestDraftSaveValidationKeepsTranscript(t *testing.T) {
	c := newTestController(&fakeTranscriber{text: "algo"})
	d := selectedDraft(t, c)
	if _, err := d.Transcribe(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err := d.Save("  ", "algo")
	var verr *notes.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if d.State() != StateSucceeded {
		t.Errorf("state = %s, want transcript_succeeded", d.State())
	}
	if _, err := d.Save("Título", "algo"); err != nil {
		t.Errorf("corrected save: %v", err)
	}
}

func TestDraftDiscard(t *testing.T) {
	c := newTestController(&fakeTranscriber{text: "algo"})
	d := selectedDraft(t, c)
	if _, err := d.Transcribe(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := d.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if err := d.Discard(); err != nil {
		t.Errorf("second Discard: %v", err)
	}
	snap := d.Snapshot()
	if snap.State != StateDiscarded || snap.Error != "" {
		t.Errorf("snapshot = %+v", snap)
	}
	if c.Store().Len() != 0 {
		t.Error("discarded draft created a note")
	}
}

func TestDraftDiscardWhileTranscribing(t *testing.T) {
	tr := &fakeTranscriber{text: "tarde demais", block: make(chan struct{}), started: make(chan struct{})}
	c := newTestController(tr)
	d := selectedDraft(t, c)

	done := make(chan error, 1)
	go func() {
		_, err := d.Transcribe(context.Background())
		done <- err
	}()

	<-tr.started
	if _, err := d.Transcribe(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("concurrent transcribe err = %v", err)
	}
	if err := d.Discard(); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	close(tr.block)

	select {
	case err := <-done:
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("late result err = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("transcribe did not return")
	}
	if d.State() != StateDiscarded {
		t.Errorf("state = %s", d.State())
	}
}

func TestDraftInvalidTransitions(t *testing.T) {
	c := newTestController(&fakeTranscriber{text: "x"})
	d := c.NewDraft()

	if _, err := d.Transcribe(context.Background()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("transcribe from idle err = %v", err)
	}
	if err := d.SelectAudio(stt.Request{}); !errors.Is(err, ErrNoAudio) {
		t.Errorf("empty audio err = %v", err)
	}
	if err := d.Reset(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("reset from idle err = %v", err)
	}
	if StateSucceeded.String() != "transcript_succeeded" || State(99).String() != "unknown" {
		t.Error("state names")
	}
}

func TestDraftStoredAudio(t *testing.T) {
	tr := &fakeTranscriber{text: "ata lida"}
	c := newTestController(tr)

	d := c.NewDraft()
	if err := d.SelectStored(nil, ""); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("nil loader err = %v", err)
	}

	loads := 0
	var loadErr error
	if err := d.SelectStored(func() ([]byte, error) {
		loads++
		return []byte("wav bytes"), loadErr
	}, "en-US"); err != nil {
		t.Fatalf("SelectStored: %v", err)
	}

	loadErr = errors.New("gone")
	if _, err := d.Transcribe(context.Background()); !errors.Is(err, loadErr) {
		t.Fatalf("load failure err = %v", err)
	}
	if d.State() != StateFailed || tr.calls != 0 {
		t.Errorf("state = %s, provider calls = %d", d.State(), tr.calls)
	}

	loadErr = nil
	if _, err := d.Transcribe(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if loads != 2 || string(tr.lastReq.Audio) != "wav bytes" || tr.lastReq.LanguageCode != "en-US" {
		t.Errorf("loads = %d, req = %+v", loads, tr.lastReq)
	}
}

// panickingTranscriber fails the way a buggy provider SDK might.
type panickingTranscriber struct{}

func (panickingTranscriber) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	panic("nil pointer in provider")
}

func (panickingTranscriber) Name() string { return "broken" }

func TestDraftProviderPanicFails(t *testing.T) {
	c := newTestController(panickingTranscriber{})
	d := selectedDraft(t, c)

	_, err := d.Transcribe(context.Background())
	var terr *TranscriptionError
	if !errors.As(err, &terr) || terr.Provider != "broken" {
		t.Fatalf("err = %v", err)
	}
	if d.State() != StateFailed {
		t.Errorf("state = %s, want %s", d.State(), StateFailed)
	}
	if err := d.Discard(); err != nil {
		t.Errorf("Discard after panic: %v", err)
	}
}
