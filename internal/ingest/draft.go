package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	. "github.com/roelfdiedericks/minutes/internal/logging"
	"github.com/roelfdiedericks/minutes/internal/notes"
	"github.com/roelfdiedericks/minutes/internal/stt"
)

// State is a step of the audio-to-note flow for one upload.
type State int

const (
	StateIdle State = iota
	StateAudioSelected
	StateTranscribing
	StateSucceeded
	StateFailed
	StateSaved
	StateDiscarded
)

var stateNames = map[State]string{
	StateIdle:          "idle",
	StateAudioSelected: "audio_selected",
	StateTranscribing:  "transcribing",
	StateSucceeded:     "transcript_succeeded",
	StateFailed:        "transcript_failed",
	StateSaved:         "saved",
	StateDiscarded:     "discarded",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible without Reset.
func (s State) Terminal() bool {
	return s == StateSaved || s == StateDiscarded
}

// Draft tracks one uploaded recording from selection to a saved note.
//
//	Idle -> AudioSelected -> Transcribing -> Succeeded | Failed
//	Failed -> Transcribing (retry)
//	Succeeded -> Saved (explicit save) | Discarded (abandoned)
//
// A transcript only becomes a note through Save.
type Draft struct {
	mu         sync.Mutex
	controller *Controller
	state      State
	request    stt.Request
	load       AudioLoader
	transcript string
	title      string
	lastErr    error
}

// NewDraft creates an idle draft bound to c.
func (c *Controller) NewDraft() *Draft {
	return &Draft{controller: c, state: StateIdle}
}

// DraftSnapshot is a read-only view of a draft.
type DraftSnapshot struct {
	State          State
	Transcript     string
	SuggestedTitle string
	Error          string
}

// Snapshot returns the current draft state.
func (d *Draft) Snapshot() DraftSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := DraftSnapshot{
		State:          d.state,
		Transcript:     d.transcript,
		SuggestedTitle: d.title,
	}
	if d.lastErr != nil {
		snap.Error = d.lastErr.Error()
	}
	return snap
}

// State returns the current state.
func (d *Draft) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// AudioLoader fetches a stored recording when it is transcribed.
type AudioLoader func() ([]byte, error)

// SelectAudio attaches audio to the draft. A new selection replaces the
// previous audio and any transcript that came from it.
func (d *Draft) SelectAudio(req stt.Request) error {
	if len(req.Audio) == 0 {
		return ErrNoAudio
	}
	return d.selectSource(req, nil)
}

// SelectStored attaches a stored recording by its loader. The bytes are
// read on every transcription attempt; the draft keeps no copy.
func (d *Draft) SelectStored(load AudioLoader, languageCode string) error {
	if load == nil {
		return ErrNoAudio
	}
	return d.selectSource(stt.Request{LanguageCode: languageCode}, load)
}

func (d *Draft) selectSource(req stt.Request, load AudioLoader) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateIdle, StateAudioSelected, StateFailed, StateSucceeded:
	default:
		return transitionError("select audio", d.state)
	}

	d.request = req
	d.load = load
	d.transcript = ""
	d.title = ""
	d.lastErr = nil
	d.setState(StateAudioSelected)
	return nil
}

// Transcribe runs the selected audio through the controller. Allowed from
// AudioSelected and, as a retry, from Failed. The draft lock is not held
// during the provider call.
func (d *Draft) Transcribe(ctx context.Context) (string, error) {
	d.mu.Lock()
	if d.state != StateAudioSelected && d.state != StateFailed {
		from := d.state
		d.mu.Unlock()
		return "", transitionError("transcribe", from)
	}
	req, load := d.request, d.load
	d.setState(StateTranscribing)
	d.mu.Unlock()

	var text string
	var err error
	if load != nil {
		req.Audio, err = load()
		if err != nil {
			err = fmt.Errorf("failed to load audio: %w", err)
		}
	}
	if err == nil {
		text, err = d.controller.Transcribe(ctx, req)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateTranscribing {
		// discarded while the provider was working
		L_debug("ingest: dropping transcript for abandoned draft", "state", d.state)
		return "", transitionError("transcribe", d.state)
	}

	if err != nil {
		d.lastErr = err
		d.setState(StateFailed)
		return "", err
	}

	d.transcript = text
	d.title = d.controller.SuggestedTitle()
	d.lastErr = nil
	d.setState(StateSucceeded)
	return text, nil
}

// Save stores the confirmed, possibly edited, title and content as a note.
// A validation failure leaves the draft in Succeeded so the user can fix it.
func (d *Draft) Save(title, content string) (notes.Note, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state != StateSucceeded {
		return notes.Note{}, transitionError("save", d.state)
	}

	note, err := d.controller.SubmitTranscribedNote(title, content)
	if err != nil {
		var verr *notes.ValidationError
		if errors.As(err, &verr) {
			d.lastErr = err
		}
		return notes.Note{}, err
	}

	d.request = stt.Request{}
	d.load = nil
	d.lastErr = nil
	d.setState(StateSaved)
	return note, nil
}

// Discard abandons the draft without creating a note. Discarding twice is
// a no-op; a saved draft cannot be discarded.
func (d *Draft) Discard() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateDiscarded:
		return nil
	case StateSaved:
		return transitionError("discard", d.state)
	}

	d.request = stt.Request{}
	d.load = nil
	d.transcript = ""
	d.setState(StateDiscarded)
	return nil
}

// Reset returns a finished draft to Idle so it can take new audio.
func (d *Draft) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.state.Terminal() {
		return transitionError("reset", d.state)
	}
	d.transcript = ""
	d.title = ""
	d.lastErr = nil
	d.setState(StateIdle)
	return nil
}

// setState records a transition. Caller holds d.mu.
func (d *Draft) setState(to State) {
	L_trace("ingest: draft transition", "from", d.state, "to", to)
	d.state = to
}
