package http

import (
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/roelfdiedericks/minutes/internal/ingest"
	. "github.com/roelfdiedericks/minutes/internal/logging"
	"github.com/roelfdiedericks/minutes/internal/media"
)

// draftRegistry maps upload ids to their transcription drafts.
type draftRegistry struct {
	mu     sync.Mutex
	drafts map[string]*ingest.Draft
}

func newDraftRegistry() *draftRegistry {
	return &draftRegistry{drafts: make(map[string]*ingest.Draft)}
}

func (r *draftRegistry) put(id string, d *ingest.Draft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[id] = d
}

func (r *draftRegistry) get(id string) *ingest.Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.drafts[id]
}

func (r *draftRegistry) remove(id string) *ingest.Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.drafts[id]
	delete(r.drafts, id)
	return d
}

func (r *draftRegistry) drain() map[string]*ingest.Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.drafts
	r.drafts = make(map[string]*ingest.Draft)
	return all
}

func (r *draftRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.drafts)
}

// draftResponse is the JSON view of an upload and its draft.
type draftResponse struct {
	ID             string `json:"id"`
	Filename       string `json:"filename,omitempty"`
	MIME           string `json:"mime,omitempty"`
	Size           int64  `json:"size,omitempty"`
	State          string `json:"state"`
	Transcript     string `json:"transcript,omitempty"`
	SuggestedTitle string `json:"suggestedTitle,omitempty"`
	Error          string `json:"error,omitempty"`
}

func newDraftResponse(id string, u *media.Upload, d *ingest.Draft) draftResponse {
	snap := d.Snapshot()
	resp := draftResponse{
		ID:             id,
		State:          snap.State.String(),
		Transcript:     snap.Transcript,
		SuggestedTitle: snap.SuggestedTitle,
		Error:          snap.Error,
	}
	if u != nil {
		resp.Filename = u.Filename
		resp.MIME = u.MIME
		resp.Size = u.Size
	}
	return resp
}

// lookupDraft resolves {id} to a live draft, answering 404 itself when the
// upload is unknown or has expired.
func (s *Server) lookupDraft(w http.ResponseWriter, r *http.Request) (string, *ingest.Draft, bool) {
	id := r.PathValue("id")
	d := s.drafts.get(id)
	if d == nil {
		writeError(w, http.StatusNotFound, media.ErrUploadNotFound.Error())
		return id, nil, false
	}
	return id, d, true
}

// handleUpload handles POST /api/uploads. The multipart field "audio"
// carries the recording; an optional "language" overrides the configured
// language for this draft.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Headroom for the multipart envelope around the file
	r.Body = http.MaxBytesReader(w, r.Body, s.uploads.MaxSize()+64*1024)

	file, header, err := r.FormFile("audio")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, media.ErrTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "missing audio file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	u, err := s.uploads.Save(data, header.Filename)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, media.ErrNotAudio), errors.Is(err, media.ErrEmpty):
			writeError(w, http.StatusUnsupportedMediaType, err.Error())
		default:
			L_error("http: failed to store upload", "error", err)
			writeError(w, http.StatusInternalServerError, "failed to store upload")
		}
		return
	}

	d := s.controller.NewDraft()
	if err := d.SelectStored(s.loadUpload(u.ID), r.FormValue("language")); err != nil {
		_ = s.uploads.Delete(u.ID)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.drafts.put(u.ID, d)

	L_info("http: audio uploaded", "user", userName(r), "upload", u.ID, "mime", u.MIME, "size", u.Size)
	writeJSON(w, http.StatusCreated, newDraftResponse(u.ID, u, d))
}

// loadUpload reads the stored recording each time the draft transcribes.
func (s *Server) loadUpload(id string) ingest.AudioLoader {
	return func() ([]byte, error) {
		_, data, err := s.uploads.Get(id)
		return data, err
	}
}

// handleGetUpload handles GET /api/uploads/{id}
func (s *Server) handleGetUpload(w http.ResponseWriter, r *http.Request) {
	id, d, ok := s.lookupDraft(w, r)
	if !ok {
		return
	}
	var meta *media.Upload
	if u, err := s.uploads.Info(id); err == nil {
		meta = &u
	}
	writeJSON(w, http.StatusOK, newDraftResponse(id, meta, d))
}

// handleTranscribe handles POST /api/uploads/{id}/transcribe. A failed
// transcription answers 502 and keeps the draft, so the client may retry.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	id, d, ok := s.lookupDraft(w, r)
	if !ok {
		return
	}

	text, err := d.Transcribe(r.Context())
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidTransition) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), State: d.State().String()})
			return
		}
		if errors.Is(err, media.ErrUploadNotFound) {
			L_warn("http: stored audio missing", "upload", id, "error", err)
			writeJSON(w, http.StatusGone, errorResponse{Error: media.ErrUploadNotFound.Error(), State: d.State().String()})
			return
		}
		L_warn("http: transcription failed", "upload", id, "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error: transcriptionMessage(err),
			State: d.State().String(),
		})
		return
	}

	L_info("http: transcription ready", "upload", id, "chars", len(text))
	writeJSON(w, http.StatusOK, newDraftResponse(id, nil, d))
}

// handleSaveTranscript handles POST /api/uploads/{id}/save. The body holds
// the title and content as the user confirmed them, possibly edited.
func (s *Server) handleSaveTranscript(w http.ResponseWriter, r *http.Request) {
	id, d, ok := s.lookupDraft(w, r)
	if !ok {
		return
	}

	req, ok := decodeNoteRequest(w, r)
	if !ok {
		return
	}

	note, err := d.Save(req.Title, req.Content)
	if err != nil {
		if errors.Is(err, ingest.ErrInvalidTransition) {
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), State: d.State().String()})
			return
		}
		writeNoteError(w, err)
		return
	}

	s.drafts.remove(id)
	if err := s.uploads.Delete(id); err != nil && !errors.Is(err, media.ErrUploadNotFound) {
		L_warn("http: failed to remove saved upload", "upload", id, "error", err)
	}

	L_info("http: transcribed note saved", "user", userName(r), "title", note.Title)
	writeJSON(w, http.StatusCreated, newNoteView(0, note))
}

// handleDiscardUpload handles DELETE /api/uploads/{id}. The audio and any
// transcript are dropped without creating a note.
func (s *Server) handleDiscardUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d := s.drafts.remove(id)
	if d == nil {
		writeError(w, http.StatusNotFound, media.ErrUploadNotFound.Error())
		return
	}

	if err := d.Discard(); err != nil {
		L_debug("http: discard on finished draft", "upload", id, "error", err)
	}
	if err := s.uploads.Delete(id); err != nil && !errors.Is(err, media.ErrUploadNotFound) {
		L_warn("http: failed to remove discarded upload", "upload", id, "error", err)
	}

	L_debug("http: upload discarded", "upload", id)
	w.WriteHeader(http.StatusNoContent)
}
