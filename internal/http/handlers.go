package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/roelfdiedericks/minutes/internal/ingest"
	. "github.com/roelfdiedericks/minutes/internal/logging"
	"github.com/roelfdiedericks/minutes/internal/metrics"
	"github.com/roelfdiedericks/minutes/internal/notes"
)

// maxNoteBody bounds JSON note submissions.
const maxNoteBody = 1 << 20

// errorResponse is the JSON body of every API error.
type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
	State string `json:"state,omitempty"`
}

// noteRequest is the body of POST /api/notes and POST /api/uploads/{id}/save.
type noteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		L_debug("http: failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeNoteError maps note taxonomy errors to status codes.
func writeNoteError(w http.ResponseWriter, err error) {
	var verr *notes.ValidationError
	var ierr *notes.IndexError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: validationMessage(verr), Field: verr.Field})
	case errors.As(err, &ierr):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		L_error("http: note operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// validationMessage is the user-facing text for an empty field.
func validationMessage(err *notes.ValidationError) string {
	if err.Field == notes.FieldTitle {
		return "Por favor, preencha o título."
	}
	return "Por favor, preencha o conteúdo da nota."
}

func decodeNoteRequest(w http.ResponseWriter, r *http.Request) (noteRequest, bool) {
	var req noteRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxNoteBody)).Decode(&req); err != nil {
		L_debug("http: invalid note JSON", "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return req, false
	}
	return req, true
}

// handleIndex serves the notes page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.reloadTemplatesIfDev(); err != nil {
		L_error("http: template reload error", "error", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}

	data := struct {
		Title          string
		User           string
		Provider       string
		Notes          []noteView
		SuggestedTitle string
		MaxUpload      int64
		Timestamp      time.Time
	}{
		Title:          "Aplicativo de Notas de Reunião",
		User:           userName(r),
		Provider:       s.controller.ProviderName(),
		Notes:          noteViews(s.controller.Store().List()),
		SuggestedTitle: s.controller.SuggestedTitle(),
		MaxUpload:      s.uploads.MaxSize(),
		Timestamp:      time.Now(),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		L_error("http: template error", "error", err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

// handleListNotes handles GET /api/notes, newest first.
func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.notesPayload())
}

// handleCreateNote handles POST /api/notes - manual entry
func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeNoteRequest(w, r)
	if !ok {
		return
	}

	note, err := s.controller.SubmitManualNote(req.Title, req.Content)
	if err != nil {
		writeNoteError(w, err)
		return
	}

	L_info("http: note saved", "user", userName(r), "title", note.Title)
	writeJSON(w, http.StatusCreated, newNoteView(0, note))
}

// handleDeleteNote handles DELETE /api/notes/{index}. The index is the
// position in the newest-first listing.
func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid index")
		return
	}

	note, err := s.controller.DeleteNote(index)
	if err != nil {
		writeNoteError(w, err)
		return
	}

	L_info("http: note deleted", "user", userName(r), "title", note.Title)
	writeJSON(w, http.StatusOK, newNoteView(index, note))
}

// handleClearNotes handles DELETE /api/notes
func (s *Server) handleClearNotes(w http.ResponseWriter, r *http.Request) {
	s.controller.ClearNotes()
	L_info("http: notes cleared", "user", userName(r))
	w.WriteHeader(http.StatusNoContent)
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.statusView(userName(r)))
}

// handleMetricsAPI handles GET /api/metrics
func (s *Server) handleMetricsAPI(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metrics.GetInstance().GetSnapshot())
}

// transcriptionMessage extracts the provider text shown after
// "Erro ao transcrever o áudio: ".
func transcriptionMessage(err error) string {
	var terr *ingest.TranscriptionError
	if errors.As(err, &terr) {
		return terr.Message
	}
	return err.Error()
}
