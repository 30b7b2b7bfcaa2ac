package http

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/roelfdiedericks/minutes/internal/bus"
	. "github.com/roelfdiedericks/minutes/internal/logging"
)

// Websocket message types.
const (
	msgNotes  = "notes"
	msgStatus = "status"
)

// notesMessage carries the full note list. Version grows with every push
// so a client can drop anything older than what it already shows.
type notesMessage struct {
	Type    string `json:"type"`
	Version uint64 `json:"version"`
	notesPayload
}

type statusMessage struct {
	Type    string     `json:"type"`
	Version uint64     `json:"version"`
	Status  statusView `json:"status"`
}

// statusView is the body of GET /api/status and of status pushes.
type statusView struct {
	Status            string             `json:"status"`
	User              string             `json:"user,omitempty"`
	Provider          string             `json:"provider"`
	Notes             int                `json:"notes"`
	Uploads           int                `json:"uploads"`
	Drafts            int                `json:"drafts"`
	Clients           int                `json:"clients"`
	LastTranscription *transcriptionView `json:"lastTranscription,omitempty"`
	ConfigReloadedAt  *time.Time         `json:"configReloadedAt,omitempty"`
}

type transcriptionView struct {
	Provider   string    `json:"provider"`
	OK         bool      `json:"ok"`
	DurationMs int64     `json:"durationMs"`
	At         time.Time `json:"at"`
}

// pusher orders websocket pushes. Each push snapshots state and queues it
// under one lock, so clients see snapshots in the order they were taken
// no matter how bus goroutines interleave.
type pusher struct {
	mu      sync.Mutex
	version uint64

	stateMu    sync.Mutex
	last       *transcriptionView
	reloadedAt *time.Time
}

func (s *Server) statusView(user string) statusView {
	s.push.stateMu.Lock()
	last, reloaded := s.push.last, s.push.reloadedAt
	s.push.stateMu.Unlock()

	return statusView{
		Status:            "ready",
		User:              user,
		Provider:          s.controller.ProviderName(),
		Notes:             s.controller.Store().Len(),
		Uploads:           len(s.uploads.List()),
		Drafts:            s.drafts.len(),
		Clients:           s.hub.Len(),
		LastTranscription: last,
		ConfigReloadedAt:  reloaded,
	}
}

// pushNotes sends the current note list to every client.
func (s *Server) pushNotes() {
	s.push.mu.Lock()
	defer s.push.mu.Unlock()
	s.push.version++
	s.hub.Broadcast(notesMessage{Type: msgNotes, Version: s.push.version, notesPayload: s.notesPayload()})
}

// pushStatus sends provider and server status to every client.
func (s *Server) pushStatus() {
	s.push.mu.Lock()
	defer s.push.mu.Unlock()
	s.push.version++
	s.hub.Broadcast(statusMessage{Type: msgStatus, Version: s.push.version, Status: s.statusView("")})
}

// greet registers c and queues the current notes and status for it.
// Holding the push lock keeps later broadcasts behind the greeting.
func (s *Server) greet(c *wsClient) bool {
	s.push.mu.Lock()
	defer s.push.mu.Unlock()

	if !s.hub.add(c) {
		return false
	}
	s.push.version++
	notes, err := json.Marshal(notesMessage{Type: msgNotes, Version: s.push.version, notesPayload: s.notesPayload()})
	if err != nil {
		L_error("http: ws marshal failed", "error", err)
		return true
	}
	s.push.version++
	status, err := json.Marshal(statusMessage{Type: msgStatus, Version: s.push.version, Status: s.statusView("")})
	if err != nil {
		L_error("http: ws marshal failed", "error", err)
		return true
	}
	// fresh queue, both fit
	c.send <- notes
	c.send <- status
	return true
}

func (s *Server) onTranscribed(e bus.Event) {
	t, ok := e.Data.(bus.Transcribed)
	if !ok {
		return
	}
	s.push.stateMu.Lock()
	s.push.last = &transcriptionView{
		Provider:   t.Provider,
		OK:         t.OK,
		DurationMs: t.Duration.Milliseconds(),
		At:         e.Timestamp,
	}
	s.push.stateMu.Unlock()
	s.pushStatus()
}

func (s *Server) onConfigReloaded(e bus.Event) {
	at := e.Timestamp
	s.push.stateMu.Lock()
	s.push.reloadedAt = &at
	s.push.stateMu.Unlock()
	s.pushStatus()
}
