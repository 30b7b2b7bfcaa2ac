package notes

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	. "github.com/roelfdiedericks/minutes/internal/logging"
)

// Store is the ordered note collection for one session.
// Storage order is insertion order; List presents it reversed (newest first).
type Store struct {
	mu    sync.Mutex
	notes []Note
	now   func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// SetClock overrides the time source used for CreatedAt.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Validate trims title and content and reports the first empty field.
func Validate(title, content string) (string, string, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" {
		return "", "", &ValidationError{Field: FieldTitle}
	}
	if content == "" {
		return "", "", &ValidationError{Field: FieldContent}
	}
	return title, content, nil
}

// Append validates and appends a new note, returning it.
// On validation failure the store is untouched.
func (s *Store) Append(title, content string) (Note, error) {
	title, content, err := Validate(title, content)
	if err != nil {
		return Note{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	note := Note{
		ID:        uuid.New().String(),
		Title:     title,
		Content:   content,
		CreatedAt: s.now(),
	}
	s.notes = append(s.notes, note)

	L_debug("notes: appended", "id", note.ID, "title", note.Title, "count", len(s.notes))
	return note, nil
}

// List returns a snapshot of all notes, newest first.
func (s *Store) List() []Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Note, len(s.notes))
	for i, n := range s.notes {
		out[len(s.notes)-1-i] = n
	}
	return out
}

// Len returns the number of stored notes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}

// DeleteAt removes the note at displayIndex in List order and returns it.
func (s *Store) DeleteAt(displayIndex int) (Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.notes)
	if displayIndex < 0 || displayIndex >= n {
		return Note{}, &IndexError{Index: displayIndex, Len: n}
	}

	storageIndex := n - 1 - displayIndex
	removed := s.notes[storageIndex]
	s.notes = append(s.notes[:storageIndex], s.notes[storageIndex+1:]...)

	L_debug("notes: deleted", "id", removed.ID, "displayIndex", displayIndex, "count", len(s.notes))
	return removed, nil
}

// Clear removes every note. Clearing an empty store is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.notes) > 0 {
		L_debug("notes: cleared", "count", len(s.notes))
	}
	s.notes = nil
}
