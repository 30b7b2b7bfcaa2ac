// Package media holds uploaded recordings while they wait to be transcribed
// and saved. Uploads are temporary: they are removed on save, on discard,
// or when their TTL runs out.
package media

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	cronlib "github.com/robfig/cron/v3"
	"github.com/roelfdiedericks/minutes/internal/bus"
	. "github.com/roelfdiedericks/minutes/internal/logging"
	"github.com/roelfdiedericks/minutes/internal/paths"
)

var (
	// ErrUploadNotFound is returned for unknown or expired upload ids.
	ErrUploadNotFound = errors.New("upload not found")
	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("upload exceeds size limit")
	// ErrNotAudio is returned when the uploaded bytes are not an audio container.
	ErrNotAudio = errors.New("upload is not audio")
	// ErrEmpty is returned for a zero-byte upload.
	ErrEmpty = errors.New("upload is empty")
)

// audioContainers are accepted even though mimetype files them outside audio/*.
var audioContainers = map[string]bool{
	"application/ogg": true,
	"video/webm":      true,
	"video/mp4":       true, // m4a voice memos are often sniffed as mp4
}

// Upload describes one stored recording.
type Upload struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"` // name given by the client, for display only
	MIME      string    `json:"mime"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	path      string
}

// ExpiresAt returns when the upload becomes eligible for the sweep.
func (u *Upload) ExpiresAt(ttl time.Duration) time.Time {
	return u.CreatedAt.Add(ttl)
}

// Store manages upload files on disk with TTL cleanup.
type Store struct {
	baseDir  string
	ttl      time.Duration
	maxSize  int64
	schedule string

	mu      sync.Mutex
	uploads map[string]*Upload
	now     func() time.Time

	cron *cronlib.Cron
}

// NewStore creates the upload store. Leftover files from a previous run are
// removed, since their drafts died with that process.
func NewStore(cfg Config) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		d, err := paths.DefaultMediaDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	dir, err := paths.ExpandTilde(dir)
	if err != nil {
		return nil, fmt.Errorf("expand media dir: %w", err)
	}
	dir = filepath.Join(filepath.Clean(dir), "uploads")

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clear upload directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	ttl := time.Duration(cfg.TTL) * time.Second
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	schedule := cfg.Cleanup
	if schedule == "" {
		schedule = DefaultCleanup
	}

	s := &Store{
		baseDir:  dir,
		ttl:      ttl,
		maxSize:  maxSize,
		schedule: schedule,
		uploads:  make(map[string]*Upload),
		now:      time.Now,
	}

	L_info("media: store initialized", "dir", dir, "ttl", ttl.String(), "maxSize", maxSize)
	return s, nil
}

// Start schedules the TTL sweep.
func (s *Store) Start() error {
	c := cronlib.New()
	if _, err := c.AddFunc(s.schedule, func() { s.Sweep() }); err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", s.schedule, err)
	}
	c.Start()

	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()

	L_debug("media: cleanup scheduled", "schedule", s.schedule)
	return nil
}

// Close stops the sweep and removes all remaining uploads.
func (s *Store) Close() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, u := range s.uploads {
		_ = os.Remove(u.path)
		delete(s.uploads, id)
	}
	L_debug("media: store closed")
}

// TTL returns the configured upload lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// MaxSize returns the upload size limit in bytes.
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// Save validates and stores an uploaded recording.
func (s *Store) Save(data []byte, filename string) (*Upload, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(data), s.maxSize)
	}

	mt := mimetype.Detect(data)
	if !IsAudio(mt) {
		return nil, fmt.Errorf("%w: detected %s", ErrNotAudio, mt.String())
	}

	id := uuid.New().String()
	path := filepath.Join(s.baseDir, id+mt.Extension())
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}

	u := &Upload{
		ID:        id,
		Filename:  filepath.Base(filename),
		MIME:      mt.String(),
		Size:      int64(len(data)),
		CreatedAt: s.now(),
		path:      path,
	}

	s.mu.Lock()
	s.uploads[id] = u
	s.mu.Unlock()

	L_debug("media: saved upload", "id", id, "mime", u.MIME, "size", u.Size, "filename", u.Filename)
	return u, nil
}

// Info returns a copy of the upload metadata without reading the file.
func (s *Store) Info(id string) (Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.uploads[id]
	if !ok {
		return Upload{}, ErrUploadNotFound
	}
	return *u, nil
}

// Get returns the upload metadata and its bytes.
func (s *Store) Get(id string) (*Upload, []byte, error) {
	s.mu.Lock()
	u, ok := s.uploads[id]
	s.mu.Unlock()
	if !ok {
		return nil, nil, ErrUploadNotFound
	}

	data, err := os.ReadFile(u.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrUploadNotFound
		}
		return nil, nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return u, data, nil
}

// Delete removes an upload. Unknown ids return ErrUploadNotFound.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	u, ok := s.uploads[id]
	delete(s.uploads, id)
	s.mu.Unlock()

	if !ok {
		return ErrUploadNotFound
	}
	if err := os.Remove(u.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove upload: %w", err)
	}
	L_trace("media: removed upload", "id", id)
	return nil
}

// List returns all live uploads, oldest first.
func (s *Store) List() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Upload, 0, len(s.uploads))
	for _, u := range s.uploads {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Sweep removes uploads older than the TTL and returns how many were removed.
// Each removal is announced on bus.TopicUploadExpired.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*Upload
	for id, u := range s.uploads {
		if u.CreatedAt.Before(cutoff) {
			expired = append(expired, u)
			delete(s.uploads, id)
		}
	}
	s.mu.Unlock()

	for _, u := range expired {
		if err := os.Remove(u.path); err != nil && !os.IsNotExist(err) {
			L_trace("media: failed to remove expired upload", "id", u.ID, "error", err)
		}
		bus.PublishEvent(bus.TopicUploadExpired, u.ID)
	}

	if len(expired) > 0 {
		L_debug("media: cleanup completed", "removed", len(expired))
	}
	return len(expired)
}

// IsAudio reports whether a detected type is an audio recording.
func IsAudio(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") || audioContainers[m.String()] {
			return true
		}
	}
	return false
}
