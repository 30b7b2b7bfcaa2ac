// Package http provides the web UI and JSON API for meeting notes.
package http

import (
	"bufio"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/roelfdiedericks/minutes/internal/bus"
	"github.com/roelfdiedericks/minutes/internal/ingest"
	. "github.com/roelfdiedericks/minutes/internal/logging"
	"github.com/roelfdiedericks/minutes/internal/media"
	"github.com/roelfdiedericks/minutes/internal/user"
)

//go:embed html/*.html
var htmlFS embed.FS

// Server represents the HTTP server
type Server struct {
	server      *http.Server
	listener    net.Listener
	controller  *ingest.Controller
	uploads     *media.Store
	users       *user.Registry
	drafts      *draftRegistry
	hub         *Hub
	push        pusher
	templates   *template.Template
	rateLimiter *RateLimiter
	trustProxy  bool
	subs        []bus.SubscriptionID
	wg          sync.WaitGroup
	stopOnce    sync.Once

	// Dev mode: reload templates from disk on each request
	devMode      bool
	templatesDir string
}

// NewServer creates a new HTTP server instance. Nothing listens until Start.
func NewServer(cfg Config, controller *ingest.Controller, uploads *media.Store, users *user.Registry) (*Server, error) {
	if controller == nil || uploads == nil {
		return nil, fmt.Errorf("http: controller and upload store are required")
	}
	if users == nil {
		users = user.NewRegistry(nil)
	}

	listen := cfg.Listen
	if listen == "" {
		listen = DefaultListen
	}
	if err := ValidateListen(listen); err != nil {
		return nil, err
	}

	s := &Server{
		controller:  controller,
		uploads:     uploads,
		users:       users,
		drafts:      newDraftRegistry(),
		hub:         NewHub(),
		rateLimiter: NewRateLimiter(10 * time.Second),
		trustProxy:  cfg.TrustProxy,
		devMode:     cfg.DevMode,
	}

	// In dev mode, find the templates directory from source location
	if s.devMode {
		_, file, _, ok := runtime.Caller(0)
		if !ok {
			return nil, fmt.Errorf("dev mode: failed to determine source directory")
		}
		s.templatesDir = filepath.Join(filepath.Dir(file), "html")
		if _, err := os.Stat(s.templatesDir); err != nil {
			return nil, fmt.Errorf("dev mode: templates directory not found: %s", s.templatesDir)
		}
		L_info("http: dev mode enabled, loading templates from disk", "dir", s.templatesDir)
	}

	if err := s.loadTemplates(); err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	if !users.AuthRequired() {
		L_warn("http: no users configured, web UI is open to anyone who can reach it", "listen", listen)
	}

	s.server = &http.Server{
		Addr:              listen,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute, // large uploads on slow links
		WriteTimeout:      0,               // transcription and websockets set their own limits
		IdleTimeout:       120 * time.Second,
	}

	s.subscribe()
	return s, nil
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Middleware chain: logging -> strip headers -> auth
	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return s.logRequest(s.stripHeaders(s.basicAuth(h)))
	}

	// Notes
	mux.HandleFunc("GET /api/notes", wrap(s.handleListNotes))
	mux.HandleFunc("POST /api/notes", wrap(s.handleCreateNote))
	mux.HandleFunc("DELETE /api/notes", wrap(s.handleClearNotes))
	mux.HandleFunc("DELETE /api/notes/{index}", wrap(s.handleDeleteNote))

	// Audio uploads and their transcription drafts
	mux.HandleFunc("POST /api/uploads", wrap(s.handleUpload))
	mux.HandleFunc("GET /api/uploads/{id}", wrap(s.handleGetUpload))
	mux.HandleFunc("POST /api/uploads/{id}/transcribe", wrap(s.handleTranscribe))
	mux.HandleFunc("POST /api/uploads/{id}/save", wrap(s.handleSaveTranscript))
	mux.HandleFunc("DELETE /api/uploads/{id}", wrap(s.handleDiscardUpload))

	mux.HandleFunc("GET /api/status", wrap(s.handleStatus))
	mux.HandleFunc("GET /api/metrics", wrap(s.handleMetricsAPI))
	mux.HandleFunc("GET /api/ws", wrap(s.handleWebSocket))

	// Web UI
	mux.HandleFunc("GET /{$}", wrap(s.handleIndex))

	return mux
}

// subscribe wires bus events into the server. Note and provider changes
// go out to websocket clients; expired uploads take their drafts with them.
func (s *Server) subscribe() {
	s.subs = append(s.subs,
		bus.SubscribeEvent(bus.TopicNotesChanged, func(e bus.Event) {
			s.pushNotes()
		}),
		bus.SubscribeEvent(bus.TopicSTTApplied, func(e bus.Event) {
			s.pushStatus()
		}),
		bus.SubscribeEvent(bus.TopicTranscribed, s.onTranscribed),
		bus.SubscribeEvent(bus.TopicConfigReloaded, s.onConfigReloaded),
		bus.SubscribeEvent(bus.TopicUploadExpired, func(e bus.Event) {
			id, ok := e.Data.(string)
			if !ok {
				return
			}
			if d := s.drafts.remove(id); d != nil {
				_ = d.Discard()
				L_debug("http: draft dropped with expired upload", "upload", id)
			}
		}),
	)
}

// loadTemplates loads HTML templates (from disk in dev mode, embedded otherwise)
func (s *Server) loadTemplates() error {
	base := template.New("").Funcs(templateFuncs)

	if s.devMode && s.templatesDir != "" {
		tmpl, err := base.ParseGlob(filepath.Join(s.templatesDir, "*.html"))
		if err != nil {
			return fmt.Errorf("failed to parse templates from disk: %w", err)
		}
		s.templates = tmpl
		L_trace("http: loaded templates from disk", "dir", s.templatesDir)
		return nil
	}

	htmlDir, err := fs.Sub(htmlFS, "html")
	if err != nil {
		return fmt.Errorf("failed to get html subdirectory: %w", err)
	}

	tmpl, err := base.ParseFS(htmlDir, "*.html")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}

	s.templates = tmpl
	L_debug("http: loaded embedded templates")
	return nil
}

// reloadTemplatesIfDev reloads templates from disk if in dev mode
func (s *Server) reloadTemplatesIfDev() error {
	if !s.devMode {
		return nil
	}
	return s.loadTemplates()
}

// Start binds the listen address and serves in the background.
// Bind errors are returned here rather than logged from the goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("http: cannot listen on %s: %w", s.server.Addr, err)
	}
	s.listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		L_info("http: server started", "url", "http://"+normalizeAddr(ln.Addr().String()))

		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			L_error("http: server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.server.Addr
}

// Stop gracefully shuts down the HTTP server and discards open drafts.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		for _, id := range s.subs {
			bus.UnsubscribeEvent(id)
		}
		s.hub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err = s.server.Shutdown(ctx); err != nil {
			L_error("http: shutdown error", "error", err)
		}
		s.wg.Wait()

		for id, d := range s.drafts.drain() {
			_ = d.Discard()
			_ = s.uploads.Delete(id)
		}
		L_info("http: server stopped")
	})
	return err
}

// logRequest wraps an HTTP handler to log requests
func (s *Server) logRequest(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(lw, r)

		L_trace("http: request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", lw.statusCode,
			"duration", time.Since(start))
	}
}

// loggingResponseWriter wraps ResponseWriter to capture status code
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.statusCode = code
	lw.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (lw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lw.ResponseWriter
}

// Hijack implements http.Hijacker for the websocket upgrade.
func (lw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("http: response writer does not support hijacking")
	}
	lw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// stripHeaders removes fingerprinting headers
func (s *Server) stripHeaders(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Del("Server")
		w.Header().Del("X-Powered-By")

		handler(w, r)
	}
}
