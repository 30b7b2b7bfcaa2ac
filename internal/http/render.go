package http

import (
	"bytes"
	"html/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	. "github.com/roelfdiedericks/minutes/internal/logging"
	"github.com/roelfdiedericks/minutes/internal/notes"
)

// Raw HTML in note content is dropped (goldmark's default), so the
// rendered output is safe to mark as template.HTML.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// renderContent renders note content as Markdown. Transcripts are plain
// prose and come out as a single paragraph.
func renderContent(content string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		L_warn("http: markdown render failed, showing plain text", "error", err)
		return template.HTML("<p>" + template.HTMLEscapeString(content) + "</p>")
	}
	return template.HTML(buf.String()) // #nosec G203 - goldmark omits raw HTML
}

// noteView is a note as the UI and the JSON API present it.
type noteView struct {
	DisplayIndex int           `json:"displayIndex"`
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Content      string        `json:"content"`
	HTML         template.HTML `json:"html"`
	Timestamp    string        `json:"timestamp"`
	CreatedAt    time.Time     `json:"createdAt"`
}

func newNoteView(i int, n notes.Note) noteView {
	return noteView{
		DisplayIndex: i,
		ID:           n.ID,
		Title:        n.Title,
		Content:      n.Content,
		HTML:         renderContent(n.Content),
		Timestamp:    n.Timestamp(),
		CreatedAt:    n.CreatedAt,
	}
}

// noteViews converts a newest-first listing; position is the display index.
func noteViews(list []notes.Note) []noteView {
	views := make([]noteView, len(list))
	for i, n := range list {
		views[i] = newNoteView(i, n)
	}
	return views
}

// notesPayload is the body of GET /api/notes and of every websocket push.
type notesPayload struct {
	Notes []noteView `json:"notes"`
	Count int        `json:"count"`
}

func (s *Server) notesPayload() notesPayload {
	views := noteViews(s.controller.Store().List())
	return notesPayload{Notes: views, Count: len(views)}
}

var templateFuncs = template.FuncMap{
	"megabytes": func(n int64) int64 { return n / (1024 * 1024) },
}
