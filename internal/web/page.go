package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	appLog "beacon/internal/log"
	"beacon/internal/model"
	"beacon/internal/slideshow"
)

//go:embed templates/*.html
var templateFS embed.FS

var slideTemplate = template.Must(template.ParseFS(templateFS, "templates/slide.html"))

// slidePage is the data rendered by templates/slide.html.
type slidePage struct {
	Version    uint64
	HasEvent   bool
	Event      model.Event
	ImageState slideshow.ImageState
	Spinner    string
	Frames     []string
	TickMillis int
	Width      int
	Height     int
}

func (s *Server) slidePage(snap *slideshow.Snapshot) slidePage {
	p := slidePage{
		Version:    snap.Version,
		Spinner:    snap.SpinnerFrame(),
		Frames:     slideshow.SpinnerFrames[:],
		TickMillis: s.cfg.TickIntervalMillis,
		Width:      s.cfg.WindowWidth,
		Height:     s.cfg.WindowHeight,
	}
	if ev, ok := snap.Current(); ok {
		p.HasEvent = true
		p.Event = ev
		if ev.HasImage() {
			p.ImageState = snap.ImageState(ev.ImageURL)
		} else {
			p.ImageState = slideshow.ImageUnknown
		}
	}
	return p
}

// handleSlide renders the current slide. The page reloads itself over
// /ws whenever the snapshot version changes.
func (s *Server) handleSlide(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := slideTemplate.Execute(&buf, s.slidePage(s.snaps.Snapshot())); err != nil {
		appLog.Error("slide template failed", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}
