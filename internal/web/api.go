package web

import (
	"net/http"
	"time"

	"beacon/internal/model"
	"beacon/internal/slideshow"
)

// eventDTO is the JSON view of one event.
type eventDTO struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Date        string    `json:"date"`
	StartText   string    `json:"start_text"`
	EndText     string    `json:"end_text"`
	Location    string    `json:"location,omitempty"`
	LocationURL string    `json:"location_url,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Category    string    `json:"category,omitempty"`
	Featured    bool      `json:"featured"`
}

// snapshotDTO is the JSON view of an engine snapshot.
type snapshotDTO struct {
	Version          uint64                          `json:"version"`
	Generation       uint64                          `json:"generation"`
	Index            int                             `json:"index"`
	Count            int                             `json:"count"`
	Current          *eventDTO                       `json:"current"`
	Spinner          string                          `json:"spinner"`
	FetchInFlight    bool                            `json:"fetch_in_flight"`
	LastRefresh      time.Time                       `json:"last_refresh"`
	LastSlideAdvance time.Time                       `json:"last_slide_advance"`
	LastError        string                          `json:"last_error,omitempty"`
	Images           map[string]slideshow.ImageState `json:"images"`
}

func toEventDTO(ev model.Event) eventDTO {
	return eventDTO{
		ID:          ev.ID,
		Title:       ev.Title,
		Description: ev.Description,
		Start:       ev.Start,
		End:         ev.End,
		Date:        ev.Date,
		StartText:   ev.StartText,
		EndText:     ev.EndText,
		Location:    ev.Location,
		LocationURL: ev.LocationURL,
		ImageURL:    ev.ImageURL,
		Category:    ev.Category,
		Featured:    ev.Featured,
	}
}

func toSnapshotDTO(snap *slideshow.Snapshot) snapshotDTO {
	dto := snapshotDTO{
		Version:          snap.Version,
		Generation:       snap.Generation,
		Index:            snap.Index,
		Count:            snap.Count(),
		Spinner:          snap.SpinnerFrame(),
		FetchInFlight:    snap.FetchInFlight,
		LastRefresh:      snap.LastRefresh,
		LastSlideAdvance: snap.LastSlideAdvance,
		LastError:        snap.LastError,
		Images:           make(map[string]slideshow.ImageState),
	}
	if cur, ok := snap.Current(); ok {
		ev := toEventDTO(cur)
		dto.Current = &ev
	}
	for _, ev := range snap.Events {
		if ev.HasImage() {
			dto.Images[ev.ImageURL] = snap.ImageState(ev.ImageURL)
		}
	}
	return dto
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toSnapshotDTO(s.snaps.Snapshot()))
}

func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	snap := s.snaps.Snapshot()
	out := make([]eventDTO, 0, snap.Count())
	for _, ev := range snap.Events {
		out = append(out, toEventDTO(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleImage serves cached image bytes.
//
// GET /api/image?url=...
//   - 200 with the bytes when loaded
//   - 202 while the image is referenced but not loaded (or failed)
//   - 404 when no current event references the URL
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "missing url parameter")
		return
	}

	snap := s.snaps.Snapshot()
	switch snap.ImageState(url) {
	case slideshow.ImageLoaded:
		data, _ := snap.Image(url)
		w.Header().Set("Content-Type", http.DetectContentType(data))
		w.Header().Set("Cache-Control", "private, max-age=60")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case slideshow.ImagePending:
		writeError(w, http.StatusAccepted, "image not loaded")
	default:
		writeError(w, http.StatusNotFound, "image not referenced by any event")
	}
}
