package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/timeline-agent/internal/drag"
)

// DragSurfaces keeps one drag controller per named UI surface, all sharing a
// single session. The browser owns the window listeners, so controllers get no Window.
type DragSurfaces struct {
	session   *drag.Session
	target    drag.Target
	threshold float64
	logger    *slog.Logger

	mu          sync.Mutex
	layout      drag.StaticLayout
	controllers map[string]*drag.Controller
}

func NewDragSurfaces(target drag.Target, threshold float64, logger *slog.Logger) *DragSurfaces {
	return &DragSurfaces{
		session:     drag.NewSession(),
		target:      target,
		threshold:   threshold,
		logger:      logger,
		controllers: make(map[string]*drag.Controller),
	}
}

func (d *DragSurfaces) Session() *drag.Session {
	return d.session
}

func (d *DragSurfaces) Controller(surface string) *drag.Controller {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.controllers[surface]
	if !ok {
		c = drag.NewController(surface, d.session, d.target, d.layout, nil, d.threshold, d.logger)
		d.controllers[surface] = c
	}
	return c
}

// SetLayout replaces the hit-test geometry of every surface.
func (d *DragSurfaces) SetLayout(l drag.StaticLayout) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.layout = l
	for _, c := range d.controllers {
		c.SetLayout(l)
	}
}

func dragStateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Drag.Session().State())
	}
}

func dragLayoutHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var layout drag.StaticLayout
		if err := json.NewDecoder(r.Body).Decode(&layout); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		cfg.Drag.SetLayout(layout)
		w.WriteHeader(http.StatusNoContent)
	}
}

func dragDownHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DragDownRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		var item drag.Item
		switch {
		case req.Item != nil:
			item = *req.Item
		case req.MediaID != "":
			m, err := cfg.Media.Get(r.Context(), req.MediaID)
			if err != nil {
				WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
				return
			}
			if m == nil {
				WriteError(w, http.StatusNotFound, "media item not found", "NOT_FOUND")
				return
			}
			item = m.DragItem()
		default:
			WriteError(w, http.StatusBadRequest, "item or media_id is required", "BAD_REQUEST")
			return
		}

		c := cfg.Drag.Controller(chi.URLParam(r, "surface"))
		started := c.PointerDown(req.Event, item)
		WriteJSON(w, http.StatusOK, DragDownResponse{Started: started, State: cfg.Drag.Session().State()})
	}
}

func dragMoveHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DragEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		cfg.Drag.Controller(chi.URLParam(r, "surface")).HandlePointerMove(req.Event)
		WriteJSON(w, http.StatusOK, cfg.Drag.Session().State())
	}
}

func dragUpHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req DragEventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		drop := cfg.Drag.Controller(chi.URLParam(r, "surface")).HandlePointerUp(req.Event)
		WriteJSON(w, http.StatusOK, drop)
	}
}

func dragCancelHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Drag.Controller(chi.URLParam(r, "surface")).HandleLostCapture()
		w.WriteHeader(http.StatusNoContent)
	}
}
