package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/timeline-agent/internal/command"
	"github.com/heimdex/timeline-agent/internal/segment"
)

// segmentPointHandler adds a point to the node's segmentation session through
// the undo history. It blocks until the segmenter and renderer answer.
func segmentPointHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Segmenter == nil || cfg.Renderer == nil {
			WriteError(w, http.StatusServiceUnavailable, "segmentation is not configured", "SEGMENTATION_DISABLED")
			return
		}

		var req PointRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.VideoID == "" || req.NodeID == "" {
			WriteError(w, http.StatusBadRequest, "video_id and node_id are required", "BAD_REQUEST")
			return
		}
		if req.Label != segment.LabelBackground && req.Label != segment.LabelForeground {
			WriteError(w, http.StatusBadRequest, "label must be 0 or 1", "BAD_REQUEST")
			return
		}

		session := cfg.Sessions.Open(req.VideoID, req.NodeID, req.Frame)
		cmd := command.NewPointCommand(session, cfg.Segmenter, cfg.Renderer, segment.Point{X: req.X, Y: req.Y, Label: req.Label})

		if _, err := cfg.History.Do(r.Context(), cmd); err != nil {
			var reqErr *segment.RequestError
			switch {
			case errors.As(err, &reqErr) && !reqErr.IsRetryable():
				WriteError(w, http.StatusUnprocessableEntity, err.Error(), "SEGMENTATION_REJECTED")
			case errors.Is(err, command.ErrSuperseded):
				WriteError(w, http.StatusConflict, err.Error(), "SUPERSEDED")
			case errors.Is(err, ErrNoRenderer):
				WriteError(w, http.StatusServiceUnavailable, err.Error(), "NO_RENDERER")
			default:
				WriteError(w, http.StatusBadGateway, err.Error(), "SEGMENTATION_FAILED")
			}
			return
		}

		resp := PointResponse{Session: session.View()}
		if res, ok := cmd.Result(); ok {
			resp.MaskID = res.MaskID
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func segmentSessionHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := cfg.Sessions.Get(chi.URLParam(r, "node"))
		if !ok {
			WriteError(w, http.StatusNotFound, "no segmentation session for node", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, PointResponse{Session: session.View()})
	}
}
