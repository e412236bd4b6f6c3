package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/timeline-agent/internal/command"
	"github.com/heimdex/timeline-agent/internal/editor"
	"github.com/heimdex/timeline-agent/internal/timeline"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Media, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/timeline", timelineHandler(cfg))
		r.Put("/timeline", replaceTimelineHandler(cfg))

		r.Post("/groups", addGroupHandler(cfg))
		r.Delete("/groups/{id}", removeGroupHandler(cfg))
		r.Post("/groups/{id}/mute", toggleMuteHandler(cfg))
		r.Post("/groups/{id}/minimize", minimizeHandler(cfg))

		r.Post("/clips", placeClipHandler(cfg))
		r.Patch("/clips/{id}", updateClipHandler(cfg))
		r.Delete("/clips/{id}", deleteClipHandler(cfg))

		r.Get("/groups/{id}/keyframes/around", keyframesAroundHandler(cfg))
		r.Post("/keyframes", keyframeHandler(cfg))
		r.Delete("/keyframes/{id}", deleteKeyframeHandler(cfg))

		r.Post("/camera/toggle", toggleCameraHandler(cfg))
		r.Post("/camera/aspect-ratio", aspectRatioHandler(cfg))

		r.Get("/media", listMediaHandler(cfg))
		r.Post("/media", createMediaHandler(cfg))
		r.Delete("/media/{id}", deleteMediaHandler(cfg))
		r.Get("/media/{id}/file", mediaFileHandler(cfg))

		r.Post("/segmentation/points", segmentPointHandler(cfg))
		r.Get("/segmentation/{node}", segmentSessionHandler(cfg))
		r.Post("/history/undo", undoHandler(cfg))
		r.Post("/history/redo", redoHandler(cfg))

		r.Get("/drag", dragStateHandler(cfg))
		r.Put("/drag/layout", dragLayoutHandler(cfg))
		r.Post("/drag/{surface}/down", dragDownHandler(cfg))
		r.Post("/drag/{surface}/move", dragMoveHandler(cfg))
		r.Post("/drag/{surface}/up", dragUpHandler(cfg))
		r.Post("/drag/{surface}/cancel", dragCancelHandler(cfg))

		r.Get("/toasts", toastsHandler(cfg))
		r.Get("/engine/journal", journalHandler(cfg))
		r.Post("/engine/pause", pauseSyncHandler(cfg))
		r.Post("/engine/resume", resumeSyncHandler(cfg))

		r.Group(func(r chi.Router) {
			r.Use(LoopbackGuard(cfg.Logger))
			r.Post("/export/edl", exportEDLHandler(cfg))
			r.Get("/engine/ws", engineWSHandler(cfg))
		})
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: int64(time.Since(cfg.StartTime).Seconds()),
		}
		if cfg.Journal != nil {
			resp.RunID = cfg.Journal.RunID()
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, clips := cfg.Editor.Counts()
		resp := StatusResponse{
			Groups:          groups,
			Clips:           clips,
			TimelineVersion: cfg.Editor.Snapshot().Version,
		}
		if cfg.Queue != nil {
			resp.Published = cfg.Queue.Published()
		}
		if cfg.Dispatcher != nil {
			resp.Delivered = cfg.Dispatcher.Delivered()
			resp.Failures = cfg.Dispatcher.Failures()
			resp.SyncPaused = cfg.Dispatcher.IsPaused()
		}
		if cfg.Bridge != nil {
			resp.Renderers = cfg.Bridge.ConnCount()
		}
		if cfg.History != nil {
			resp.CanUndo = cfg.History.CanUndo()
			resp.CanRedo = cfg.History.CanRedo()
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func timelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, cfg.Editor.Snapshot())
	}
}

// replaceTimelineHandler loads a whole scene. The undo history refers to clips
// of the old scene and is cleared.
func replaceTimelineHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var snap timeline.Snapshot
		if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		tl, err := timeline.FromSnapshot(snap)
		if err != nil {
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "INVALID_SCENE")
			return
		}

		cfg.Editor.Replace(tl)
		if cfg.History != nil {
			cfg.History.Clear()
		}
		WriteJSON(w, http.StatusOK, cfg.Editor.Snapshot())
	}
}

func addGroupHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req editor.GroupSpec
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		writeResult(w, http.StatusCreated, cfg.Editor.AddGroup(req))
	}
}

func removeGroupHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, http.StatusOK, cfg.Editor.RemoveGroup(chi.URLParam(r, "id")))
	}
}

func toggleMuteHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, http.StatusOK, cfg.Editor.ToggleMute(chi.URLParam(r, "id")))
	}
}

func minimizeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MinimizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		writeResult(w, http.StatusOK, cfg.Editor.SetMinimized(chi.URLParam(r, "id"), req.Minimized))
	}
}

func placeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req editor.ClipPlacement
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Track.GroupID == "" || req.Track.Kind == "" {
			WriteError(w, http.StatusBadRequest, "track is required", "BAD_REQUEST")
			return
		}
		writeResult(w, http.StatusCreated, cfg.Editor.PlaceClip(req))
	}
}

// updateClipHandler moves or resizes a clip through the undo history, and
// optionally changes its selection.
func updateClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req UpdateClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		current, ok := cfg.Editor.Clip(id)
		if !ok {
			WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
			return
		}

		res := editor.Result{Status: editor.StatusApplied, ID: id}
		if req.Offset != nil || req.Length != nil {
			offset, length := current.Offset, current.Length
			if req.Offset != nil {
				offset = *req.Offset
			}
			if req.Length != nil {
				length = *req.Length
			}
			cmd := command.NewMoveClipCommand(cfg.Editor, id, offset, length)
			if _, err := cfg.History.Do(r.Context(), cmd); err != nil && cmd.Result().Status != editor.StatusNotFound {
				WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
				return
			}
			res = cmd.Result()
			if !res.OK() {
				writeResult(w, http.StatusOK, res)
				return
			}
		}
		if req.Selected != nil && *req.Selected != current.Selected {
			res = cfg.Editor.SelectClip(id, *req.Selected, req.Additive)
		}
		writeResult(w, http.StatusOK, res)
	}
}

func deleteClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, http.StatusOK, cfg.Editor.DeleteClip(chi.URLParam(r, "id")))
	}
}

func keyframeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req KeyframeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.GroupID == "" {
			WriteError(w, http.StatusBadRequest, "group_id is required", "BAD_REQUEST")
			return
		}
		writeResult(w, http.StatusCreated, cfg.Editor.PlaceOrUpdateKeyframe(req.GroupID, req.Offset, req.Transform))
	}
}

func keyframesAroundHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		offset, err := strconv.ParseFloat(r.URL.Query().Get("offset"), 64)
		if err != nil || math.IsNaN(offset) || math.IsInf(offset, 0) {
			WriteError(w, http.StatusBadRequest, "offset must be a number", "BAD_REQUEST")
			return
		}
		prev, next, ok := cfg.Editor.KeyframesAround(chi.URLParam(r, "id"), offset)
		if !ok {
			WriteError(w, http.StatusNotFound, "group not found", "NOT_FOUND")
			return
		}
		WriteJSON(w, http.StatusOK, KeyframesAroundResponse{Prev: prev, Next: next})
	}
}

func deleteKeyframeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, http.StatusOK, cfg.Editor.DeleteKeyframe(chi.URLParam(r, "id")))
	}
}

func toggleCameraHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, http.StatusOK, cfg.Editor.ToggleCameraState())
	}
}

func aspectRatioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AspectRatioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		writeResult(w, http.StatusOK, cfg.Editor.ChangeCameraAspectRatio(req.AspectRatio))
	}
}

func undoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.History.Undo(r.Context()); err != nil {
			writeHistoryError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, HistoryResponse{CanUndo: cfg.History.CanUndo(), CanRedo: cfg.History.CanRedo()})
	}
}

func redoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := cfg.History.Redo(r.Context()); err != nil {
			writeHistoryError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, HistoryResponse{CanUndo: cfg.History.CanUndo(), CanRedo: cfg.History.CanRedo()})
	}
}

func toastsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := ToastsResponse{Toasts: []editor.Toast{}}
		if cfg.Toasts != nil {
			resp.Toasts = cfg.Toasts.Recent()
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

// writeResult maps a mutation outcome to a response. Rejections are 409 and
// missing targets 404; applied and collided results carry the result body.
func writeResult(w http.ResponseWriter, okStatus int, res editor.Result) {
	switch res.Status {
	case editor.StatusApplied:
		WriteJSON(w, okStatus, res)
	case editor.StatusCollidedUpdated:
		WriteJSON(w, http.StatusOK, res)
	case editor.StatusNotFound:
		WriteError(w, http.StatusNotFound, "not found: "+res.ID, "NOT_FOUND")
	default:
		msg := res.Reason
		if msg == "" {
			msg = "placement rejected"
		}
		WriteError(w, http.StatusConflict, msg, "PLACEMENT_REJECTED")
	}
}

func writeHistoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, command.ErrNothingToUndo), errors.Is(err, command.ErrNothingToRedo):
		WriteError(w, http.StatusConflict, err.Error(), "EMPTY_HISTORY")
	case errors.Is(err, command.ErrSuperseded):
		WriteError(w, http.StatusConflict, err.Error(), "SUPERSEDED")
	default:
		WriteError(w, http.StatusBadGateway, err.Error(), "COMMAND_FAILED")
	}
}
