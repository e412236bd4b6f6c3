package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/heimdex/timeline-agent/internal/media"
	"github.com/heimdex/timeline-agent/internal/timeline"
)

func listMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter media.Type
		if raw := r.URL.Query().Get("type"); raw != "" {
			t, err := media.ParseType(raw)
			if err != nil {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
			filter = t
		}

		items, err := cfg.Media.List(r.Context(), filter)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list media", "INTERNAL_ERROR")
			return
		}
		if items == nil {
			items = []*media.Item{}
		}
		WriteJSON(w, http.StatusOK, MediaResponse{Items: items})
	}
}

func createMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MediaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		t, err := media.ParseType(req.Type)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			WriteError(w, http.StatusBadRequest, "name is required", "BAD_REQUEST")
			return
		}
		if req.Length < 0 {
			WriteError(w, http.StatusBadRequest, "length must not be negative", "BAD_REQUEST")
			return
		}

		if req.File != "" {
			if cfg.Assets == nil {
				WriteError(w, http.StatusServiceUnavailable, "asset serving is not configured", "UNAVAILABLE")
				return
			}
			if _, err := cfg.Assets.Resolve(req.File); err != nil {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
		}

		item := &media.Item{
			ID:        req.MediaID,
			Type:      t,
			Name:      req.Name,
			Length:    req.Length,
			Thumbnail: req.Thumbnail,
			ObjectID:  req.ObjectID,
			File:      req.File,
		}
		if item.ID == "" {
			item.ID = timeline.NewID()
		}
		if err := cfg.Media.Create(r.Context(), item); err != nil {
			WriteError(w, http.StatusConflict, "failed to create media item", "CONFLICT")
			return
		}
		WriteJSON(w, http.StatusCreated, item)
	}
}

func deleteMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		item, err := cfg.Media.Get(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if item == nil {
			WriteError(w, http.StatusNotFound, "media item not found", "NOT_FOUND")
			return
		}
		if err := cfg.Media.Delete(r.Context(), id); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func mediaFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Assets == nil {
			WriteError(w, http.StatusServiceUnavailable, "asset serving is not configured", "UNAVAILABLE")
			return
		}
		item, err := cfg.Media.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if item == nil || item.File == "" {
			WriteError(w, http.StatusNotFound, "media file not found", "NOT_FOUND")
			return
		}
		if err := cfg.Assets.ServeFile(w, r, item.File); err != nil {
			cfg.Logger.Error("failed to serve media file", "media_id", item.ID, "error", err)
			WriteError(w, http.StatusInternalServerError, "failed to serve media file", "INTERNAL_ERROR")
		}
	}
}
