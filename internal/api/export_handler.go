package api

import (
	"encoding/json"
	"net/http"

	"github.com/heimdex/timeline-agent/internal/export"
)

func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.EDLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := export.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		clips, ok := cfg.Editor.Track(req.Track)
		if !ok {
			WriteError(w, http.StatusNotFound, "track not found", "NOT_FOUND")
			return
		}
		if len(clips) == 0 {
			WriteError(w, http.StatusUnprocessableEntity, "track has no clips", "EMPTY_TRACK")
			return
		}

		resp, err := export.WriteEDL(req, clips, cfg.Editor.Snapshot().Settings)
		if err != nil {
			cfg.Logger.Error("edl export failed", "error", err, "group_id", req.Track.GroupID, "track", req.Track.Kind)
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}
