package api

import (
	"net/http"
	"strconv"

	"github.com/heimdex/timeline-agent/internal/journal"
)

const defaultJournalLimit = 100

func journalHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Journal == nil {
			WriteError(w, http.StatusServiceUnavailable, "journal is not enabled", "JOURNAL_DISABLED")
			return
		}

		q := r.URL.Query()
		var after int64
		if raw := q.Get("after"); raw != "" {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || v < 0 {
				WriteError(w, http.StatusBadRequest, "after must be a non-negative integer", "BAD_REQUEST")
				return
			}
			after = v
		}
		limit := defaultJournalLimit
		if raw := q.Get("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 || v > 1000 {
				WriteError(w, http.StatusBadRequest, "limit must be between 1 and 1000", "BAD_REQUEST")
				return
			}
			limit = v
		}

		entries, err := cfg.Journal.List(r.Context(), after, limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to read journal", "INTERNAL_ERROR")
			return
		}
		if entries == nil {
			entries = []journal.Entry{}
		}
		WriteJSON(w, http.StatusOK, JournalResponse{RunID: cfg.Journal.RunID(), Entries: entries})
	}
}

func pauseSyncHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Dispatcher.Pause()
		w.WriteHeader(http.StatusNoContent)
	}
}

func resumeSyncHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Dispatcher.Resume(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}
}

func engineWSHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Bridge == nil {
			WriteError(w, http.StatusServiceUnavailable, "renderer bridge is not enabled", "BRIDGE_DISABLED")
			return
		}
		cfg.Bridge.Serve(w, r)
	}
}
