package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/MrWong99/captionlens/internal/store"
)

const defaultHistoryLimit = 100

// Transcript is the response of the transcript endpoint.
type Transcript struct {
	SessionID string        `json:"session_id"`
	Entries   []store.Entry `json:"entries"`
}

// handleTranscript serves the archived lines and summaries of a session.
// The optional limit query parameter bounds how many of the newest entries
// are returned.
func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "transcripts are not archived", http.StatusNotFound)
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	id := r.PathValue("id")
	entries, err := s.store.Recent(r.Context(), id, limit)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	case err != nil:
		s.log.Error("transcript lookup failed", "session_id", id, "err", err)
		http.Error(w, "transcript lookup failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(Transcript{SessionID: id, Entries: entries}); err != nil {
		s.log.Debug("transcript write failed", "err", err)
	}
}
