package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/MimeLyc/philby/internal/persistence"
)

// handleCycleStream sends the recent cycles once, then every newly recorded
// cycle as it lands in the audit log.
func (s *Server) handleCycleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var lastSent int64
	send := func(entries []persistence.CycleEntry) bool {
		for _, entry := range entries {
			if entry.Sequence <= lastSent {
				continue
			}
			payload, err := json.Marshal(entry)
			if err != nil {
				return false
			}
			if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", entry.Sequence, payload); err != nil {
				return false
			}
			lastSent = entry.Sequence
		}
		flusher.Flush()
		return true
	}

	initial, err := s.audit.RecentCycles(r.Context(), defaultLimit)
	if err != nil {
		return
	}
	if !send(initial) {
		return
	}

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			last, err := s.audit.LastSequence(r.Context())
			if err != nil {
				return
			}
			if last <= lastSent {
				continue
			}
			entries, err := s.audit.RecentCycles(r.Context(), int(min(last-lastSent, maxLimit)))
			if err != nil {
				return
			}
			if !send(entries) {
				return
			}
		}
	}
}
