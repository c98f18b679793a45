package httpapi

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/MimeLyc/philby/internal/config"
	"github.com/MimeLyc/philby/internal/workspace"
	"github.com/MimeLyc/philby/pkg/file"
)

const (
	defaultLimit = 10
	maxLimit     = 500
	maskedKey    = "********"
)

type statusResponse struct {
	Workspace     string `json:"workspace"`
	Task          string `json:"task,omitempty"`
	Purpose       string `json:"purpose,omitempty"`
	StopRequested bool   `json:"stop_requested"`
	Running       bool   `json:"running"`
	LastSequence  int64  `json:"last_sequence"`
	LastOutcome   string `json:"last_outcome,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := statusResponse{
		Workspace:     s.ws.Root(),
		StopRequested: s.ws.StopRequested(),
		Running:       file.Exists(filepath.Join(s.ws.Root(), workspace.LockFile)),
	}

	task, err := s.ws.Task()
	if err != nil && !errors.Is(err, workspace.ErrNoTask) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp.Task = task

	if resp.Purpose, err = s.ws.Purpose(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if outcome, ok, err := s.ws.Outcome(); err == nil && ok {
		resp.LastOutcome = outcome
	}
	if resp.LastSequence, err = s.audit.LastSequence(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.audit.RecentCycles(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	runs, err := s.audit.RecentRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// handleStop drops the STOP marker; the running controller halts at its next termination check
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.ws.RequestStop(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"stop_requested": true,
	})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settingsFile == "" {
		writeError(w, http.StatusNotImplemented, "settings file is not configured")
		return
	}

	current, err := config.LoadRuntimeSettingsFile(s.settingsFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, maskSettings(current))
	case http.MethodPut:
		var next config.RuntimeSettings
		if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		// the masked key echoed back from GET means "unchanged"
		if next.LLMAPIKey == maskedKey {
			next.LLMAPIKey = current.LLMAPIKey
		}
		if err := next.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := config.WriteRuntimeSettingsFile(s.settingsFile, next); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, maskSettings(next))
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func maskSettings(settings config.RuntimeSettings) config.RuntimeSettings {
	if settings.LLMAPIKey != "" {
		settings.LLMAPIKey = maskedKey
	}
	return settings
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(n, maxLimit), nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}
