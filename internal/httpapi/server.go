// Package httpapi serves a small JSON view of a workspace so a run can be
// watched (and stopped) from a browser or another process.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/MimeLyc/philby/internal/persistence"
	"github.com/MimeLyc/philby/internal/workspace"
)

type auditLog interface {
	RecentCycles(ctx context.Context, n int) ([]persistence.CycleEntry, error)
	RecentRuns(ctx context.Context, n int) ([]persistence.Run, error)
	LastSequence(ctx context.Context) (int64, error)
}

type Server struct {
	ws    *workspace.Workspace
	audit auditLog

	settingsFile string
	pollInterval time.Duration

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithSettingsFile enables GET/PUT /api/settings on the given JSON file
func WithSettingsFile(path string) Option {
	return func(s *Server) {
		s.settingsFile = path
	}
}

// WithPollInterval sets how often the event stream checks for new cycles
func WithPollInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

func NewServer(ws *workspace.Workspace, audit auditLog, opts ...Option) *Server {
	s := &Server{
		ws:           ws,
		audit:        audit,
		pollInterval: time.Second,
		mux:          http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe blocks until the listener fails or Shutdown is called,
// in which case it returns http.ErrServerClosed.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.server.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/history", s.handleHistory)
	s.mux.HandleFunc("/api/runs", s.handleRuns)
	s.mux.HandleFunc("/api/stop", s.handleStop)
	s.mux.HandleFunc("/api/stream", s.handleCycleStream)
	s.mux.HandleFunc("/api/settings", s.handleSettings)
}
