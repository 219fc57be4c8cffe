// Package server provides the HTTP server for the lookout daemon.
//
// The daemon listens on a unix socket. Clients read snapshots over plain
// HTTP and subscribe to live updates over a websocket at /ws.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/lookout/internal/daemon/store"
	"github.com/grovetools/lookout/pkg/monitor"
)

// Server manages the daemon's HTTP server over a unix socket.
type Server struct {
	logger  *logrus.Entry
	server  *http.Server
	store   *store.Store
	service *monitor.Service

	upgrader websocket.Upgrader
}

// New creates a Server publishing the given store, with the monitor service
// handling mutating requests.
func New(logger *logrus.Entry, st *store.Store, svc *monitor.Service) *Server {
	return &Server{
		logger:  logger,
		store:   st,
		service: svc,
		upgrader: websocket.Upgrader{
			// The unix socket already restricts access to the local user.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.server = &http.Server{Handler: s.Handler()}

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	return s.server.Serve(listener)
}

// Handler builds the daemon's route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/api/state", s.handleGetState)
	mux.HandleFunc("/api/tree", s.handleGetTree)
	mux.HandleFunc("/api/sessions", s.handleGetSessions)
	mux.HandleFunc("/api/repos", s.handleRepos)
	mux.HandleFunc("/api/monitor", s.handleMonitor)
	mux.HandleFunc("/api/expand", s.handleExpand)
	mux.HandleFunc("/ws", s.handleWebsocket)

	return mux
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleGetState returns the complete daemon state as JSON.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.Get())
}

// handleGetTree returns the repository/worktree/session tree as JSON.
func (s *Server) handleGetTree(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.GetTree())
}

// handleGetSessions returns all monitored session states as JSON.
func (s *Server) handleGetSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.Get().Sessions)
}

// handleRepos adds or removes a monitored repository.
// POST {"path": ...} adds, DELETE {"path": ...} removes.
func (s *Server) handleRepos(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		s.service.AddRepository(r.Context(), req.Path)
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		s.service.RemoveRepository(req.Path)
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleMonitor starts or stops tailing a session.
// POST {"session_id", "project_path"} starts, DELETE {"session_id"} stops.
func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID   string `json:"session_id"`
		ProjectPath string `json:"project_path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPost:
		if err := s.service.MonitorSession(req.SessionID, req.ProjectPath); err != nil {
			s.logger.WithError(err).WithField("session", req.SessionID).Error("Failed to start monitoring")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodDelete:
		s.service.StopMonitoring(req.SessionID)
		s.store.RemoveSession(req.SessionID)
		w.WriteHeader(http.StatusOK)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleExpand toggles a worktree's expansion flag in the live tree.
// POST {"path", "expanded"}.
func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Path     string `json:"path"`
		Expanded bool   `json:"expanded"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if !s.service.SetWorktreeExpanded(req.Path, req.Expanded) {
		http.Error(w, "worktree not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleWebsocket streams store updates to the client. On connect the
// client receives a full state snapshot, then one message per update.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	send := make(chan []byte, 64)
	defer close(send)

	go func() {
		for msg := range send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	// Subscribe before snapshotting so no update between the two is lost.
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	if data, err := json.Marshal(store.Update{Type: store.UpdateSnapshot, Payload: s.store.Get()}); err == nil {
		send <- data
	}

	s.logger.Debug("websocket client connected")

	// Drain reads so pings and close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			s.logger.Debug("websocket client disconnected")
			return
		case update, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				s.logger.WithError(err).Error("Failed to marshal update")
				continue
			}
			select {
			case send <- data:
			default:
				// Client too slow, drop the update; the next snapshot
				// request will bring it back in sync.
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
