// Package gateway exposes the shell and the agent over HTTP: direct command
// execution, agent tasks, health, metrics, and a websocket stream of session
// lifecycle events.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"

	"github.com/shelldon-ai/shelldon/pkg/shell"
)

// Executor is the slice of the shell surface the gateway drives.
type Executor interface {
	ExecuteTimeout(ctx context.Context, command string, timeout time.Duration) shell.Result
	ID() string
	State() shell.State
}

// TaskRunner runs one agent task to completion.
type TaskRunner interface {
	Run(ctx context.Context, task string) (string, error)
}

// Config holds server configuration.
type Config struct {
	Addr           string
	Shell          Executor
	Runner         TaskRunner   // optional; /execute returns 503 when nil
	MetricsHandler http.Handler // optional; /metrics returns 404 when nil
	SharedSecret   string       // optional; required in X-Shelldon-Secret when set
	CommandTimeout time.Duration

	// EventStream carries lifecycle events to websocket clients. When nil a
	// fresh broadcaster is created; pass a shared one to wire the same
	// broadcaster into the shell's event sink.
	EventStream *EventBroadcaster
}

// Server is the HTTP front end.
type Server struct {
	cfg         Config
	server      *http.Server
	upgrader    websocket.Upgrader
	clients     *ClientRegistry
	broadcaster *EventBroadcaster

	shutdownMu     sync.RWMutex
	isShuttingDown bool
	inFlight       sync.WaitGroup
}

// NewServer creates a new gateway server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("listen address is required")
	}
	if cfg.Shell == nil {
		return nil, fmt.Errorf("shell executor is required")
	}
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = shell.DefaultTimeout
	}

	broadcaster := cfg.EventStream
	if broadcaster == nil {
		broadcaster = NewEventBroadcaster(NewClientRegistry())
	}
	return &Server{
		cfg:         cfg,
		clients:     broadcaster.clients,
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // loopback-only deployment
			},
		},
	}, nil
}

// Events returns the broadcaster so it can be wired into the shell's event
// sink before commands start flowing.
func (s *Server) Events() *EventBroadcaster {
	return s.broadcaster
}

// Handler returns the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/execute", s.withAuth(s.handleExecute))
	mux.HandleFunc("/command", s.withAuth(s.handleCommand))
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/healthz", s.handleHealthz)
	if s.cfg.MetricsHandler != nil {
		mux.Handle("/metrics", s.cfg.MetricsHandler)
	}
	return mux
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}

	log.Info().Str("addr", s.cfg.Addr).Msg("Starting gateway")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Stop drains in-flight requests, closes websocket clients, and shuts the
// listener down.
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	log.Info().Msg("Shutting down gateway")
	s.broadcaster.Broadcast("server.shutdown", "", nil)

	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	for _, client := range s.clients.All() {
		client.Conn.Close()
	}

	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// withAuth enforces the shared secret when one is configured.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.SharedSecret != "" && r.Header.Get("X-Shelldon-Secret") != s.cfg.SharedSecret {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// handleExecute runs one agent task.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.cfg.Runner == nil {
		http.Error(w, "agent is not configured", http.StatusServiceUnavailable)
		return
	}

	var req TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Task == "" {
		http.Error(w, "task is required", http.StatusBadRequest)
		return
	}

	s.inFlight.Add(1)
	defer s.inFlight.Done()

	log.Info().Str("task", req.Task).Msg("Gateway received agent task")

	answer, err := s.cfg.Runner.Run(r.Context(), req.Task)
	resp := TaskResponse{Answer: answer}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

// handleCommand runs one shell command directly, without the agent.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Command == "" {
		http.Error(w, "command is required", http.StatusBadRequest)
		return
	}

	timeout := s.cfg.CommandTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	s.inFlight.Add(1)
	defer s.inFlight.Done()

	res := s.cfg.Shell.ExecuteTimeout(r.Context(), req.Command, timeout)

	resp := CommandResponse{
		Outcome:    res.Outcome.String(),
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		ExitCode:   res.ExitCode,
		DurationMS: res.Duration.Milliseconds(),
		Rendered:   res.Render(),
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHealthz reports liveness and the session state.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"session_id": s.cfg.Shell.ID(),
		"session":    s.cfg.Shell.State().String(),
		"clients":    s.clients.Count(),
	})
}

// handleWebSocket upgrades the connection and streams lifecycle events until
// the client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.shutdownMu.RLock()
	if s.isShuttingDown {
		s.shutdownMu.RUnlock()
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	s.shutdownMu.RUnlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade connection")
		return
	}

	clientID, _ := gonanoid.New()
	client := &Client{
		ID:          clientID,
		Conn:        conn,
		ConnectedAt: time.Now(),
	}
	s.clients.Add(client)

	log.Info().Str("client_id", clientID).Str("ip", r.RemoteAddr).Msg("Client connected")

	go s.readLoop(client)
}

// readLoop drains inbound frames so pings and closes are processed. The
// stream is one-directional; client payloads are ignored.
func (s *Server) readLoop(client *Client) {
	defer func() {
		client.Conn.Close()
		s.clients.Remove(client.ID)
		log.Info().Str("client_id", client.ID).Msg("Client disconnected")
	}()

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("client_id", client.ID).Msg("WebSocket error")
			}
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
