package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// CommandRequest asks for one direct shell command execution.
type CommandRequest struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// CommandResponse carries the discriminated result of a direct execution.
type CommandResponse struct {
	Outcome    string `json:"outcome"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
	Rendered   string `json:"rendered"`
	Error      string `json:"error,omitempty"`
}

// TaskRequest asks the agent to work on a task.
type TaskRequest struct {
	Task string `json:"task"`
}

// TaskResponse carries the agent's final answer.
type TaskResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error,omitempty"`
}

// EventMessage is one streamed lifecycle event.
type EventMessage struct {
	Type      string         `json:"type"`
	Event     string         `json:"event"`
	SessionID string         `json:"session_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp int64          `json:"timestamp"`
	Seq       int64          `json:"seq"`
}

// Client is one connected websocket consumer.
type Client struct {
	ID          string
	Conn        *websocket.Conn
	ConnectedAt time.Time

	writeMu sync.Mutex
}

// WriteJSON sends one message to the client. Gorilla connections allow a
// single concurrent writer, so writes are serialized per client.
func (c *Client) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteJSON(v)
}

// ClientRegistry tracks connected websocket clients.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewClientRegistry creates an empty registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*Client)}
}

// Add registers a client.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
}

// Remove drops a client by ID.
func (r *ClientRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
}

// All returns a snapshot of connected clients.
func (r *ClientRegistry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Count returns the number of connected clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
