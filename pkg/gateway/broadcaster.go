package gateway

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shelldon-ai/shelldon/pkg/shell"
)

// EventBroadcaster fans shell lifecycle events out to every connected
// websocket client. It implements shell.EventSink, so it can be wired
// straight into the shell's event configuration.
type EventBroadcaster struct {
	clients *ClientRegistry
	seq     atomic.Int64
}

// NewEventBroadcaster creates a broadcaster over a client registry.
func NewEventBroadcaster(clients *ClientRegistry) *EventBroadcaster {
	return &EventBroadcaster{clients: clients}
}

// Broadcast sends one event to all connected clients.
func (b *EventBroadcaster) Broadcast(event, sessionID string, data map[string]any) {
	msg := EventMessage{
		Type:      "event",
		Event:     event,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
		Seq:       b.seq.Add(1),
	}

	clients := b.clients.All()
	if len(clients) == 0 {
		return
	}

	failed := 0
	for _, client := range clients {
		if err := client.WriteJSON(msg); err != nil {
			log.Warn().
				Err(err).
				Str("client_id", client.ID).
				Str("event", event).
				Msg("Failed to broadcast to client")
			failed++
		}
	}

	log.Debug().
		Str("event", event).
		Int64("seq", msg.Seq).
		Int("clients", len(clients)).
		Int("failed", failed).
		Msg("Event broadcast complete")
}

// SessionStarted implements shell.EventSink.
func (b *EventBroadcaster) SessionStarted(sessionID string, pid int) {
	b.Broadcast("session.started", sessionID, map[string]any{"pid": pid})
}

// SessionRestarted implements shell.EventSink.
func (b *EventBroadcaster) SessionRestarted(sessionID string) {
	b.Broadcast("session.restarted", sessionID, nil)
}

// SessionClosed implements shell.EventSink.
func (b *EventBroadcaster) SessionClosed(sessionID string, exitCode int) {
	b.Broadcast("session.closed", sessionID, map[string]any{"exit_code": exitCode})
}

// ShutdownEscalated implements shell.EventSink.
func (b *EventBroadcaster) ShutdownEscalated(sessionID string, stage string) {
	b.Broadcast("session.shutdown_escalated", sessionID, map[string]any{"stage": stage})
}

// CommandStarted implements shell.EventSink.
func (b *EventBroadcaster) CommandStarted(sessionID string, command string) {
	b.Broadcast("command.started", sessionID, map[string]any{"command": command})
}

// CommandFinished implements shell.EventSink. Output is deliberately not
// streamed; clients that need it fetch it from the command response or the
// history store.
func (b *EventBroadcaster) CommandFinished(sessionID string, command string, result shell.Result) {
	b.Broadcast("command.finished", sessionID, map[string]any{
		"command":     command,
		"outcome":     result.Outcome.String(),
		"exit_code":   result.ExitCode,
		"duration_ms": result.Duration.Milliseconds(),
	})
}
