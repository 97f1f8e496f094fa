package history

import (
	"github.com/rs/zerolog/log"

	"github.com/shelldon-ai/shelldon/pkg/shell"
)

// Recorder persists finished commands to a Store as they happen. It ignores
// all other lifecycle events.
type Recorder struct {
	shell.NopSink
	store *Store
}

// NewRecorder wraps a Store as a shell.EventSink.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

// CommandFinished implements shell.EventSink.
func (r *Recorder) CommandFinished(sessionID string, command string, result shell.Result) {
	if err := r.store.Record(sessionID, command, result); err != nil {
		log.Warn().Err(err).Msg("Failed to record command in history")
	}
}
