// Package runlog writes one structured transcript file per agent run. The
// transcript is a JSON-lines zerolog stream: environment snapshot, the task,
// every model turn, every tool invocation and its result, and the final
// answer. It is independent of the process-wide application log.
package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RunLogger records a single agent run to its own transcript file.
type RunLogger struct {
	runID  string
	path   string
	file   *os.File
	logger zerolog.Logger
	start  time.Time
}

// New creates a transcript file under dir and writes the run header. The
// file is named <timestamp>_<run-id>.jsonl.
func New(dir string) (*RunLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run log directory: %w", err)
	}

	runID := uuid.NewString()
	now := time.Now()
	name := fmt.Sprintf("%s_%s.jsonl", now.Format("20060102-150405"), runID)
	path := filepath.Join(dir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	logger := zerolog.New(file).With().Timestamp().Str("run_id", runID).Logger()

	rl := &RunLogger{
		runID:  runID,
		path:   path,
		file:   file,
		logger: logger,
		start:  now,
	}

	hostname, _ := os.Hostname()
	wd, _ := os.Getwd()
	rl.logger.Info().
		Str("event", "run_started").
		Str("hostname", hostname).
		Str("working_dir", wd).
		Str("os", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Msg("Run started")

	return rl, nil
}

// RunID returns the unique identifier of this run.
func (rl *RunLogger) RunID() string {
	return rl.runID
}

// Path returns the transcript file path.
func (rl *RunLogger) Path() string {
	return rl.path
}

// Task records the user task that started the run.
func (rl *RunLogger) Task(task string) {
	rl.logger.Info().Str("event", "task").Str("task", task).Msg("Task received")
}

// ModelTurn records one assistant turn: any free text plus whether the model
// requested a tool call.
func (rl *RunLogger) ModelTurn(turn int, text string, toolRequested bool) {
	rl.logger.Info().
		Str("event", "model_turn").
		Int("turn", turn).
		Str("text", text).
		Bool("tool_requested", toolRequested).
		Msg("Model turn")
}

// ToolCall records a shell command the model asked to run.
func (rl *RunLogger) ToolCall(turn int, command string) {
	rl.logger.Info().
		Str("event", "tool_call").
		Int("turn", turn).
		Str("command", command).
		Msg("Tool call")
}

// ToolResult records the rendered result handed back to the model.
func (rl *RunLogger) ToolResult(turn int, outcome string, rendered string, duration time.Duration) {
	rl.logger.Info().
		Str("event", "tool_result").
		Int("turn", turn).
		Str("outcome", outcome).
		Str("rendered", rendered).
		Dur("duration", duration).
		Msg("Tool result")
}

// Final records the run's final answer.
func (rl *RunLogger) Final(answer string) {
	rl.logger.Info().
		Str("event", "final").
		Str("answer", answer).
		Dur("elapsed", time.Since(rl.start)).
		Msg("Run finished")
}

// Error records a run-level failure.
func (rl *RunLogger) Error(err error) {
	rl.logger.Error().
		Str("event", "run_error").
		Err(err).
		Dur("elapsed", time.Since(rl.start)).
		Msg("Run failed")
}

// Close flushes and closes the transcript file.
func (rl *RunLogger) Close() error {
	return rl.file.Close()
}
