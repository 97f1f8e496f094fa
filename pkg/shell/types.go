package shell

import (
	"fmt"
	"strings"
	"time"
)

// StreamTag identifies which output stream a line was read from.
type StreamTag string

const (
	// StreamStdout tags lines read from the subprocess standard output
	StreamStdout StreamTag = "stdout"
	// StreamStderr tags lines read from the subprocess standard error
	StreamStderr StreamTag = "stderr"
)

// OutputLine is one line of subprocess output together with its stream tag.
// Ordering within a stream is preserved; ordering between the two streams is
// best-effort (interleaved as produced).
type OutputLine struct {
	Tag  StreamTag
	Text string
}

// State is the lifecycle state of a session.
type State int

const (
	// StateStarting means the subprocess is being launched
	StateStarting State = iota
	// StateRunning means the subprocess is live and accepting commands
	StateRunning
	// StateTerminated means the subprocess has exited or been torn down
	StateTerminated
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Outcome classifies the result of one command execution.
type Outcome int

const (
	// OutcomeSuccess means the completion marker was observed
	OutcomeSuccess Outcome = iota
	// OutcomeTimeout means the wall-clock timeout elapsed before the marker
	OutcomeTimeout
	// OutcomeCrashed means the subprocess exited mid-command
	OutcomeCrashed
	// OutcomeBlocked means the security gate rejected the command
	OutcomeBlocked
	// OutcomeStartFailed means no session could be (re)started for the command
	OutcomeStartFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeCrashed:
		return "crashed"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeStartFailed:
		return "start_failed"
	default:
		return "unknown"
	}
}

// Result is the discriminated outcome of one command execution. Stdout and
// Stderr carry full output on success and whatever was captured so far on
// timeout or crash. ExitCode is the command's real exit status when the
// marker protocol could recover it, and -1 when unknown.
type Result struct {
	Outcome  Outcome
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	Err      error
}

// OK reports whether the command ran to completion with exit status zero.
func (r Result) OK() bool {
	return r.Outcome == OutcomeSuccess && r.ExitCode == 0
}

// Render formats the result as a single string suitable for a reasoning-loop
// caller. Each outcome class carries a distinct prefix so downstream logic
// can branch on outcome, not on fuzzy text matching.
func (r Result) Render() string {
	stdout := strings.TrimSpace(r.Stdout)
	stderr := strings.TrimSpace(r.Stderr)

	switch r.Outcome {
	case OutcomeSuccess:
		var b strings.Builder
		if r.ExitCode > 0 {
			fmt.Fprintf(&b, "exit status %d\n", r.ExitCode)
		}
		switch {
		case stdout == "" && stderr == "":
			b.WriteString("command completed with no output")
		case stdout == "":
			b.WriteString("command error (stderr): " + stderr)
		case stderr == "":
			b.WriteString(stdout)
		default:
			b.WriteString("stdout:\n" + stdout + "\nstderr:\n" + stderr)
		}
		return b.String()

	case OutcomeTimeout:
		msg := fmt.Sprintf("timeout: command did not complete within %s", r.Duration.Round(time.Second))
		return msg + renderPartial(stdout, stderr)

	case OutcomeCrashed:
		msg := "crashed: bash session terminated unexpectedly during the command"
		if r.ExitCode >= 0 {
			msg = fmt.Sprintf("%s (exit code %d)", msg, r.ExitCode)
		}
		return msg + renderPartial(stdout, stderr)

	case OutcomeBlocked:
		if r.Err != nil {
			return "blocked: " + r.Err.Error()
		}
		return "blocked: command rejected by security policy"

	case OutcomeStartFailed:
		if r.Err != nil {
			return "error: bash session could not be started: " + r.Err.Error()
		}
		return "error: bash session could not be started"

	default:
		return "error: unknown result"
	}
}

func renderPartial(stdout, stderr string) string {
	var b strings.Builder
	if stdout != "" {
		b.WriteString("\npartial stdout:\n" + stdout)
	}
	if stderr != "" {
		b.WriteString("\npartial stderr:\n" + stderr)
	}
	return b.String()
}

// EventSink receives discrete lifecycle events from the core. The core never
// owns log storage or formatting; observability collaborators implement this
// interface and are injected via Config.
type EventSink interface {
	SessionStarted(sessionID string, pid int)
	SessionRestarted(sessionID string)
	SessionClosed(sessionID string, exitCode int)
	ShutdownEscalated(sessionID string, stage string)
	CommandStarted(sessionID string, command string)
	CommandFinished(sessionID string, command string, result Result)
}

// NopSink is an EventSink that discards all events.
type NopSink struct{}

// SessionStarted implements EventSink.
func (NopSink) SessionStarted(string, int) {}

// SessionRestarted implements EventSink.
func (NopSink) SessionRestarted(string) {}

// SessionClosed implements EventSink.
func (NopSink) SessionClosed(string, int) {}

// ShutdownEscalated implements EventSink.
func (NopSink) ShutdownEscalated(string, string) {}

// CommandStarted implements EventSink.
func (NopSink) CommandStarted(string, string) {}

// CommandFinished implements EventSink.
func (NopSink) CommandFinished(string, string, Result) {}

// MultiSink fans every event out to each wrapped sink in order.
type MultiSink []EventSink

// SessionStarted implements EventSink.
func (m MultiSink) SessionStarted(sessionID string, pid int) {
	for _, s := range m {
		s.SessionStarted(sessionID, pid)
	}
}

// SessionRestarted implements EventSink.
func (m MultiSink) SessionRestarted(sessionID string) {
	for _, s := range m {
		s.SessionRestarted(sessionID)
	}
}

// SessionClosed implements EventSink.
func (m MultiSink) SessionClosed(sessionID string, exitCode int) {
	for _, s := range m {
		s.SessionClosed(sessionID, exitCode)
	}
}

// ShutdownEscalated implements EventSink.
func (m MultiSink) ShutdownEscalated(sessionID string, stage string) {
	for _, s := range m {
		s.ShutdownEscalated(sessionID, stage)
	}
}

// CommandStarted implements EventSink.
func (m MultiSink) CommandStarted(sessionID string, command string) {
	for _, s := range m {
		s.CommandStarted(sessionID, command)
	}
}

// CommandFinished implements EventSink.
func (m MultiSink) CommandFinished(sessionID string, command string, result Result) {
	for _, s := range m {
		s.CommandFinished(sessionID, command, result)
	}
}

// Gate is the pre-execution security filter. Check returns nil to let the
// command through, or an error describing why it was rejected. A rejected
// command never reaches the subprocess.
type Gate interface {
	Check(command string) error
}
