package shell

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout bounds command execution when the caller does not
	// specify one.
	DefaultTimeout = 20 * time.Second

	// TerminateCommand is the reserved command value that forces a session
	// close and relaunch instead of being executed.
	TerminateCommand = "terminate_session"

	pollInterval    = 100 * time.Millisecond
	recoveryTimeout = 2 * time.Second
)

// Config holds Shell construction options.
type Config struct {
	// BashPath overrides bash discovery when set.
	BashPath string

	// WorkDir is the initial working directory (defaults to the user home).
	WorkDir string

	// DefaultTimeout bounds Execute when no explicit timeout is given.
	DefaultTimeout time.Duration

	// QueueSize is the shared output queue capacity.
	QueueSize int

	// Gate is the pre-execution security filter. Nil disables filtering.
	Gate Gate

	// Events receives lifecycle events. Nil discards them.
	Events EventSink
}

// Shell is a persistent interactive bash session. Exactly one command
// executes at a time; concurrent callers serialize on the session lock in
// submission order. The session identifier is stable for the lifetime of the
// Shell, across internal restarts.
type Shell struct {
	cfg      Config
	bashPath string
	id       string
	events   EventSink

	mu   sync.Mutex
	sess *session
}

// New locates bash and launches the session. ErrBashNotFound is terminal:
// the tool cannot function without an interpreter. A spawn failure is not:
// the Shell is still returned and the next Execute retries the launch.
func New(cfg Config) (*Shell, error) {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.Events == nil {
		cfg.Events = NopSink{}
	}

	bashPath := cfg.BashPath
	if bashPath == "" {
		var err error
		bashPath, err = FindBash()
		if err != nil {
			return nil, err
		}
	}

	sh := &Shell{
		cfg:      cfg,
		bashPath: bashPath,
		id:       fmt.Sprintf("bash_session_%d_%d", time.Now().UnixNano(), os.Getpid()),
		events:   cfg.Events,
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()
	if err := sh.launchLocked(); err != nil {
		log.Error().Str("session_id", sh.id).Err(err).Msg("Initial bash launch failed, will retry on first command")
	}

	return sh, nil
}

// ID returns the opaque session identifier, exposed for log correlation.
func (sh *Shell) ID() string {
	return sh.id
}

// State returns the current session state.
func (sh *Shell) State() State {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.sess == nil {
		return StateTerminated
	}
	if !sh.sess.alive() {
		return StateTerminated
	}
	return sh.sess.state
}

// Execute runs one command with the default timeout.
func (sh *Shell) Execute(ctx context.Context, command string) Result {
	return sh.ExecuteTimeout(ctx, command, sh.cfg.DefaultTimeout)
}

// ExecuteTimeout runs one command, blocking until its completion marker is
// observed, the timeout elapses, or the subprocess dies. It never blocks
// indefinitely. The security gate runs before the lock is acquired and a
// blocked command produces no writes to the subprocess.
func (sh *Shell) ExecuteTimeout(ctx context.Context, command string, timeout time.Duration) Result {
	if timeout <= 0 {
		timeout = sh.cfg.DefaultTimeout
	}

	if strings.TrimSpace(command) == TerminateCommand {
		return sh.terminate()
	}

	if sh.cfg.Gate != nil {
		if err := sh.cfg.Gate.Check(command); err != nil {
			log.Warn().Str("session_id", sh.id).Str("command", command).Msg("Command blocked by security gate")
			res := Result{Outcome: OutcomeBlocked, ExitCode: -1, Err: err}
			sh.events.CommandFinished(sh.id, command, res)
			return res
		}
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.events.CommandStarted(sh.id, command)
	start := time.Now()

	res := sh.executeLocked(ctx, command, timeout, true)
	res.Duration = time.Since(start)

	sh.events.CommandFinished(sh.id, command, res)
	return res
}

// terminate handles the reserved terminate_session command: close the
// current session and relaunch, bypassing the marker protocol entirely.
func (sh *Shell) terminate() Result {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	log.Info().Str("session_id", sh.id).Msg("Explicit session termination requested")
	sh.closeLocked(true)
	if err := sh.launchLocked(); err != nil {
		return Result{Outcome: OutcomeStartFailed, ExitCode: -1, Err: err}
	}
	return Result{
		Outcome:  OutcomeSuccess,
		Stdout:   "bash session terminated and restarted",
		ExitCode: 0,
	}
}

// executeLocked performs one command attempt. A broken stdin pipe or a
// subprocess crash triggers exactly one restart-and-retry of the same
// command; a second consecutive failure is returned to the caller as-is.
func (sh *Shell) executeLocked(ctx context.Context, command string, timeout time.Duration, retry bool) Result {
	if sh.sess == nil || !sh.sess.alive() {
		if err := sh.restartLocked(); err != nil {
			return Result{Outcome: OutcomeStartFailed, ExitCode: -1, Err: err}
		}
	}
	sess := sh.sess

	sess.drain()

	marker := newMarker(sess.pid())
	payload := command + "\necho " + marker + " $?\n"

	if _, err := io.WriteString(sess.stdin, payload); err != nil {
		log.Error().Str("session_id", sh.id).Err(err).Msg("Writing command to bash stdin failed")
		if !retry {
			return Result{Outcome: OutcomeStartFailed, ExitCode: -1, Err: fmt.Errorf("%w: %v", ErrWriteFailed, err)}
		}
		if err := sh.restartLocked(); err != nil {
			return Result{Outcome: OutcomeStartFailed, ExitCode: -1, Err: err}
		}
		return sh.executeLocked(ctx, command, timeout, false)
	}

	log.Debug().
		Str("session_id", sh.id).
		Int("pid", sess.pid()).
		Str("command", command).
		Msg("Command written to bash")

	res := sh.collect(ctx, sess, marker, timeout)

	if res.Outcome == OutcomeCrashed && retry {
		log.Warn().Str("session_id", sh.id).Str("command", command).Msg("Session crashed mid-command, restarting and retrying once")
		if err := sh.restartLocked(); err != nil {
			return Result{Outcome: OutcomeStartFailed, ExitCode: -1, Err: err}
		}
		return sh.executeLocked(ctx, command, timeout, false)
	}

	return res
}

// collect polls the shared queue until the marker appears, the timeout
// elapses, or the process is observed dead. The bounded per-pop wait doubles
// as the liveness and wall-clock check.
func (sh *Shell) collect(ctx context.Context, sess *session, marker string, timeout time.Duration) Result {
	scanner := newFrameScanner(marker)
	deadline := time.Now().Add(timeout)
	var stdoutLines, stderrLines []string

	appendLine := func(tag StreamTag, text string) {
		if tag == StreamStdout {
			stdoutLines = append(stdoutLines, text)
		} else {
			stderrLines = append(stderrLines, text)
		}
	}

	for {
		if time.Now().After(deadline) || ctx.Err() != nil {
			return sh.timeoutResult(sess, marker, stdoutLines, stderrLines)
		}

		select {
		case line := <-sess.queue:
			prefix, done := scanner.Feed(line.Text)
			if done {
				if strings.TrimSpace(prefix) != "" {
					appendLine(line.Tag, prefix)
				}
				return Result{
					Outcome:  OutcomeSuccess,
					Stdout:   strings.Join(stdoutLines, "\n"),
					Stderr:   strings.Join(stderrLines, "\n"),
					ExitCode: scanner.ExitCode(),
				}
			}
			appendLine(line.Tag, prefix)

		case <-sess.done:
			// Flush what the readers queued, granting them one poll interval
			// to push output the process wrote just before dying.
			for {
				select {
				case line := <-sess.queue:
					if prefix, done := scanner.Feed(line.Text); done {
						if strings.TrimSpace(prefix) != "" {
							appendLine(line.Tag, prefix)
						}
						return Result{
							Outcome:  OutcomeSuccess,
							Stdout:   strings.Join(stdoutLines, "\n"),
							Stderr:   strings.Join(stderrLines, "\n"),
							ExitCode: scanner.ExitCode(),
						}
					} else {
						appendLine(line.Tag, prefix)
					}
				case <-time.After(pollInterval):
					log.Error().
						Str("session_id", sh.id).
						Int("exit_code", sess.exitCode).
						Msg("Bash process terminated unexpectedly during command")
					sess.state = StateTerminated
					return Result{
						Outcome:  OutcomeCrashed,
						Stdout:   strings.Join(stdoutLines, "\n"),
						Stderr:   strings.Join(stderrLines, "\n"),
						ExitCode: sess.exitCode,
						Err:      ErrSessionTerminated,
					}
				}
			}

		case <-ctx.Done():
			return sh.timeoutResult(sess, marker, stdoutLines, stderrLines)

		case <-time.After(pollInterval):
		}
	}
}

// timeoutResult handles the timeout path: send an interrupt, emit a
// secondary recovery marker, and probe briefly for it. A recovered session
// stays usable; an unrecovered one is marked terminated so the next call
// relaunches. Timeout itself never restarts the session.
func (sh *Shell) timeoutResult(sess *session, marker string, stdoutLines, stderrLines []string) Result {
	log.Error().Str("session_id", sh.id).Msg("Command timed out, attempting interrupt")

	// The interrupt byte is terminated with its own newline so the recovery
	// echo reaches bash as a clean line of its own.
	recoveryMarker := marker + recoverySuffix
	if _, err := io.WriteString(sess.stdin, "\x03\n"); err == nil {
		_, _ = io.WriteString(sess.stdin, "echo "+recoveryMarker+"\n")
	}
	if sess.cmd.Process != nil {
		_ = sess.cmd.Process.Signal(os.Interrupt)
	}

	recovered := false
	dead := false
	recoveryDeadline := time.Now().Add(recoveryTimeout)
	for !recovered && !dead && time.Now().Before(recoveryDeadline) {
		select {
		case line := <-sess.queue:
			if strings.Contains(line.Text, recoveryMarker) {
				recovered = true
			}
		case <-sess.done:
			dead = true
		case <-time.After(pollInterval):
		}
	}

	if recovered {
		log.Info().Str("session_id", sh.id).Msg("Session recovered from timeout via interrupt")
	} else {
		log.Warn().Str("session_id", sh.id).Msg("Timeout recovery marker not observed, session will be relaunched on next command")
		sess.state = StateTerminated
	}

	return Result{
		Outcome:  OutcomeTimeout,
		Stdout:   strings.Join(stdoutLines, "\n"),
		Stderr:   strings.Join(stderrLines, "\n"),
		ExitCode: -1,
	}
}
