package shell

import (
	"io"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// teardownStep is one stage of the escalating shutdown: perform the action,
// then wait up to the bound for the process to exit.
type teardownStep struct {
	name string
	act  func(s *session)
	wait time.Duration
}

var teardownSteps = []teardownStep{
	{
		name: "exit",
		act: func(s *session) {
			_, _ = io.WriteString(s.stdin, "exit\n")
			_ = s.stdin.Close()
		},
		wait: 2 * time.Second,
	},
	{
		name: "terminate",
		act: func(s *session) {
			if s.cmd.Process != nil {
				_ = s.cmd.Process.Signal(syscall.SIGTERM)
			}
		},
		wait: 2 * time.Second,
	},
	{
		name: "kill",
		act: func(s *session) {
			if s.cmd.Process != nil {
				_ = s.cmd.Process.Kill()
			}
		},
		wait: time.Second,
	},
}

// Close shuts the session down with escalating force: a graceful exit
// directive, then SIGTERM, then SIGKILL, each with its own wait bound. It is
// idempotent and safe to call on an already-terminated session or after a
// failed initialization.
func (sh *Shell) Close() {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.closeLocked(false)
}

// closeLocked runs the teardown ladder. The restarting flag suppresses
// duplicate error logging when the close is part of a restart.
func (sh *Shell) closeLocked(restarting bool) {
	sess := sh.sess
	if sess == nil {
		return
	}
	sh.sess = nil

	// Check process exit directly: a session marked terminated after an
	// unrecovered timeout may still have a live, hung process that needs
	// the full teardown ladder.
	select {
	case <-sess.done:
		sess.state = StateTerminated
		log.Debug().Str("session_id", sh.id).Msg("Session already terminated, close is a no-op")
		sh.events.SessionClosed(sh.id, sess.exitCode)
		return
	default:
	}

	action := "Closing"
	if restarting {
		action = "Restarting: closing"
	}
	log.Info().Str("session_id", sh.id).Int("pid", sess.pid()).Msg(action + " bash session")

	for i, step := range teardownSteps {
		step.act(sess)
		if sess.waitExit(step.wait) {
			log.Info().
				Str("session_id", sh.id).
				Str("stage", step.name).
				Int("exit_code", sess.exitCode).
				Msg("Bash session exited")
			sess.state = StateTerminated
			sh.events.SessionClosed(sh.id, sess.exitCode)
			return
		}
		if i < len(teardownSteps)-1 {
			next := teardownSteps[i+1].name
			sh.events.ShutdownEscalated(sh.id, next)
			if !restarting {
				log.Warn().
					Str("session_id", sh.id).
					Str("stage", step.name).
					Str("next", next).
					Msg("Bash session did not exit, escalating")
			}
		}
	}

	// SIGKILL cannot be refused; if the wait still raced, the monitor
	// goroutine reaps the process shortly after.
	log.Error().Str("session_id", sh.id).Int("pid", sess.pid()).Msg("Bash session did not confirm exit after kill")
	sess.state = StateTerminated
	sh.events.SessionClosed(sh.id, sess.exitCode)
}

// launchLocked starts a fresh subprocess and emits the session-started event.
func (sh *Shell) launchLocked() error {
	sess, err := launch(sh.bashPath, sh.cfg.WorkDir, sh.cfg.QueueSize)
	if err != nil {
		return err
	}
	sh.sess = sess

	log.Info().
		Str("session_id", sh.id).
		Int("pid", sess.pid()).
		Str("bash", sh.bashPath).
		Msg("Bash session started")
	sh.events.SessionStarted(sh.id, sess.pid())

	return nil
}

// restartLocked tears down the current session (if any) and launches a
// replacement. It runs under the same lock as Execute, so a relaunch can
// never race an in-flight read of the previous process's pipes.
func (sh *Shell) restartLocked() error {
	sh.closeLocked(true)
	if err := sh.launchLocked(); err != nil {
		return err
	}
	sh.events.SessionRestarted(sh.id)
	return nil
}
