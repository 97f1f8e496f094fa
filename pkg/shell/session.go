package shell

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const handshakeTimeout = 5 * time.Second

// session is the live binding to one running bash subprocess. It is created
// by launch, mutated only under the owning Shell's lock, and discarded after
// teardown. The queue is the only structure shared with the two reader
// goroutines.
type session struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	queue chan OutputLine
	state State

	// done is closed by the monitor goroutine once the process has exited.
	done     chan struct{}
	exitCode int
}

// launch spawns bash with piped streams, starts both stream readers and the
// process monitor, and performs the readiness handshake. A missed handshake
// marker is logged as a warning but does not fail the launch: some shells
// emit banner text that can obscure timing, and the session is usually still
// usable.
func launch(bashPath, workDir string, queueSize int) (*session, error) {
	if workDir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			workDir = home
		}
	}
	if queueSize <= 0 {
		queueSize = 1024
	}

	cmd := exec.Command(bashPath, "-s")
	cmd.Dir = workDir

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrStartFailed, err)
	}

	// The readers own plain os.Pipe read ends: cmd.Wait can then reap the
	// process the moment it exits while the readers drain buffered output to
	// EOF at their own pace. StdoutPipe/StderrPipe would have Wait close the
	// pipes out from under the readers.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrStartFailed, err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrStartFailed, err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	// The child holds the write ends now; dropping the parent's copies lets
	// the readers observe EOF once the process exits.
	stdoutW.Close()
	stderrW.Close()

	s := &session{
		cmd:      cmd,
		stdin:    stdin,
		queue:    make(chan OutputLine, queueSize),
		state:    StateStarting,
		done:     make(chan struct{}),
		exitCode: -1,
	}

	go s.readStream(StreamStdout, stdoutR)
	go s.readStream(StreamStderr, stderrR)
	go s.monitor()

	s.handshake()
	s.state = StateRunning

	return s, nil
}

// readStream blockingly reads whole lines from one output pipe into the
// shared queue. It terminates on end-of-stream or read error and never
// attempts any recovery itself; restart is the lifecycle layer's job.
func (s *session) readStream(tag StreamTag, pipe io.ReadCloser) {
	defer pipe.Close()

	reader := bufio.NewReader(pipe)
	for {
		line, err := reader.ReadString('\n')
		if text := strings.TrimRight(line, "\r\n"); text != "" || err == nil {
			s.queue <- OutputLine{Tag: tag, Text: text}
		}
		if err != nil {
			log.Debug().
				Int("pid", s.pid()).
				Str("stream", string(tag)).
				Msg("Output pipe closed")
			return
		}
	}
}

// monitor waits for the process to exit and records its status.
func (s *session) monitor() {
	err := s.cmd.Wait()
	if s.cmd.ProcessState != nil {
		s.exitCode = s.cmd.ProcessState.ExitCode()
	}
	if err != nil {
		log.Debug().Int("pid", s.pid()).Err(err).Msg("Bash process exited")
	}
	close(s.done)
}

// handshake echoes a one-shot init marker and polls the queue for it,
// discarding any banner output that precedes it.
func (s *session) handshake() {
	marker := newInitMarker()
	if _, err := io.WriteString(s.stdin, "echo "+marker+"\n"); err != nil {
		log.Warn().Int("pid", s.pid()).Err(err).Msg("Failed to write handshake marker")
		return
	}

	deadline := time.Now().Add(handshakeTimeout)
	var banner []string
	for time.Now().Before(deadline) {
		select {
		case line := <-s.queue:
			if strings.Contains(line.Text, marker) {
				log.Info().Int("pid", s.pid()).Msg("Bash session handshake complete")
				return
			}
			banner = append(banner, fmt.Sprintf("(%s) %s", line.Tag, line.Text))
		case <-s.done:
			log.Warn().Int("pid", s.pid()).Msg("Bash process exited during handshake")
			return
		case <-time.After(pollInterval):
		}
	}

	log.Warn().
		Int("pid", s.pid()).
		Str("banner", strings.Join(banner, " ")).
		Msg("Bash session handshake marker not observed, continuing anyway")
}

// alive reports whether the process is still running and the session has not
// been marked terminated.
func (s *session) alive() bool {
	if s.state == StateTerminated {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// drain discards queue entries accumulated since the previous command. This
// guards against leftover bytes from a prior crash or timeout recovery.
func (s *session) drain() {
	dropped := 0
	for {
		select {
		case <-s.queue:
			dropped++
		default:
			if dropped > 0 {
				log.Debug().Int("pid", s.pid()).Int("lines", dropped).Msg("Drained stale output")
			}
			return
		}
	}
}

// waitExit waits up to d for the process to exit.
func (s *session) waitExit(d time.Duration) bool {
	select {
	case <-s.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (s *session) pid() int {
	if s.cmd.Process == nil {
		return 0
	}
	return s.cmd.Process.Pid
}
