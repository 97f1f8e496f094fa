package shell

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestShell(t *testing.T, cfg Config) *Shell {
	t.Helper()

	if cfg.WorkDir == "" {
		cfg.WorkDir = t.TempDir()
	}
	sh, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(sh.Close)

	return sh
}

func TestShell_EchoRoundTrip(t *testing.T) {
	sh := newTestShell(t, Config{})

	res := sh.Execute(context.Background(), "echo hello")

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "hello", strings.TrimSpace(res.Stdout))
	assert.Empty(t, strings.TrimSpace(res.Stderr))
	assert.Equal(t, 0, res.ExitCode)
	assert.True(t, res.OK())
}

func TestShell_StatePersistsAcrossCommands(t *testing.T) {
	sh := newTestShell(t, Config{})
	ctx := context.Background()

	res := sh.Execute(ctx, "cd /tmp")
	require.Equal(t, OutcomeSuccess, res.Outcome)

	res = sh.Execute(ctx, "pwd")
	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "/tmp", strings.TrimSpace(res.Stdout))

	res = sh.Execute(ctx, "MY_VAR=persisted")
	require.Equal(t, OutcomeSuccess, res.Outcome)

	res = sh.Execute(ctx, "echo $MY_VAR")
	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "persisted", strings.TrimSpace(res.Stdout))
}

func TestShell_NoOutput(t *testing.T) {
	sh := newTestShell(t, Config{})

	res := sh.Execute(context.Background(), "true")

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Empty(t, strings.TrimSpace(res.Stdout))
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "command completed with no output", res.Render())
}

func TestShell_StderrCaptured(t *testing.T) {
	sh := newTestShell(t, Config{})

	res := sh.Execute(context.Background(), "ls /definitely/not/a/path")

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Empty(t, strings.TrimSpace(res.Stdout))
	assert.NotEmpty(t, strings.TrimSpace(res.Stderr))
	assert.Greater(t, res.ExitCode, 0)
	assert.Contains(t, res.Render(), "command error (stderr):")
}

func TestShell_ExitCodeCaptured(t *testing.T) {
	sh := newTestShell(t, Config{})

	res := sh.Execute(context.Background(), "(exit 42)")

	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, 42, res.ExitCode)
	assert.False(t, res.OK())
}

func TestShell_BothStreams(t *testing.T) {
	sh := newTestShell(t, Config{})

	res := sh.Execute(context.Background(), "echo out; echo err >&2")

	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "out", strings.TrimSpace(res.Stdout))
	assert.Equal(t, "err", strings.TrimSpace(res.Stderr))

	rendered := res.Render()
	assert.Contains(t, rendered, "stdout:")
	assert.Contains(t, rendered, "stderr:")
}

func TestShell_MultilineOutput(t *testing.T) {
	sh := newTestShell(t, Config{})

	res := sh.Execute(context.Background(), "printf 'one\\ntwo\\nthree\\n'")

	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, []string{"one", "two", "three"}, strings.Split(strings.TrimSpace(res.Stdout), "\n"))
}

func TestShell_OutputWithoutTrailingNewline(t *testing.T) {
	// The marker echo lands on the same line as the dangling output; the
	// frame scanner must split it off.
	sh := newTestShell(t, Config{})

	res := sh.Execute(context.Background(), "printf 'dangling'")

	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "dangling", strings.TrimSpace(res.Stdout))
	assert.Equal(t, 0, res.ExitCode)
}

func TestShell_TimeoutBound(t *testing.T) {
	sh := newTestShell(t, Config{})

	start := time.Now()
	res := sh.ExecuteTimeout(context.Background(), "sleep 100", time.Second)
	elapsed := time.Since(start)

	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.Less(t, elapsed, 5*time.Second, "timeout must be bounded, not hang")
	assert.Contains(t, res.Render(), "timeout:")
}

func TestShell_TimeoutCapturesPartialOutput(t *testing.T) {
	sh := newTestShell(t, Config{})

	res := sh.ExecuteTimeout(context.Background(), "echo before-the-hang; sleep 100", time.Second)

	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.Contains(t, res.Stdout, "before-the-hang")
}

func TestShell_UsableAfterTimeout(t *testing.T) {
	sh := newTestShell(t, Config{})
	ctx := context.Background()

	res := sh.ExecuteTimeout(ctx, "sleep 100", time.Second)
	require.Equal(t, OutcomeTimeout, res.Outcome)

	res = sh.Execute(ctx, "echo alive")
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "alive", strings.TrimSpace(res.Stdout))
}

func TestShell_StateSurvivesRecoverableTimeout(t *testing.T) {
	sink := newRecordingSink()
	sh := newTestShell(t, Config{Events: sink})
	ctx := context.Background()

	res := sh.Execute(ctx, "cd /tmp && KEPT_VAR=survived")
	require.Equal(t, OutcomeSuccess, res.Outcome)

	// The hang outlives the timeout but ends inside the recovery window, so
	// the interrupt probe observes its marker and the same process stays up.
	res = sh.ExecuteTimeout(ctx, "sleep 2", time.Second)
	require.Equal(t, OutcomeTimeout, res.Outcome)
	assert.Equal(t, StateRunning, sh.State())

	// Working directory and environment are those of the original process.
	res = sh.Execute(ctx, "pwd; echo $KEPT_VAR")
	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Contains(t, res.Stdout, "/tmp")
	assert.Contains(t, res.Stdout, "survived")

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 0, sink.restarted, "a recovered timeout must not relaunch the session")
	assert.Equal(t, 1, sink.started)
}

func TestShell_CrashRecovery(t *testing.T) {
	sh := newTestShell(t, Config{})
	ctx := context.Background()

	// Killing the interpreter mid-command crashes both the attempt and its
	// automatic retry.
	res := sh.Execute(ctx, "kill -9 $$")
	assert.Equal(t, OutcomeCrashed, res.Outcome)

	// The next call restarts transparently.
	res = sh.Execute(ctx, "echo recovered")
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "recovered", strings.TrimSpace(res.Stdout))
}

func TestShell_ExitCommandCrashes(t *testing.T) {
	sh := newTestShell(t, Config{})

	res := sh.Execute(context.Background(), "exit 7")

	assert.Equal(t, OutcomeCrashed, res.Outcome)
	assert.Contains(t, res.Render(), "crashed:")
}

func TestShell_CrashPreservesTailOutput(t *testing.T) {
	sh := newTestShell(t, Config{})

	res := sh.Execute(context.Background(), "printf 'one\\ntwo\\nthree\\n'; exit 9")

	assert.Equal(t, OutcomeCrashed, res.Outcome)
	assert.Equal(t, 9, res.ExitCode)
	assert.Contains(t, res.Stdout, "three", "output written just before the exit is captured")
}

func TestShell_Serialization(t *testing.T) {
	sh := newTestShell(t, Config{})
	ctx := context.Background()

	const workers = 4
	results := make([]Result, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = sh.Execute(ctx, fmt.Sprintf("echo worker-%d", i))
		}(i)
	}
	wg.Wait()

	// Each caller sees exactly its own output; nothing interleaves.
	for i, res := range results {
		assert.Equal(t, OutcomeSuccess, res.Outcome)
		assert.Equal(t, fmt.Sprintf("worker-%d", i), strings.TrimSpace(res.Stdout))
	}
}

func TestShell_TerminateSession(t *testing.T) {
	sh := newTestShell(t, Config{})
	ctx := context.Background()

	res := sh.Execute(ctx, "cd /tmp")
	require.Equal(t, OutcomeSuccess, res.Outcome)

	res = sh.Execute(ctx, TerminateCommand)
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Contains(t, res.Stdout, "terminated and restarted")

	// The relaunched shell starts over in the configured working directory.
	res = sh.Execute(ctx, "pwd")
	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.NotEqual(t, "/tmp", strings.TrimSpace(res.Stdout))
}

type blockRmGate struct{}

func (blockRmGate) Check(command string) error {
	if strings.HasPrefix(strings.TrimSpace(command), "rm ") {
		return fmt.Errorf("%w: %s", ErrCommandBlocked, command)
	}
	return nil
}

func TestShell_SecurityGate(t *testing.T) {
	sh := newTestShell(t, Config{Gate: blockRmGate{}})
	ctx := context.Background()

	res := sh.Execute(ctx, "rm -rf /")
	assert.Equal(t, OutcomeBlocked, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrCommandBlocked)
	assert.Contains(t, res.Render(), "blocked:")

	// The session is untouched and still serves the next command.
	res = sh.Execute(ctx, "echo still-here")
	assert.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Equal(t, "still-here", strings.TrimSpace(res.Stdout))
}

func TestShell_SessionIDStableAcrossRestarts(t *testing.T) {
	sh := newTestShell(t, Config{})
	ctx := context.Background()

	id := sh.ID()
	require.NotEmpty(t, id)

	res := sh.Execute(ctx, TerminateCommand)
	require.Equal(t, OutcomeSuccess, res.Outcome)

	assert.Equal(t, id, sh.ID())
}

func TestShell_WorkDir(t *testing.T) {
	dir := t.TempDir()
	sh := newTestShell(t, Config{WorkDir: dir})

	res := sh.Execute(context.Background(), "pwd")

	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Contains(t, strings.TrimSpace(res.Stdout), dir)
}

type recordingSink struct {
	mu         sync.Mutex
	started    int
	restarted  int
	closed     int
	commands   []string
	finished   []Outcome
	escalated  []string
	sessionIDs map[string]bool
}

func newRecordingSink() *recordingSink {
	return &recordingSink{sessionIDs: make(map[string]bool)}
}

func (r *recordingSink) SessionStarted(id string, pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	r.sessionIDs[id] = true
}

func (r *recordingSink) SessionRestarted(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restarted++
}

func (r *recordingSink) SessionClosed(id string, exitCode int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
}

func (r *recordingSink) ShutdownEscalated(id, stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.escalated = append(r.escalated, stage)
}

func (r *recordingSink) CommandStarted(id, command string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, command)
}

func (r *recordingSink) CommandFinished(id, command string, res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, res.Outcome)
}

func TestShell_EmitsLifecycleEvents(t *testing.T) {
	sink := newRecordingSink()
	sh := newTestShell(t, Config{Events: sink})
	ctx := context.Background()

	res := sh.Execute(ctx, "echo evented")
	require.Equal(t, OutcomeSuccess, res.Outcome)

	res = sh.Execute(ctx, "kill -9 $$")
	require.Equal(t, OutcomeCrashed, res.Outcome)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.GreaterOrEqual(t, sink.started, 2, "initial launch plus crash restart")
	assert.GreaterOrEqual(t, sink.restarted, 1)
	assert.GreaterOrEqual(t, sink.closed, 1, "crash restart tears down the dead session")
	assert.Contains(t, sink.commands, "echo evented")
	assert.Contains(t, sink.finished, OutcomeSuccess)
	assert.Contains(t, sink.finished, OutcomeCrashed)
}

func TestShell_ContextCancellationBoundsExecute(t *testing.T) {
	sh := newTestShell(t, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	start := time.Now()
	res := sh.ExecuteTimeout(ctx, "sleep 100", time.Minute)

	assert.Equal(t, OutcomeTimeout, res.Outcome)
	assert.Less(t, time.Since(start), 5*time.Second)
}
