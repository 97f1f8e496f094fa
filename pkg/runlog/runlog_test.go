package runlog

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CreatesTranscriptWithHeader(t *testing.T) {
	dir := t.TempDir()

	rl, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, rl.Close())

	assert.NotEmpty(t, rl.RunID())
	assert.Contains(t, rl.Path(), rl.RunID())

	data, err := os.ReadFile(rl.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"run_started"`)
	assert.Contains(t, string(data), rl.RunID())
}

func TestRunLogger_RecordsFullRun(t *testing.T) {
	rl, err := New(t.TempDir())
	require.NoError(t, err)

	rl.Task("list files in /tmp")
	rl.ModelTurn(1, "I will list the directory.", true)
	rl.ToolCall(1, "ls /tmp")
	rl.ToolResult(1, "success", "a.txt\nb.txt", 120*time.Millisecond)
	rl.Final("The directory contains a.txt and b.txt.")
	require.NoError(t, rl.Close())

	data, err := os.ReadFile(rl.Path())
	require.NoError(t, err)
	transcript := string(data)

	for _, event := range []string{"task", "model_turn", "tool_call", "tool_result", "final"} {
		assert.Contains(t, transcript, `"event":"`+event+`"`, "missing %s event", event)
	}
	assert.Contains(t, transcript, "ls /tmp")

	// One JSON object per line.
	lines := strings.Split(strings.TrimSpace(transcript), "\n")
	assert.Len(t, lines, 6)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "{"), "not a JSON line: %s", line)
	}
}

func TestNew_DistinctRunsGetDistinctFiles(t *testing.T) {
	dir := t.TempDir()

	a, err := New(dir)
	require.NoError(t, err)
	defer a.Close()

	b, err := New(dir)
	require.NoError(t, err)
	defer b.Close()

	assert.NotEqual(t, a.RunID(), b.RunID())
	assert.NotEqual(t, a.Path(), b.Path())
}

func TestRunLogger_RecordsError(t *testing.T) {
	rl, err := New(t.TempDir())
	require.NoError(t, err)

	rl.Error(os.ErrDeadlineExceeded)
	require.NoError(t, rl.Close())

	data, err := os.ReadFile(rl.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"run_error"`)
}
