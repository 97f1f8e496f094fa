package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	l, err := New(DefaultConfig())

	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, zerolog.InfoLevel, l.GetZerolog().GetLevel())
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	l, err := New(Config{Level: "bogus", Console: true})

	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, zerolog.InfoLevel, l.GetZerolog().GetLevel())
}

func TestNew_FileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "shelldon.log")

	l, err := New(Config{Level: "debug", File: logFile})
	require.NoError(t, err)

	zl := l.GetZerolog()
	zl.Info().Str("key", "value").Msg("file test")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file test")
	assert.Contains(t, string(data), `"key":"value"`)
}

func TestClose_NoFileIsNoop(t *testing.T) {
	l, err := New(Config{Level: "info", Console: true})
	require.NoError(t, err)

	assert.NoError(t, l.Close())
}
