package shell

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindBash(t *testing.T) {
	path, err := FindBash()

	require.NoError(t, err)
	assert.NotEmpty(t, path)
}

func TestFindBash_EnvOverride(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on unix bash locations")
	}

	t.Setenv(EnvBashPath, "/bin/bash")

	path, err := FindBash()

	require.NoError(t, err)
	assert.Equal(t, "/bin/bash", path)
}

func TestFindBash_EnvOverrideInvalidFallsBack(t *testing.T) {
	t.Setenv(EnvBashPath, filepath.Join(t.TempDir(), "no-such-bash"))

	path, err := FindBash()

	require.NoError(t, err)
	assert.NotContains(t, path, "no-such-bash")
}

func TestIsExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are unix-specific")
	}

	dir := t.TempDir()

	plain := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(plain, []byte("#!/bin/bash\n"), 0644))
	assert.False(t, isExecutable(plain))

	script := filepath.Join(dir, "script")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/bash\n"), 0755))
	assert.True(t, isExecutable(script))

	assert.False(t, isExecutable(dir))
	assert.False(t, isExecutable(filepath.Join(dir, "missing")))
}

func TestProbeBash(t *testing.T) {
	assert.True(t, probeBash("bash"))
	assert.False(t, probeBash("definitely-not-a-shell-binary"))
}
