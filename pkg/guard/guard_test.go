package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelldon-ai/shelldon/pkg/shell"
)

func TestGuard_BlocksDestructiveCommands(t *testing.T) {
	g := New()

	blocked := []string{
		"rm -rf /",
		"rm file.txt",
		"RM -RF /home",
		"  rm -r build/",
		"mv /etc/passwd /dev/null",
		"mkfs.ext4 /dev/sda1",
		"fdisk /dev/sda",
		"dd if=/dev/zero of=/dev/sda",
		"shutdown -h now",
		"reboot",
	}

	for _, cmd := range blocked {
		err := g.Check(cmd)
		assert.ErrorIs(t, err, shell.ErrCommandBlocked, "expected %q to be blocked", cmd)
	}
}

func TestGuard_InteractiveFlagAllowsThrough(t *testing.T) {
	g := New()

	allowed := []string{
		"rm -i /tmp/foo",
		"rm --interactive /tmp/foo",
		"rm -i -r /tmp/dir",
		"mv -i a.txt b.txt",
		"mv --interactive a b",
	}

	for _, cmd := range allowed {
		assert.NoError(t, g.Check(cmd), "expected %q to pass", cmd)
	}
}

func TestGuard_ConfirmFlagMustBeStandaloneToken(t *testing.T) {
	g := New()

	// "-rfi" is not the interactive flag.
	err := g.Check("rm -rfi /tmp/foo")
	assert.ErrorIs(t, err, shell.ErrCommandBlocked)
}

func TestGuard_OrdinaryCommandsPass(t *testing.T) {
	g := New()

	for _, cmd := range []string{
		"ls -la",
		"pwd",
		"cat file.txt",
		"echo hello",
		"mkdir -p /tmp/work",
		"grep -r pattern .",
		"rmdir empty",    // prefix is "rm " with a space, rmdir differs
		"move-helper.sh", // same for "mv "
		"",
		"   ",
	} {
		assert.NoError(t, g.Check(cmd), "expected %q to pass", cmd)
	}
}

func TestGuard_ExtraPrefixes(t *testing.T) {
	g := New("curl ", "chmod 777")

	assert.ErrorIs(t, g.Check("curl http://example.com"), shell.ErrCommandBlocked)
	assert.ErrorIs(t, g.Check("chmod 777 /etc"), shell.ErrCommandBlocked)
	assert.NoError(t, g.Check("chmod 644 file"))
}

func TestGuard_Reload(t *testing.T) {
	g := New()
	require.NoError(t, g.Check("wget http://example.com"))

	g.Reload([]string{"wget "})
	assert.ErrorIs(t, g.Check("wget http://example.com"), shell.ErrCommandBlocked)

	g.Reload(nil)
	assert.NoError(t, g.Check("wget http://example.com"))

	// Defaults survive every reload.
	assert.ErrorIs(t, g.Check("rm -rf /"), shell.ErrCommandBlocked)
}

func TestGuard_ImplementsShellGate(t *testing.T) {
	var _ shell.Gate = New()
}
