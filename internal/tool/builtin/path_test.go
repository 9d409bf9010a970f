package builtin_test

import (
	"testing"

	"github.com/adnify/agentcore/internal/tool/builtin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathGuardNormalizeRelativeJoinsWorkspace(t *testing.T) {
	g := builtin.PathGuard{WorkspaceRoot: "/workspace"}
	got, err := g.Normalize("src/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "/workspace/src/a.ts", got)
}

func TestPathGuardNormalizeAbsolutePassesThrough(t *testing.T) {
	g := builtin.PathGuard{WorkspaceRoot: "/workspace"}
	got, err := g.Normalize("/workspace/a.ts")
	require.NoError(t, err)
	assert.Equal(t, "/workspace/a.ts", got)
}

func TestPathGuardNormalizeEmptyPathErrors(t *testing.T) {
	g := builtin.PathGuard{WorkspaceRoot: "/workspace"}
	_, err := g.Normalize("")
	assert.Error(t, err)
}

func TestPathGuardCheckWritableRefusesEscapeOutsideWorkspace(t *testing.T) {
	g := builtin.PathGuard{WorkspaceRoot: "/workspace"}
	err := g.CheckWritable("/etc/passwd", false)
	assert.Error(t, err)
}

func TestPathGuardCheckWritableRefusesRelativeEscape(t *testing.T) {
	g := builtin.PathGuard{WorkspaceRoot: "/workspace"}
	err := g.CheckWritable("/outside/a.ts", false)
	assert.Error(t, err)
}

func TestPathGuardCheckWritableRefusesDotFile(t *testing.T) {
	g := builtin.PathGuard{WorkspaceRoot: "/workspace"}
	err := g.CheckWritable("/workspace/.env", false)
	assert.Error(t, err)
}

func TestPathGuardCheckWritableAllowReadRelaxesDotFileButNotBoundary(t *testing.T) {
	g := builtin.PathGuard{WorkspaceRoot: "/workspace"}
	assert.NoError(t, g.CheckWritable("/workspace/.env", true))
	assert.Error(t, g.CheckWritable("/etc/passwd", true), "boundary check is never relaxed by allowRead")
}

func TestPathGuardCheckWritableAllowsOrdinaryWorkspaceFile(t *testing.T) {
	g := builtin.PathGuard{WorkspaceRoot: "/workspace"}
	assert.NoError(t, g.CheckWritable("/workspace/src/a.ts", false))
}

func TestPathGuardCheckWritableRefusesSystemDirectories(t *testing.T) {
	g := builtin.PathGuard{WorkspaceRoot: "/"}
	for _, p := range []string{"/etc/hosts", "/sys/kernel", "/proc/1", "/root/.ssh/id_rsa"} {
		assert.Error(t, g.CheckWritable(p, false), "path %s should be refused", p)
	}
}
