package builtin_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/adnify/agentcore/internal/tool/builtin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	read map[string]bool
}

func newFakeSession() *fakeSession { return &fakeSession{read: map[string]bool{}} }

func (s *fakeSession) MarkRead(path string)    { s.read[path] = true }
func (s *fakeSession) HasRead(path string) bool { return s.read[path] }

func TestReadFileReturnsNumberedLinesAndMarksRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("const x = foo;\nconst y = 2;\n"), 0o644))

	tool := &builtin.ReadFileTool{Guard: builtin.PathGuard{WorkspaceRoot: dir}}
	session := newFakeSession()
	ctx := builtin.WithSession(context.Background(), session)

	res, err := tool.Execute(ctx, map[string]any{"path": "a.ts"})
	require.NoError(t, err)
	assert.Equal(t, "1: const x = foo;\n2: const y = 2;\n", res.Content)
	assert.True(t, session.HasRead(path))
}

func TestReadFileHonorsLineRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\nfour\n"), 0o644))

	tool := &builtin.ReadFileTool{Guard: builtin.PathGuard{WorkspaceRoot: dir}}
	res, err := tool.Execute(context.Background(), map[string]any{"path": "a.ts", "start_line": 2, "end_line": 3})
	require.NoError(t, err)
	assert.Equal(t, "2: two\n3: three\n", res.Content)
}

func TestReadFileMissingFileErrors(t *testing.T) {
	dir := t.TempDir()
	tool := &builtin.ReadFileTool{Guard: builtin.PathGuard{WorkspaceRoot: dir}}
	_, err := tool.Execute(context.Background(), map[string]any{"path": "missing.ts"})
	assert.Error(t, err)
}
