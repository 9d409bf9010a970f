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

func TestEditFileRefusesWithoutPriorRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("const x = foo;\n"), 0o644))

	tool := &builtin.EditFileTool{Guard: builtin.PathGuard{WorkspaceRoot: dir}}
	ctx := builtin.WithSession(context.Background(), newFakeSession())

	_, err := tool.Execute(ctx, map[string]any{
		"path":                  "a.ts",
		"search_replace_blocks": "<<<<<<< SEARCH\nfoo\n=======\nbar\n>>>>>>> REPLACE",
	})
	assert.Error(t, err)
}

func TestEditFileAppliesBlockAfterRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("const x = foo;\n"), 0o644))

	read := &builtin.ReadFileTool{Guard: builtin.PathGuard{WorkspaceRoot: dir}}
	session := newFakeSession()
	ctx := builtin.WithSession(context.Background(), session)
	_, err := read.Execute(ctx, map[string]any{"path": "a.ts"})
	require.NoError(t, err)

	edit := &builtin.EditFileTool{Guard: builtin.PathGuard{WorkspaceRoot: dir}}
	res, err := edit.Execute(ctx, map[string]any{
		"path":                  "a.ts",
		"search_replace_blocks": "<<<<<<< SEARCH\nfoo\n=======\nbar\n>>>>>>> REPLACE",
	})
	require.NoError(t, err)
	require.NotNil(t, res.FileChange)
	assert.Equal(t, "const x = foo;\n", res.FileChange.OldContent)
	assert.Equal(t, "const x = bar;\n", res.FileChange.NewContent)

	updated, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "const x = bar;\n", string(updated))
}

func TestEditFileMissingSearchBlockErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("const x = 1;\n"), 0o644))

	session := newFakeSession()
	session.MarkRead(path)
	ctx := builtin.WithSession(context.Background(), session)

	edit := &builtin.EditFileTool{Guard: builtin.PathGuard{WorkspaceRoot: dir}}
	_, err := edit.Execute(ctx, map[string]any{
		"path":                  "a.ts",
		"search_replace_blocks": "<<<<<<< SEARCH\nnope\n=======\nbar\n>>>>>>> REPLACE",
	})
	assert.Error(t, err)
}

func TestEditFileRefusesOutsideWorkspace(t *testing.T) {
	dir := t.TempDir()
	session := newFakeSession()
	session.MarkRead("/etc/passwd")
	ctx := builtin.WithSession(context.Background(), session)

	edit := &builtin.EditFileTool{Guard: builtin.PathGuard{WorkspaceRoot: dir}}
	_, err := edit.Execute(ctx, map[string]any{
		"path":                  "/etc/passwd",
		"search_replace_blocks": "<<<<<<< SEARCH\nroot\n=======\npwned\n>>>>>>> REPLACE",
	})
	assert.Error(t, err)
}
