package toolmanager_test

import (
	"context"
	"testing"

	"github.com/adnify/agentcore/internal/tool"
	"github.com/adnify/agentcore/internal/toolmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name     string
	approval tool.ApprovalType
	category tool.Category
}

func (f *fakeTool) Name() string                     { return f.name }
func (f *fakeTool) Description() string              { return "fake" }
func (f *fakeTool) Parameters() map[string]any        { return map[string]any{"required": []string{"path"}} }
func (f *fakeTool) ApprovalType() tool.ApprovalType   { return f.approval }
func (f *fakeTool) Category() tool.Category           { return f.category }
func (f *fakeTool) ParallelSafe() bool                { return true }
func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	return &tool.Result{Content: "ok:" + args["path"].(string)}, nil
}

func TestManager_ExecuteRoutesToBuiltinAndValidates(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(&fakeTool{name: "read_file", approval: tool.ApprovalNone, category: tool.CategoryRead})
	m := toolmanager.New(reg, nil)

	res, err := m.Execute(context.Background(), "read_file", map[string]any{"path": "a.go"})
	require.NoError(t, err)
	assert.Equal(t, "ok:a.go", res.Content)

	_, err = m.Execute(context.Background(), "read_file", map[string]any{})
	assert.Error(t, err, "missing required field should fail validation before execution")

	_, err = m.Execute(context.Background(), "nope", map[string]any{})
	assert.Error(t, err)
}

func TestManager_ApprovalAndCategoryLookup(t *testing.T) {
	reg := tool.NewRegistry()
	reg.Register(&fakeTool{name: "delete_file", approval: tool.ApprovalDangerous, category: tool.CategoryDelete})
	m := toolmanager.New(reg, nil)

	assert.Equal(t, tool.ApprovalDangerous, m.ApprovalType("delete_file"))
	assert.Equal(t, tool.CategoryDelete, m.Category("delete_file"))
	assert.Equal(t, tool.ApprovalDangerous, m.ApprovalType("unknown"), "unknown tools default to requiring approval")
}

func TestIsMCPTool(t *testing.T) {
	assert.True(t, toolmanager.IsMCPTool("mcp_github_search_issues"))
	assert.False(t, toolmanager.IsMCPTool("read_file"))
}
