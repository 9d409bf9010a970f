package tool_test

import (
	"context"
	"testing"

	"github.com/adnify/agentcore/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name   string
	schema map[string]any
}

func (s stubTool) Name() string                  { return s.name }
func (s stubTool) Description() string            { return "stub" }
func (s stubTool) Parameters() map[string]any     { return s.schema }
func (s stubTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (s stubTool) Category() tool.Category         { return tool.CategoryRead }
func (s stubTool) ParallelSafe() bool              { return true }

type stubExecutable struct{ stubTool }

func (s stubExecutable) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	return &tool.Result{Content: "ok"}, nil
}

func TestValidateMissingRequiredFieldStringSlice(t *testing.T) {
	st := stubTool{name: "read_file", schema: map[string]any{"required": []string{"path"}}}
	err := tool.Validate(st, map[string]any{})
	require.Error(t, err)
	var verr *tool.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "path", verr.Field)
}

func TestValidateMissingRequiredFieldInterfaceSlice(t *testing.T) {
	// JSON-decoded schemas (MCP tools) store "required" as []interface{}.
	st := stubTool{name: "mcp_fs_read", schema: map[string]any{"required": []interface{}{"path"}}}
	err := tool.Validate(st, map[string]any{})
	assert.Error(t, err)
}

func TestValidatePassesWithAllRequiredFields(t *testing.T) {
	st := stubTool{name: "read_file", schema: map[string]any{"required": []string{"path"}}}
	err := tool.Validate(st, map[string]any{"path": "a.ts"})
	assert.NoError(t, err)
}

func TestValidateNilSchemaAlwaysPasses(t *testing.T) {
	st := stubTool{name: "noop"}
	assert.NoError(t, tool.Validate(st, map[string]any{}))
}

func TestRegistryRegisterGetUnregister(t *testing.T) {
	r := tool.NewRegistry()
	_, ok := r.Get("read_file")
	assert.False(t, ok)

	r.Register(stubExecutable{stubTool{name: "read_file"}})
	got, ok := r.Get("read_file")
	require.True(t, ok)
	assert.Equal(t, "read_file", got.Name())

	r.Unregister("read_file")
	_, ok = r.Get("read_file")
	assert.False(t, ok)
}

func TestRegistryRegisterReplacesSameName(t *testing.T) {
	r := tool.NewRegistry()
	r.Register(stubExecutable{stubTool{name: "read_file", schema: map[string]any{"v": 1}}})
	r.Register(stubExecutable{stubTool{name: "read_file", schema: map[string]any{"v": 2}}})

	got, ok := r.Get("read_file")
	require.True(t, ok)
	assert.Equal(t, 2, got.Parameters()["v"])
}

func TestRegistryDefinitionsAreSortedByName(t *testing.T) {
	r := tool.NewRegistry()
	r.Register(stubExecutable{stubTool{name: "write_file"}})
	r.Register(stubExecutable{stubTool{name: "delete_file_or_folder"}})
	r.Register(stubExecutable{stubTool{name: "edit_file"}})

	defs := r.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "delete_file_or_folder", defs[0].Name())
	assert.Equal(t, "edit_file", defs[1].Name())
	assert.Equal(t, "write_file", defs[2].Name())
}
