package builtin

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/adnify/agentcore/internal/tool"
)

// WriteFileTool overwrites a file with full content (§4.5 write_file).
type WriteFileTool struct {
	Guard PathGuard
}

func (t *WriteFileTool) Name() string                   { return "write_file" }
func (t *WriteFileTool) Description() string            { return "Overwrite a file with the given full content, creating it if absent." }
func (t *WriteFileTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *WriteFileTool) Category() tool.Category         { return tool.CategoryWrite }
func (t *WriteFileTool) ParallelSafe() bool              { return false }

func (t *WriteFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string"},
			"content": map[string]any{"type": "string"},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)

	normalized, err := t.Guard.Normalize(path)
	if err != nil {
		return nil, err
	}
	if err := t.Guard.CheckWritable(normalized, false); err != nil {
		return nil, err
	}

	old, readErr := os.ReadFile(normalized)
	oldContent := ""
	if readErr == nil {
		oldContent = string(old)
	}

	if err := os.WriteFile(normalized, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}

	return &tool.Result{
		Content: fmt.Sprintf("wrote %d bytes to %s", len(content), path),
		FileChange: &tool.FileChangeMeta{
			FilePath:     normalized,
			OldContent:   oldContent,
			NewContent:   content,
			LinesAdded:   strings.Count(content, "\n") + 1,
			LinesRemoved: strings.Count(oldContent, "\n") + 1,
		},
	}, nil
}
