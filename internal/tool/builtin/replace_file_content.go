package builtin

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/adnify/agentcore/internal/tool"
)

// ReplaceFileContentTool replaces a 1-indexed inclusive line range. It
// shares edit_file's read-before-write requirement (§4.5).
type ReplaceFileContentTool struct {
	Guard PathGuard
}

func (t *ReplaceFileContentTool) Name() string        { return "replace_file_content" }
func (t *ReplaceFileContentTool) Description() string { return "Replace a line range in a previously-read file with new content." }
func (t *ReplaceFileContentTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *ReplaceFileContentTool) Category() tool.Category         { return tool.CategoryWrite }
func (t *ReplaceFileContentTool) ParallelSafe() bool              { return false }

func (t *ReplaceFileContentTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":       map[string]any{"type": "string"},
			"start_line": map[string]any{"type": "integer"},
			"end_line":   map[string]any{"type": "integer"},
			"content":    map[string]any{"type": "string"},
		},
		"required": []string{"path", "start_line", "end_line", "content"},
	}
}

func (t *ReplaceFileContentTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	start, _ := intArg(args["start_line"])
	end, _ := intArg(args["end_line"])

	normalized, err := t.Guard.Normalize(path)
	if err != nil {
		return nil, err
	}
	if err := t.Guard.CheckWritable(normalized, false); err != nil {
		return nil, err
	}

	session := sessionFrom(ctx)
	if session == nil || !session.HasRead(normalized) {
		return nil, fmt.Errorf("replace_file_content refused: %s must be read in this session before editing", path)
	}

	raw, err := os.ReadFile(normalized)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	original := string(raw)
	lines := strings.Split(original, "\n")
	if start < 1 || end > len(lines) || start > end {
		return nil, fmt.Errorf("invalid line range [%d,%d] for %s (%d lines)", start, end, path, len(lines))
	}

	replacement := strings.Split(content, "\n")
	newLines := append([]string{}, lines[:start-1]...)
	newLines = append(newLines, replacement...)
	newLines = append(newLines, lines[end:]...)
	updated := strings.Join(newLines, "\n")

	if err := os.WriteFile(normalized, []byte(updated), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}

	return &tool.Result{
		Content: fmt.Sprintf("replaced lines %d-%d in %s", start, end, path),
		FileChange: &tool.FileChangeMeta{
			FilePath:     normalized,
			OldContent:   original,
			NewContent:   updated,
			LinesAdded:   len(replacement),
			LinesRemoved: end - start + 1,
		},
	}, nil
}
