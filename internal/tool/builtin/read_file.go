package builtin

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/adnify/agentcore/internal/tool"
)

// ReadFileTool implements the spec's read_file contract: {path, start_line?,
// end_line?} -> numbered lines; marks path as "read" for the read-before-
// write invariant (§4.5).
type ReadFileTool struct {
	Guard PathGuard
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the contents of a file with optional line range, returning numbered lines." }
func (t *ReadFileTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *ReadFileTool) Category() tool.Category         { return tool.CategoryRead }
func (t *ReadFileTool) ParallelSafe() bool              { return true }

func (t *ReadFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":       map[string]any{"type": "string", "description": "File path to read"},
			"start_line": map[string]any{"type": "integer", "description": "1-indexed first line (optional)"},
			"end_line":   map[string]any{"type": "integer", "description": "1-indexed last line (optional)"},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	path, _ := args["path"].(string)
	normalized, err := t.Guard.Normalize(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(normalized)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	start, end := 1, len(lines)
	if v, ok := intArg(args["start_line"]); ok {
		start = v
	}
	if v, ok := intArg(args["end_line"]); ok {
		end = v
	}
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	for i := start; i <= end && i <= len(lines); i++ {
		b.WriteString(strconv.Itoa(i))
		b.WriteString(": ")
		b.WriteString(lines[i-1])
		b.WriteString("\n")
	}

	if s := sessionFrom(ctx); s != nil {
		s.MarkRead(normalized)
	}

	return &tool.Result{Content: b.String()}, nil
}

func intArg(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
