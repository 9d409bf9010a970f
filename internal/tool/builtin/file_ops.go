package builtin

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/adnify/agentcore/internal/tool"
)

// CreateFileOrFolderTool creates a file or, if path ends in "/", a folder
// (§4.5).
type CreateFileOrFolderTool struct {
	Guard PathGuard
}

func (t *CreateFileOrFolderTool) Name() string        { return "create_file_or_folder" }
func (t *CreateFileOrFolderTool) Description() string { return "Create a file (or, for a path ending in '/', a folder)." }
func (t *CreateFileOrFolderTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *CreateFileOrFolderTool) Category() tool.Category         { return tool.CategoryWrite }
func (t *CreateFileOrFolderTool) ParallelSafe() bool              { return false }

func (t *CreateFileOrFolderTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
		"required":   []string{"path"},
	}
}

func (t *CreateFileOrFolderTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	path, _ := args["path"].(string)
	isFolder := strings.HasSuffix(path, "/")

	normalized, err := t.Guard.Normalize(path)
	if err != nil {
		return nil, err
	}
	if err := t.Guard.CheckWritable(normalized, false); err != nil {
		return nil, err
	}

	if isFolder {
		if err := os.MkdirAll(normalized, 0o755); err != nil {
			return nil, fmt.Errorf("creating folder %s: %w", path, err)
		}
		return &tool.Result{Content: fmt.Sprintf("created folder %s", path)}, nil
	}

	if err := os.MkdirAll(parentDir(normalized), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(normalized, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating file %s: %w", path, err)
	}
	f.Close()
	return &tool.Result{
		Content:    fmt.Sprintf("created file %s", path),
		FileChange: &tool.FileChangeMeta{FilePath: normalized, NewContent: ""},
	}, nil
}

func parentDir(p string) string {
	i := strings.LastIndex(p, "/")
	if i <= 0 {
		return "/"
	}
	return p[:i]
}

// DeleteFileOrFolderTool deletes a file, or a folder (and its contents) when
// path ends in "/".
type DeleteFileOrFolderTool struct {
	Guard PathGuard
}

func (t *DeleteFileOrFolderTool) Name() string        { return "delete_file_or_folder" }
func (t *DeleteFileOrFolderTool) Description() string { return "Delete a file (or, for a path ending in '/', a folder and its contents)." }
func (t *DeleteFileOrFolderTool) ApprovalType() tool.ApprovalType { return tool.ApprovalDangerous }
func (t *DeleteFileOrFolderTool) Category() tool.Category         { return tool.CategoryDelete }
func (t *DeleteFileOrFolderTool) ParallelSafe() bool              { return false }

func (t *DeleteFileOrFolderTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
		"required":   []string{"path"},
	}
}

func (t *DeleteFileOrFolderTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	path, _ := args["path"].(string)
	normalized, err := t.Guard.Normalize(path)
	if err != nil {
		return nil, err
	}
	if err := t.Guard.CheckWritable(normalized, false); err != nil {
		return nil, err
	}

	old, _ := os.ReadFile(normalized)
	if err := os.RemoveAll(normalized); err != nil {
		return nil, fmt.Errorf("deleting %s: %w", path, err)
	}
	return &tool.Result{
		Content:    fmt.Sprintf("deleted %s", path),
		FileChange: &tool.FileChangeMeta{FilePath: normalized, OldContent: string(old)},
	}, nil
}

// ListDirectoryTool enumerates immediate directory entries.
type ListDirectoryTool struct {
	Guard PathGuard
}

func (t *ListDirectoryTool) Name() string        { return "list_directory" }
func (t *ListDirectoryTool) Description() string { return "List the immediate entries of a directory." }
func (t *ListDirectoryTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *ListDirectoryTool) Category() tool.Category         { return tool.CategoryRead }
func (t *ListDirectoryTool) ParallelSafe() bool              { return true }

func (t *ListDirectoryTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
		"required":   []string{"path"},
	}
}

func (t *ListDirectoryTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	path, _ := args["path"].(string)
	normalized, err := t.Guard.Normalize(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(normalized)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return &tool.Result{Content: strings.Join(names, "\n")}, nil
}

// GetDirTreeTool enumerates a directory tree up to a bounded depth.
type GetDirTreeTool struct {
	Guard    PathGuard
	MaxDepth int
}

func (t *GetDirTreeTool) Name() string        { return "get_dir_tree" }
func (t *GetDirTreeTool) Description() string { return "Recursively enumerate a directory tree up to a bounded depth." }
func (t *GetDirTreeTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *GetDirTreeTool) Category() tool.Category         { return tool.CategoryRead }
func (t *GetDirTreeTool) ParallelSafe() bool              { return true }

func (t *GetDirTreeTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
		"required":   []string{"path"},
	}
}

func (t *GetDirTreeTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	path, _ := args["path"].(string)
	normalized, err := t.Guard.Normalize(path)
	if err != nil {
		return nil, err
	}
	maxDepth := t.MaxDepth
	if maxDepth == 0 {
		maxDepth = 5
	}

	var b strings.Builder
	root := normalized
	err = walkTree(root, root, 0, maxDepth, &b)
	if err != nil {
		return nil, err
	}
	return &tool.Result{Content: b.String()}, nil
}

func walkTree(root, dir string, depth, maxDepth int, b *strings.Builder) error {
	if depth > maxDepth {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		rel := strings.TrimPrefix(dir+"/"+e.Name(), root+"/")
		if e.IsDir() {
			b.WriteString(rel + "/\n")
			if err := walkTree(root, dir+"/"+e.Name(), depth+1, maxDepth, b); err != nil {
				return err
			}
		} else {
			b.WriteString(rel + "\n")
		}
	}
	return nil
}
