package builtin

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/adnify/agentcore/internal/tool"
)

const (
	searchMarker  = "<<<<<<< SEARCH"
	dividerMarker = "======="
	replaceMarker = ">>>>>>> REPLACE"
)

// EditFileTool applies SEARCH/REPLACE blocks to an existing file. It refuses
// unless the path was previously read in this session (§4.5's
// read-before-write invariant).
type EditFileTool struct {
	Guard PathGuard
}

func (t *EditFileTool) Name() string        { return "edit_file" }
func (t *EditFileTool) Description() string { return "Apply SEARCH/REPLACE block edits to a previously-read file." }
func (t *EditFileTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *EditFileTool) Category() tool.Category         { return tool.CategoryWrite }
func (t *EditFileTool) ParallelSafe() bool              { return false }

func (t *EditFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":                 map[string]any{"type": "string"},
			"search_replace_blocks": map[string]any{"type": "string"},
		},
		"required": []string{"path", "search_replace_blocks"},
	}
}

// searchReplaceBlock is one <<<<<<< SEARCH / ======= / >>>>>>> REPLACE unit.
type searchReplaceBlock struct {
	Search  string
	Replace string
}

func parseSearchReplaceBlocks(spec string) ([]searchReplaceBlock, error) {
	var blocks []searchReplaceBlock
	lines := strings.Split(spec, "\n")
	i := 0
	for i < len(lines) {
		if strings.TrimSpace(lines[i]) != searchMarker {
			i++
			continue
		}
		i++
		var search, replace []string
		for i < len(lines) && strings.TrimSpace(lines[i]) != dividerMarker {
			search = append(search, lines[i])
			i++
		}
		if i >= len(lines) {
			return nil, fmt.Errorf("unterminated SEARCH block (missing %s)", dividerMarker)
		}
		i++ // skip divider
		for i < len(lines) && strings.TrimSpace(lines[i]) != replaceMarker {
			replace = append(replace, lines[i])
			i++
		}
		if i >= len(lines) {
			return nil, fmt.Errorf("unterminated REPLACE block (missing %s)", replaceMarker)
		}
		i++ // skip replace marker
		blocks = append(blocks, searchReplaceBlock{
			Search:  strings.Join(search, "\n"),
			Replace: strings.Join(replace, "\n"),
		})
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no SEARCH/REPLACE blocks found")
	}
	return blocks, nil
}

func (t *EditFileTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	path, _ := args["path"].(string)
	spec, _ := args["search_replace_blocks"].(string)

	normalized, err := t.Guard.Normalize(path)
	if err != nil {
		return nil, err
	}
	if err := t.Guard.CheckWritable(normalized, false); err != nil {
		return nil, err
	}

	session := sessionFrom(ctx)
	if session == nil || !session.HasRead(normalized) {
		return nil, fmt.Errorf("edit_file refused: %s must be read in this session before editing", path)
	}

	blocks, err := parseSearchReplaceBlocks(spec)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(normalized)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	original := string(raw)
	updated := original

	linesAdded, linesRemoved := 0, 0
	for _, b := range blocks {
		if !strings.Contains(updated, b.Search) {
			return nil, fmt.Errorf("SEARCH block not found in %s: %q", path, truncate(b.Search, 80))
		}
		updated = strings.Replace(updated, b.Search, b.Replace, 1)
		linesAdded += strings.Count(b.Replace, "\n") + 1
		linesRemoved += strings.Count(b.Search, "\n") + 1
	}

	if err := os.WriteFile(normalized, []byte(updated), 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}

	return &tool.Result{
		Content: fmt.Sprintf("applied %d block(s) to %s", len(blocks), path),
		FileChange: &tool.FileChangeMeta{
			FilePath:     normalized,
			OldContent:   original,
			NewContent:   updated,
			LinesAdded:   linesAdded,
			LinesRemoved: linesRemoved,
		},
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
