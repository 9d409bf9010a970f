package builtin

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/adnify/agentcore/internal/tool"
)

// Match is one hit returned by the search tools, matching the host-facade
// search() contract's {path, line, text} shape (§6).
type Match struct {
	Path string
	Line int
	Text string
}

// SearchInFileTool greps a single file for a pattern.
type SearchInFileTool struct {
	Guard PathGuard
}

func (t *SearchInFileTool) Name() string        { return "search_in_file" }
func (t *SearchInFileTool) Description() string { return "Search a single file for a text or regex pattern." }
func (t *SearchInFileTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *SearchInFileTool) Category() tool.Category         { return tool.CategorySearch }
func (t *SearchInFileTool) ParallelSafe() bool              { return true }

func (t *SearchInFileTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":     map[string]any{"type": "string"},
			"pattern":  map[string]any{"type": "string"},
			"is_regex": map[string]any{"type": "boolean"},
		},
		"required": []string{"path", "pattern"},
	}
}

func (t *SearchInFileTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	path, _ := args["path"].(string)
	pattern, _ := args["pattern"].(string)
	isRegex, _ := args["is_regex"].(bool)

	normalized, err := t.Guard.Normalize(path)
	if err != nil {
		return nil, err
	}
	matches, err := searchFile(normalized, pattern, isRegex)
	if err != nil {
		return nil, err
	}
	return &tool.Result{Content: formatMatches(matches)}, nil
}

func searchFile(path, pattern string, isRegex bool) ([]Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var re *regexp.Regexp
	if isRegex {
		re, err = regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex: %w", err)
		}
	}

	var matches []Match
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		hit := false
		if isRegex {
			hit = re.MatchString(line)
		} else {
			hit = strings.Contains(line, pattern)
		}
		if hit {
			matches = append(matches, Match{Path: path, Line: lineNo, Text: line})
		}
	}
	return matches, scanner.Err()
}

func formatMatches(matches []Match) string {
	if len(matches) == 0 {
		return "no matches"
	}
	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "%s:%d: %s\n", m.Path, m.Line, m.Text)
	}
	return b.String()
}

// SearchFilesTool greps a directory tree for a pattern, optionally filtered
// by glob.
type SearchFilesTool struct {
	Guard PathGuard
}

func (t *SearchFilesTool) Name() string        { return "search_files" }
func (t *SearchFilesTool) Description() string { return "Search files under a directory for a text or regex pattern." }
func (t *SearchFilesTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *SearchFilesTool) Category() tool.Category         { return tool.CategorySearch }
func (t *SearchFilesTool) ParallelSafe() bool              { return true }

func (t *SearchFilesTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":     map[string]any{"type": "string"},
			"pattern":  map[string]any{"type": "string"},
			"is_regex": map[string]any{"type": "boolean"},
			"include":  map[string]any{"type": "string", "description": "glob filter, e.g. *.go"},
		},
		"required": []string{"path", "pattern"},
	}
}

func (t *SearchFilesTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	root, _ := args["path"].(string)
	pattern, _ := args["pattern"].(string)
	isRegex, _ := args["is_regex"].(bool)
	include, _ := args["include"].(string)

	normalized, err := t.Guard.Normalize(root)
	if err != nil {
		return nil, err
	}

	var all []Match
	err = filepath.WalkDir(normalized, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if include != "" {
			if ok, _ := filepath.Match(include, filepath.Base(p)); !ok {
				return nil
			}
		}
		matches, err := searchFile(p, pattern, isRegex)
		if err == nil {
			all = append(all, matches...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(all) > 500 {
		all = all[:500]
	}
	return &tool.Result{Content: formatMatches(all)}, nil
}
