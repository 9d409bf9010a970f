// Package builtin implements the required built-in tools of SPEC_FULL.md
// §4.5, adapted from the teacher's pkg/tools local tool implementations onto
// the tool.Executable interface.
package builtin

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PathGuard normalizes paths against a workspace root and refuses writes or
// deletes outside it, or to sensitive dot-paths, per §4.5's "Path safety"
// rule.
type PathGuard struct {
	WorkspaceRoot string
}

// Normalize resolves path relative to the workspace root and returns the
// absolute, cleaned path.
func (g PathGuard) Normalize(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(g.WorkspaceRoot, abs)
	}
	return filepath.Clean(abs), nil
}

// CheckWritable enforces the workspace boundary and sensitive-path rules for
// write/delete operations. allowRead relaxes sensitivity checks but never
// the workspace-boundary check (§4.5).
func (g PathGuard) CheckWritable(normalized string, allowRead bool) error {
	root, err := filepath.Abs(g.WorkspaceRoot)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(root, normalized)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("path %q escapes workspace boundary", normalized)
	}
	if allowRead {
		return nil
	}
	base := filepath.Base(normalized)
	if strings.HasPrefix(base, ".") {
		return fmt.Errorf("path %q refers to a sensitive dot-file", normalized)
	}
	for _, sensitive := range []string{"/etc", "/sys", "/proc", "/root/.ssh"} {
		if strings.HasPrefix(normalized, sensitive) {
			return fmt.Errorf("path %q refers to a system directory", normalized)
		}
	}
	return nil
}
