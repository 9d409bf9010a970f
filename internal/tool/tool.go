// Package tool defines the ToolRegistry contract (SPEC_FULL.md §4.5):
// schema-validated, approval-classed, category-tagged executors.
package tool

import "context"

// ApprovalType gates user consent per tool (§4.5, glossary).
type ApprovalType string

const (
	ApprovalNone      ApprovalType = "none"
	ApprovalTerminal  ApprovalType = "terminal"
	ApprovalDangerous ApprovalType = "dangerous"
)

// Category classifies a tool's effect for dependency-graph and snapshot
// purposes (§4.5, §4.8).
type Category string

const (
	CategoryRead   Category = "read"
	CategoryWrite  Category = "write"
	CategoryDelete Category = "delete"
	CategoryExec   Category = "exec"
	CategorySearch Category = "search"
	CategoryLSP    Category = "lsp"
	CategoryPlan   Category = "plan"
	CategoryNet    Category = "net"
	CategoryUI     Category = "ui"
	CategoryMeta   Category = "meta"
)

// Result is a tool's outcome before dispatcher-level truncation (§4.8).
type Result struct {
	Content string
	// RichContent is opaque UI-side data the dispatcher passes through
	// unmodified.
	RichContent any
	// FileChange is populated by write/delete tools so the dispatcher can
	// update the pending-changes set consumed by an external diff viewer.
	FileChange *FileChangeMeta
	// Interactive tools set WaitingForUser so AgentLoop halts (§4.8).
	WaitingForUser bool
	Interactive    any
}

// FileChangeMeta is the {filePath, oldContent, newContent, linesAdded,
// linesRemoved} metadata described in §4.8 step 7.
type FileChangeMeta struct {
	FilePath     string
	OldContent   string
	NewContent   string
	LinesAdded   int
	LinesRemoved int
}

// Tool is the base interface every built-in or MCP-backed tool implements.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON-schema-like {type, properties, required}
	ApprovalType() ApprovalType
	Category() Category
	ParallelSafe() bool
}

// Executable tools run synchronously given validated arguments.
type Executable interface {
	Tool
	Execute(ctx context.Context, args map[string]any) (*Result, error)
}

// Validate checks args against t's declared parameter schema: every field
// named in the schema's "required" entry must be present. Property types
// and values are not checked. It returns a well-formed error (never a
// panic) on a missing field.
func Validate(t Tool, args map[string]any) error {
	schema := t.Parameters()
	if schema == nil {
		return nil
	}
	for _, name := range requiredFields(schema) {
		if _, ok := args[name]; !ok {
			return &ValidationError{Tool: t.Name(), Field: name, Reason: "missing required field"}
		}
	}
	return nil
}

// requiredFields normalizes schema["required"] across both shapes it appears
// in: a literal []string from a builtin tool's Go-authored schema, and a
// []interface{} from an MCP tool's schema (decoded off the wire by
// encoding/json, which never produces []string for a JSON array).
func requiredFields(schema map[string]any) []string {
	switch v := schema["required"].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// ValidationError is returned by Validate; dispatcher code converts it into
// a tool_error Tool message rather than aborting the loop.
type ValidationError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed for tool " + e.Tool + ", field " + e.Field + ": " + e.Reason
}
