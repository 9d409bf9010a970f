package builtin

import (
	"context"
	"fmt"
	"strings"

	"github.com/adnify/agentcore/internal/hostfacade"
	"github.com/adnify/agentcore/internal/tool"
)

// toLSPPosition translates the 1-indexed {path, line, column} args an LLM
// naturally produces into hostfacade's 0-indexed Position (§6).
func toLSPPosition(args map[string]any) hostfacade.Position {
	path, _ := args["path"].(string)
	line, _ := intArg(args["line"])
	col, _ := intArg(args["column"])
	return hostfacade.Position{Path: path, Line: line - 1, Column: col - 1}
}

func lspPositionParams() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":   map[string]any{"type": "string"},
			"line":   map[string]any{"type": "integer", "description": "1-indexed"},
			"column": map[string]any{"type": "integer", "description": "1-indexed"},
		},
		"required": []string{"path", "line", "column"},
	}
}

func formatLocations(locs []hostfacade.Location) string {
	if len(locs) == 0 {
		return "no results"
	}
	var b strings.Builder
	for _, l := range locs {
		fmt.Fprintf(&b, "%s:%d-%d\n", l.Path, l.StartLine+1, l.EndLine+1)
	}
	return b.String()
}

// GoToDefinitionTool resolves the definition site of the symbol at a
// position.
type GoToDefinitionTool struct {
	LSP hostfacade.LSP
}

func (t *GoToDefinitionTool) Name() string        { return "go_to_definition" }
func (t *GoToDefinitionTool) Description() string { return "Resolve the definition site of the symbol at a 1-indexed position." }
func (t *GoToDefinitionTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *GoToDefinitionTool) Category() tool.Category         { return tool.CategoryLSP }
func (t *GoToDefinitionTool) ParallelSafe() bool              { return true }
func (t *GoToDefinitionTool) Parameters() map[string]any      { return lspPositionParams() }

func (t *GoToDefinitionTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	if t.LSP == nil {
		return &tool.Result{Content: "go_to_definition: no language server attached"}, nil
	}
	locs, err := t.LSP.Definition(ctx, toLSPPosition(args))
	if err != nil {
		return nil, err
	}
	return &tool.Result{Content: formatLocations(locs)}, nil
}

// FindReferencesTool lists all references to the symbol at a position.
type FindReferencesTool struct {
	LSP hostfacade.LSP
}

func (t *FindReferencesTool) Name() string        { return "find_references" }
func (t *FindReferencesTool) Description() string { return "List all references to the symbol at a 1-indexed position." }
func (t *FindReferencesTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *FindReferencesTool) Category() tool.Category         { return tool.CategoryLSP }
func (t *FindReferencesTool) ParallelSafe() bool              { return true }
func (t *FindReferencesTool) Parameters() map[string]any      { return lspPositionParams() }

func (t *FindReferencesTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	if t.LSP == nil {
		return &tool.Result{Content: "find_references: no language server attached"}, nil
	}
	locs, err := t.LSP.References(ctx, toLSPPosition(args))
	if err != nil {
		return nil, err
	}
	return &tool.Result{Content: formatLocations(locs)}, nil
}

// GetHoverInfoTool returns hover text (type info, doc comment) for a
// position.
type GetHoverInfoTool struct {
	LSP hostfacade.LSP
}

func (t *GetHoverInfoTool) Name() string        { return "get_hover_info" }
func (t *GetHoverInfoTool) Description() string { return "Return hover text (type info, doc comment) for the symbol at a 1-indexed position." }
func (t *GetHoverInfoTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *GetHoverInfoTool) Category() tool.Category         { return tool.CategoryLSP }
func (t *GetHoverInfoTool) ParallelSafe() bool              { return true }
func (t *GetHoverInfoTool) Parameters() map[string]any      { return lspPositionParams() }

func (t *GetHoverInfoTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	if t.LSP == nil {
		return &tool.Result{Content: "get_hover_info: no language server attached"}, nil
	}
	text, err := t.LSP.Hover(ctx, toLSPPosition(args))
	if err != nil {
		return nil, err
	}
	return &tool.Result{Content: text}, nil
}

// GetDocumentSymbolsTool lists the outline (functions, types, etc.) of a
// file.
type GetDocumentSymbolsTool struct {
	LSP hostfacade.LSP
}

func (t *GetDocumentSymbolsTool) Name() string        { return "get_document_symbols" }
func (t *GetDocumentSymbolsTool) Description() string { return "List the symbol outline of a file." }
func (t *GetDocumentSymbolsTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *GetDocumentSymbolsTool) Category() tool.Category         { return tool.CategoryLSP }
func (t *GetDocumentSymbolsTool) ParallelSafe() bool              { return true }

func (t *GetDocumentSymbolsTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
		"required":   []string{"path"},
	}
}

func (t *GetDocumentSymbolsTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	if t.LSP == nil {
		return &tool.Result{Content: "get_document_symbols: no language server attached"}, nil
	}
	path, _ := args["path"].(string)
	syms, err := t.LSP.DocumentSymbols(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(syms) == 0 {
		return &tool.Result{Content: "no symbols"}, nil
	}
	var b strings.Builder
	for _, s := range syms {
		fmt.Fprintf(&b, "%s %s:%d\n", s.Kind, s.Name, s.Line+1)
	}
	return &tool.Result{Content: b.String()}, nil
}

// GetLintErrorsTool surfaces diagnostics for a file, used by the agent
// loop's auto-fix pass (§4.11 step h) as well as on-demand LLM calls.
type GetLintErrorsTool struct {
	LSP hostfacade.LSP
}

func (t *GetLintErrorsTool) Name() string        { return "get_lint_errors" }
func (t *GetLintErrorsTool) Description() string { return "Return lint/compiler diagnostics for a file." }
func (t *GetLintErrorsTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *GetLintErrorsTool) Category() tool.Category         { return tool.CategoryLSP }
func (t *GetLintErrorsTool) ParallelSafe() bool              { return true }

func (t *GetLintErrorsTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"path": map[string]any{"type": "string"}},
		"required":   []string{"path"},
	}
}

func (t *GetLintErrorsTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	if t.LSP == nil {
		return &tool.Result{Content: "get_lint_errors: no language server attached"}, nil
	}
	path, _ := args["path"].(string)
	diags, err := t.LSP.Diagnostics(ctx, path)
	if err != nil {
		return nil, err
	}
	if len(diags) == 0 {
		return &tool.Result{Content: "no diagnostics"}, nil
	}
	var b strings.Builder
	for _, d := range diags {
		fmt.Fprintf(&b, "%s:%d: %s: %s\n", d.Path, d.Line+1, d.Severity, d.Message)
	}
	return &tool.Result{Content: b.String()}, nil
}

// CodebaseSearchTool performs embedding-backed semantic search across the
// workspace, distinct from search_files' literal/regex grep.
type CodebaseSearchTool struct {
	Semantic  hostfacade.SemanticSearch
	Workspace string
}

func (t *CodebaseSearchTool) Name() string        { return "codebase_search" }
func (t *CodebaseSearchTool) Description() string { return "Semantically search the codebase for code related to a natural-language query." }
func (t *CodebaseSearchTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *CodebaseSearchTool) Category() tool.Category         { return tool.CategorySearch }
func (t *CodebaseSearchTool) ParallelSafe() bool              { return true }

func (t *CodebaseSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":     map[string]any{"type": "string"},
			"top_k":     map[string]any{"type": "integer"},
		},
		"required": []string{"query"},
	}
}

func (t *CodebaseSearchTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	if t.Semantic == nil {
		return &tool.Result{Content: "codebase_search: no semantic search backend attached"}, nil
	}
	query, _ := args["query"].(string)
	topK := 10
	if v, ok := intArg(args["top_k"]); ok {
		topK = v
	}
	results, err := t.Semantic.Search(ctx, t.Workspace, query, topK)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	for _, r := range results {
		fmt.Fprintf(&b, "%s:%d (%s, score %.3f)\n%s\n\n", r.RelativePath, r.StartLine+1, r.Language, r.Score, r.Content)
	}
	return &tool.Result{Content: b.String()}, nil
}
