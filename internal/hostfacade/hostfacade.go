// Package hostfacade declares the opaque host capabilities SPEC_FULL.md §6
// lists as "consumed" by the core: LSP queries and semantic search. Unlike
// filesystem, terminal, and grep-based search (which this module implements
// directly in internal/tool/builtin since they have an obvious in-process
// default), these two have no sensible standalone default — a real LSP
// server or embedding index is host infrastructure — so they are modeled as
// interfaces a host wires in, with the core degrading gracefully (a
// tool.Result saying no language server or search backend is attached)
// when nothing is attached.
package hostfacade

import "context"

// Position is a 0-indexed LSP position, per §6's "0-indexed LSP positions"
// rule. Builtin tools translate from the 1-indexed positions LLMs naturally
// produce before calling into this package.
type Position struct {
	Path   string
	Line   int
	Column int
}

// Location is a single definition/reference hit.
type Location struct {
	Path      string
	StartLine int
	EndLine   int
}

// Symbol is one entry of a document-symbol outline.
type Symbol struct {
	Name string
	Kind string
	Line int
}

// Diagnostic is a single lint/compiler finding.
type Diagnostic struct {
	Path     string
	Line     int
	Severity string // error|warning|info|hint
	Message  string
}

// LSP is the language-server capability surface (§6:
// lsp.definition/references/hover/documentSymbol).
type LSP interface {
	Definition(ctx context.Context, pos Position) ([]Location, error)
	References(ctx context.Context, pos Position) ([]Location, error)
	Hover(ctx context.Context, pos Position) (string, error)
	DocumentSymbols(ctx context.Context, path string) ([]Symbol, error)
	Diagnostics(ctx context.Context, path string) ([]Diagnostic, error)
}

// SemanticSearch is the embedding-backed search capability (§6:
// semantic.search(workspace, query, topK)).
type SemanticSearch interface {
	Search(ctx context.Context, workspace, query string, topK int) ([]SemanticResult, error)
}

// SemanticResult mirrors {relativePath, content, language, startLine, score}.
type SemanticResult struct {
	RelativePath string
	Content      string
	Language     string
	StartLine    int
	Score        float64
}
