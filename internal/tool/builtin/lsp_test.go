package builtin_test

import (
	"context"
	"testing"

	"github.com/adnify/agentcore/internal/hostfacade"
	"github.com/adnify/agentcore/internal/tool/builtin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLSP struct {
	gotPosition hostfacade.Position
	locations   []hostfacade.Location
	hoverText   string
	symbols     []hostfacade.Symbol
	diagnostics []hostfacade.Diagnostic
}

func (f *fakeLSP) Definition(ctx context.Context, pos hostfacade.Position) ([]hostfacade.Location, error) {
	f.gotPosition = pos
	return f.locations, nil
}
func (f *fakeLSP) References(ctx context.Context, pos hostfacade.Position) ([]hostfacade.Location, error) {
	f.gotPosition = pos
	return f.locations, nil
}
func (f *fakeLSP) Hover(ctx context.Context, pos hostfacade.Position) (string, error) {
	f.gotPosition = pos
	return f.hoverText, nil
}
func (f *fakeLSP) DocumentSymbols(ctx context.Context, path string) ([]hostfacade.Symbol, error) {
	return f.symbols, nil
}
func (f *fakeLSP) Diagnostics(ctx context.Context, path string) ([]hostfacade.Diagnostic, error) {
	return f.diagnostics, nil
}

func TestGoToDefinitionTranslatesToZeroIndexedPosition(t *testing.T) {
	lsp := &fakeLSP{locations: []hostfacade.Location{{Path: "a.ts", StartLine: 4, EndLine: 4}}}
	tool := &builtin.GoToDefinitionTool{LSP: lsp}

	res, err := tool.Execute(context.Background(), map[string]any{"path": "a.ts", "line": 5, "column": 3})
	require.NoError(t, err)
	assert.Equal(t, hostfacade.Position{Path: "a.ts", Line: 4, Column: 2}, lsp.gotPosition)
	assert.Equal(t, "a.ts:5-5\n", res.Content)
}

func TestGoToDefinitionNoResultsMessage(t *testing.T) {
	lsp := &fakeLSP{}
	tool := &builtin.GoToDefinitionTool{LSP: lsp}
	res, err := tool.Execute(context.Background(), map[string]any{"path": "a.ts", "line": 1, "column": 1})
	require.NoError(t, err)
	assert.Equal(t, "no results", res.Content)
}

func TestLSPToolsDegradeGracefullyWithoutAttachedServer(t *testing.T) {
	args := map[string]any{"path": "a.ts", "line": 1, "column": 1}

	def := &builtin.GoToDefinitionTool{}
	res, err := def.Execute(context.Background(), args)
	require.NoError(t, err)
	assert.Contains(t, res.Content, "no language server attached")

	refs := &builtin.FindReferencesTool{}
	res, err = refs.Execute(context.Background(), args)
	require.NoError(t, err)
	assert.Contains(t, res.Content, "no language server attached")

	hover := &builtin.GetHoverInfoTool{}
	res, err = hover.Execute(context.Background(), args)
	require.NoError(t, err)
	assert.Contains(t, res.Content, "no language server attached")

	symbols := &builtin.GetDocumentSymbolsTool{}
	res, err = symbols.Execute(context.Background(), map[string]any{"path": "a.ts"})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "no language server attached")

	lint := &builtin.GetLintErrorsTool{}
	res, err = lint.Execute(context.Background(), map[string]any{"path": "a.ts"})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "no language server attached")

	search := &builtin.CodebaseSearchTool{}
	res, err = search.Execute(context.Background(), map[string]any{"query": "handler"})
	require.NoError(t, err)
	assert.Contains(t, res.Content, "no semantic search backend attached")
}

func TestGetDocumentSymbolsFormatsOneIndexedLine(t *testing.T) {
	lsp := &fakeLSP{symbols: []hostfacade.Symbol{{Name: "Handle", Kind: "func", Line: 9}}}
	tool := &builtin.GetDocumentSymbolsTool{LSP: lsp}

	res, err := tool.Execute(context.Background(), map[string]any{"path": "a.ts"})
	require.NoError(t, err)
	assert.Equal(t, "func Handle:10\n", res.Content)
}

func TestGetLintErrorsFormatsDiagnostics(t *testing.T) {
	lsp := &fakeLSP{diagnostics: []hostfacade.Diagnostic{{Path: "a.ts", Line: 0, Severity: "error", Message: "undefined foo"}}}
	tool := &builtin.GetLintErrorsTool{LSP: lsp}

	res, err := tool.Execute(context.Background(), map[string]any{"path": "a.ts"})
	require.NoError(t, err)
	assert.Equal(t, "a.ts:1: error: undefined foo\n", res.Content)
}

func TestGetLintErrorsNoDiagnostics(t *testing.T) {
	lsp := &fakeLSP{}
	tool := &builtin.GetLintErrorsTool{LSP: lsp}
	res, err := tool.Execute(context.Background(), map[string]any{"path": "a.ts"})
	require.NoError(t, err)
	assert.Equal(t, "no diagnostics", res.Content)
}
