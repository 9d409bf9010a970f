package agentloop

import (
	"context"
	"net/http"
	"time"

	"github.com/adnify/agentcore/internal/hostfacade"
	"github.com/adnify/agentcore/internal/tool"
	"github.com/adnify/agentcore/internal/tool/builtin"
)

// RegistryOptions controls which optional builtin tools BuildRegistry wires
// in; LSP, Semantic, and WebSearch are all host-provided capabilities a bare
// CLI run may not have (§6's host facade), so each is nil-able.
type RegistryOptions struct {
	WorkspaceRoot   string
	LSP             hostfacade.LSP
	Semantic        hostfacade.SemanticSearch
	WebSearch       func(ctx context.Context, query string, maxResults int) ([]builtin.WebResult, error)
	HTTPClient      *http.Client
	CommandTimeout  time.Duration
	DirTreeMaxDepth int
}

// BuildRegistry wires every builtin tool (§4.5, §4.7) into a fresh
// tool.Registry, parameterized by the host capabilities in opts. A nil
// LSP/Semantic/WebSearch simply leaves the corresponding tool(s) unregistered
// rather than present-but-broken.
func BuildRegistry(opts RegistryOptions) *tool.Registry {
	guard := builtin.PathGuard{WorkspaceRoot: opts.WorkspaceRoot}
	if opts.CommandTimeout == 0 {
		opts.CommandTimeout = 2 * time.Minute
	}
	if opts.DirTreeMaxDepth == 0 {
		opts.DirTreeMaxDepth = 4
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	reg := tool.NewRegistry()
	reg.Register(&builtin.ReadFileTool{Guard: guard})
	reg.Register(&builtin.EditFileTool{Guard: guard})
	reg.Register(&builtin.WriteFileTool{Guard: guard})
	reg.Register(&builtin.ReplaceFileContentTool{Guard: guard})
	reg.Register(&builtin.CreateFileOrFolderTool{Guard: guard})
	reg.Register(&builtin.DeleteFileOrFolderTool{Guard: guard})
	reg.Register(&builtin.ListDirectoryTool{Guard: guard})
	reg.Register(&builtin.GetDirTreeTool{Guard: guard, MaxDepth: opts.DirTreeMaxDepth})
	reg.Register(&builtin.SearchInFileTool{Guard: guard})
	reg.Register(&builtin.SearchFilesTool{Guard: guard})
	reg.Register(&builtin.ReadURLTool{Client: client})
	reg.Register(&builtin.RunCommandTool{DefaultTimeout: opts.CommandTimeout})
	reg.Register(&builtin.CreatePlanTool{})
	reg.Register(&builtin.UpdatePlanTool{})

	if opts.LSP != nil {
		reg.Register(&builtin.GoToDefinitionTool{LSP: opts.LSP})
		reg.Register(&builtin.FindReferencesTool{LSP: opts.LSP})
		reg.Register(&builtin.GetHoverInfoTool{LSP: opts.LSP})
		reg.Register(&builtin.GetDocumentSymbolsTool{LSP: opts.LSP})
		reg.Register(&builtin.GetLintErrorsTool{LSP: opts.LSP})
	}
	if opts.Semantic != nil {
		reg.Register(&builtin.CodebaseSearchTool{Semantic: opts.Semantic, Workspace: opts.WorkspaceRoot})
	}
	if opts.WebSearch != nil {
		reg.Register(&builtin.WebSearchTool{Search: opts.WebSearch})
	}

	return reg
}
