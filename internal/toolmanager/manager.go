// Package toolmanager fronts the tool registry that built-in tools and
// mcp.Manager's MCP wrappers share, presenting the agent loop with one tool
// list (built-ins before MCP tools). Calls are routed by a lookup in that
// shared registry, not by name prefix.
package toolmanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/adnify/agentcore/internal/mcp"
	"github.com/adnify/agentcore/internal/tool"
)

// Manager answers Execute/Definitions/approval lookups from the one registry
// that holds both built-in tools and registered MCP wrappers. On a name
// collision the tool registered last replaces the earlier one.
type Manager struct {
	builtin *tool.Registry
	mcp     *mcp.Manager
}

func New(builtin *tool.Registry, mcpMgr *mcp.Manager) *Manager {
	return &Manager{builtin: builtin, mcp: mcpMgr}
}

// Definitions returns every tool known across providers, built-ins first,
// in the order the dispatcher and MessageAdapter use to present the tool
// list to a provider.
func (m *Manager) Definitions() []tool.Tool {
	all := m.builtin.Definitions()
	defs := make([]tool.Tool, 0, len(all))
	var mcpDefs []tool.Tool
	for _, d := range all {
		if IsMCPTool(d.Name()) {
			mcpDefs = append(mcpDefs, d)
		} else {
			defs = append(defs, d)
		}
	}
	defs = append(defs, mcpDefs...)
	if m.mcp == nil {
		return defs
	}
	// The MCP manager only knows a server's tools once it has connected; a
	// warm registry is built by ListAll at startup, and any tool it
	// registers lands in m.builtin too (mcp.Manager.List Registers wrappers
	// directly into the shared registry), so no separate merge is needed
	// here beyond what's already in builtin.
	return defs
}

// HasTool reports whether name (built-in or `mcp_<server>_<tool>`) is known.
func (m *Manager) HasTool(name string) bool {
	_, ok := m.builtin.Get(name)
	return ok
}

// Execute looks name up in the shared registry, validates args against the
// tool's schema and runs it. MCP-backed tools are found there like any other
// tool once mcp.Manager has registered them; the name prefix plays no part in
// routing.
func (m *Manager) Execute(ctx context.Context, name string, args map[string]any) (*tool.Result, error) {
	t, ok := m.builtin.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", tool.ErrNotFound(), name)
	}
	if err := tool.Validate(t, args); err != nil {
		return nil, err
	}
	return t.Execute(ctx, args)
}

// ApprovalType resolves the approval class for a tool name, used by the
// dispatcher to partition calls before execution (§4.8).
func (m *Manager) ApprovalType(name string) tool.ApprovalType {
	t, ok := m.builtin.Get(name)
	if !ok {
		return tool.ApprovalDangerous
	}
	return t.ApprovalType()
}

// Category resolves a tool's effect class, used by the dispatcher's
// snapshot phase and dependency graph (§4.8 steps 1-2).
func (m *Manager) Category(name string) tool.Category {
	t, ok := m.builtin.Get(name)
	if !ok {
		return tool.CategoryMeta
	}
	return t.Category()
}

// ParallelSafe reports whether a tool may run concurrently with others.
func (m *Manager) ParallelSafe(name string) bool {
	t, ok := m.builtin.Get(name)
	if !ok {
		return false
	}
	return t.ParallelSafe()
}

// IsMCPTool reports whether name carries the `mcp_<serverId>_<toolName>`
// prefix convention (§4.6), for UI labelling purposes.
func IsMCPTool(name string) bool {
	return strings.HasPrefix(name, "mcp_")
}
