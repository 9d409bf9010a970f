package mcp

import (
	"context"
	"fmt"

	"github.com/adnify/agentcore/internal/tool"
	"github.com/mark3labs/mcp-go/mcp"
)

// wrapper adapts one MCP-declared tool to tool.Executable, prefixing its
// name `mcp_<serverId>_<toolName>` (§4.6) so the LLM and dispatcher can
// disambiguate across servers.
type wrapper struct {
	server *Server
	name   string
	desc   string
	schema map[string]any
	stdio  bool
}

func (w *wrapper) Name() string { return "mcp_" + w.server.cfg.ID + "_" + w.name }

func (w *wrapper) Description() string { return w.desc }

func (w *wrapper) Parameters() map[string]any { return w.schema }

// ApprovalType defers to the server's auto_approve list (§4.6): a tool name
// present there needs no user consent, everything else is treated as
// dangerous since it runs outside this process's control.
func (w *wrapper) ApprovalType() tool.ApprovalType {
	for _, n := range w.server.cfg.AutoApprove {
		if n == w.name {
			return tool.ApprovalNone
		}
	}
	return tool.ApprovalDangerous
}

func (w *wrapper) Category() tool.Category { return tool.CategoryNet }

func (w *wrapper) ParallelSafe() bool { return false }

func (w *wrapper) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	if err := w.server.ensureConnected(ctx); err != nil {
		return nil, err
	}
	if w.stdio {
		return w.callStdio(ctx, args)
	}
	return w.callHTTP(ctx, args)
}

func (w *wrapper) callStdio(ctx context.Context, args map[string]any) (*tool.Result, error) {
	w.server.mu.Lock()
	c := w.server.stdio
	w.server.mu.Unlock()
	if c == nil {
		return nil, fmt.Errorf("mcp server %q not connected", w.server.cfg.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req := mcp.CallToolRequest{}
	req.Params.Name = w.name
	req.Params.Arguments = args

	resp, err := c.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp call failed: %w", err)
	}

	text, isErr := extractText(resp)
	if isErr {
		return nil, fmt.Errorf("%s", text)
	}
	return &tool.Result{Content: text}, nil
}

func extractText(resp *mcp.CallToolResult) (string, bool) {
	var texts []string
	for _, c := range resp.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	joined := ""
	for i, t := range texts {
		if i > 0 {
			joined += "\n"
		}
		joined += t
	}
	if resp.IsError {
		if joined == "" {
			joined = "unknown error"
		}
		return joined, true
	}
	return joined, false
}

func (w *wrapper) callHTTP(ctx context.Context, args map[string]any) (*tool.Result, error) {
	w.server.mu.Lock()
	hc := w.server.httpClient
	w.server.mu.Unlock()
	if hc == nil {
		return nil, fmt.Errorf("mcp server %q not connected", w.server.cfg.ID)
	}

	resp, err := w.server.rpc(ctx, hc, "tools/call", map[string]any{"name": w.name, "arguments": args})
	if err != nil {
		return nil, fmt.Errorf("mcp call failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("%s", resp.Error.Message)
	}

	resultMap, ok := resp.Result.(map[string]any)
	if !ok {
		return &tool.Result{Content: fmt.Sprintf("%v", resp.Result)}, nil
	}
	if isError, _ := resultMap["isError"].(bool); isError {
		return nil, fmt.Errorf("%s", firstText(resultMap))
	}
	return &tool.Result{Content: firstText(resultMap)}, nil
}

func firstText(resultMap map[string]any) string {
	content, _ := resultMap["content"].([]any)
	joined := ""
	for i, c := range content {
		cm, ok := c.(map[string]any)
		if !ok || cm["type"] != "text" {
			continue
		}
		text, _ := cm["text"].(string)
		if i > 0 && joined != "" {
			joined += "\n"
		}
		joined += text
	}
	return joined
}
