package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adnify/agentcore/internal/tool"
)

// ReadURLTool fetches a URL's content, matching the host facade's
// http.fetch(url, timeout) -> {title, content} contract (§6), simplified to
// raw body text since title extraction is host/UI concern.
type ReadURLTool struct {
	Client *http.Client
}

func (t *ReadURLTool) Name() string        { return "read_url" }
func (t *ReadURLTool) Description() string { return "Fetch the text content of a URL." }
func (t *ReadURLTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *ReadURLTool) Category() tool.Category         { return tool.CategoryNet }
func (t *ReadURLTool) ParallelSafe() bool              { return true }

func (t *ReadURLTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{"url": map[string]any{"type": "string"}},
		"required":   []string{"url"},
	}
}

func (t *ReadURLTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	url, _ := args["url"].(string)
	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	return &tool.Result{Content: string(body)}, nil
}

// WebSearchTool delegates to an injected search function, matching the host
// facade's http.search(query, maxResults) contract (§6). The core does not
// implement a search engine itself — see SPEC_FULL.md §1 Non-goals.
type WebSearchTool struct {
	Search func(ctx context.Context, query string, maxResults int) ([]WebResult, error)
}

// WebResult mirrors {title, url, content}.
type WebResult struct {
	Title   string
	URL     string
	Content string
}

func (t *WebSearchTool) Name() string        { return "web_search" }
func (t *WebSearchTool) Description() string { return "Search the web for a query, returning titled results." }
func (t *WebSearchTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (t *WebSearchTool) Category() tool.Category         { return tool.CategoryNet }
func (t *WebSearchTool) ParallelSafe() bool              { return true }

func (t *WebSearchTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":       map[string]any{"type": "string"},
			"max_results": map[string]any{"type": "integer"},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) (*tool.Result, error) {
	if t.Search == nil {
		return nil, fmt.Errorf("web_search: no search backend configured")
	}
	query, _ := args["query"].(string)
	maxResults := 5
	if v, ok := intArg(args["max_results"]); ok {
		maxResults = v
	}

	results, err := t.Search(ctx, query, maxResults)
	if err != nil {
		return nil, err
	}

	var out string
	for _, r := range results {
		out += fmt.Sprintf("%s\n%s\n%s\n\n", r.Title, r.URL, r.Content)
	}
	return &tool.Result{Content: out}, nil
}
