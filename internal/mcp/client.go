// Package mcp implements the MCP (Model Context Protocol) external tool
// provider subsystem (SPEC_FULL.md §4.6): a manager that lazily connects to
// declared local (stdio) or remote (HTTP/SSE) servers and exposes their
// tools under a `mcp_<serverId>_<toolName>` prefix.
//
// The stdio transport is grounded on the teacher's
// pkg/tool/mcptoolset/mcptoolset.go connectStdio/callStdio, which drives the
// real mcp-go client SDK rather than hand-rolling the JSON-RPC handshake.
// The HTTP/SSE transport has no SDK in the pack to lean on, so it follows
// the same file's hand-rolled JSON-RPC-over-net/http idiom, with its SSE
// body parsed by the same line-buffered reader shape the streaming
// providers use (internal/provider/sse.go) rather than mcptoolset.go's
// bespoke bufio loop.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/adnify/agentcore/internal/config"
	"github.com/adnify/agentcore/internal/httpclient"
	"github.com/adnify/agentcore/internal/tool"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// requestTimeout is the per-request MCP timeout (§4.6: "30s default").
const requestTimeout = 30 * time.Second

// State is a server connection's lifecycle state (§4.6, §8's "needs_auth
// transition is not an error").
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateNeedsAuth    State = "needs_auth"
	StateError        State = "error"
)

// Server is one configured MCP server's live connection state.
type Server struct {
	cfg config.MCPServerConfig

	mu        sync.Mutex
	state     State
	authURL   string
	lastError string

	stdio      *client.Client
	httpClient *httpclient.Client
	sessionID  string

	tools []*wrapper
}

func newServer(cfg config.MCPServerConfig) *Server {
	return &Server{cfg: cfg, state: StateDisconnected}
}

func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Server) AuthURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authURL
}

// ensureConnected connects on first use (§4.6: "connection is lazy, not on
// startup"). A disabled server is never connected.
func (s *Server) ensureConnected(ctx context.Context) error {
	s.mu.Lock()
	if s.cfg.Disabled {
		s.mu.Unlock()
		return fmt.Errorf("mcp server %q is disabled", s.cfg.ID)
	}
	if s.state == StateConnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	var err error
	if s.cfg.IsLocal() {
		err = s.connectStdio(ctx)
	} else {
		err = s.connectHTTP(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if ae, ok := err.(*authRequiredError); ok {
			s.state = StateNeedsAuth
			s.authURL = ae.authURL
			return err
		}
		s.state = StateError
		s.lastError = err.Error()
		return err
	}
	s.state = StateConnected
	return nil
}

// authRequiredError signals a server's transport demanded OAuth (§4.6,
// §8's sticky needs_auth state with an authUrl for the user to complete).
type authRequiredError struct {
	authURL string
}

func (e *authRequiredError) Error() string { return "authorization required: " + e.authURL }

// FinishAuth resumes a needs_auth server once the user completes the OAuth
// flow out of band and supplies the returned authorization code.
func (s *Server) FinishAuth(ctx context.Context, code string) error {
	s.mu.Lock()
	if s.state != StateNeedsAuth {
		s.mu.Unlock()
		return fmt.Errorf("mcp server %q is not awaiting authorization", s.cfg.ID)
	}
	s.mu.Unlock()
	// code is not exchanged for a token: FinishAuth only retries the
	// connection, which sends the server's configured Headers and no
	// bearer token of its own.
	_ = code
	return s.ensureConnected(ctx)
}

func (s *Server) connectStdio(ctx context.Context) error {
	env := make([]string, 0, len(s.cfg.Env))
	for k, v := range s.cfg.Env {
		env = append(env, k+"="+v)
	}

	c, err := client.NewStdioMCPClient(s.cfg.Command, env, s.cfg.Args...)
	if err != nil {
		return fmt.Errorf("create mcp client: %w", err)
	}
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("start mcp client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "agentcore", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return fmt.Errorf("initialize mcp: %w", err)
	}

	listResp, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.Close()
		return fmt.Errorf("list tools: %w", err)
	}

	var tools []*wrapper
	for _, t := range listResp.Tools {
		tools = append(tools, &wrapper{server: s, name: t.Name, desc: t.Description, schema: convertSchema(t.InputSchema), stdio: true})
	}

	s.mu.Lock()
	s.stdio = c
	s.tools = tools
	s.mu.Unlock()
	return nil
}

func (s *Server) connectHTTP(ctx context.Context) error {
	hc := httpclient.New(httpclient.WithHTTPClient(&http.Client{Timeout: requestTimeout}))

	initResp, err := s.rpc(ctx, hc, "initialize", map[string]any{
		"protocolVersion": "2024-11-05",
		"clientInfo":      map[string]any{"name": "agentcore", "version": "0.1.0"},
		"capabilities":    map[string]any{},
	})
	if err != nil {
		if unauthorized(err) {
			return &authRequiredError{authURL: s.authorizationURL()}
		}
		return fmt.Errorf("initialize mcp: %w", err)
	}
	if initResp.Error != nil {
		return fmt.Errorf("mcp init error: %s", initResp.Error.Message)
	}

	listResp, err := s.rpc(ctx, hc, "tools/list", nil)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	if listResp.Error != nil {
		return fmt.Errorf("mcp list error: %s", listResp.Error.Message)
	}

	resultMap, _ := listResp.Result.(map[string]any)
	toolsRaw, _ := resultMap["tools"].([]any)

	var tools []*wrapper
	for _, raw := range toolsRaw {
		tm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := tm["name"].(string)
		desc, _ := tm["description"].(string)
		schema, _ := tm["inputSchema"].(map[string]any)
		tools = append(tools, &wrapper{server: s, name: name, desc: desc, schema: schema, stdio: false})
	}

	s.mu.Lock()
	s.httpClient = hc
	s.tools = tools
	s.mu.Unlock()
	return nil
}

// authorizationURL builds the OAuth2 authorization endpoint the user must
// visit, using the server's configured dynamic-client-registration values.
func (s *Server) authorizationURL() string {
	if s.cfg.OAuth == nil {
		return s.cfg.URL + "/oauth/authorize"
	}
	return fmt.Sprintf("%s/oauth/authorize?client_id=%s&scope=%s", s.cfg.URL, s.cfg.OAuth.ClientID, s.cfg.OAuth.Scope)
}

func unauthorized(err error) bool {
	return strings.Contains(err.Error(), "401") || strings.Contains(err.Error(), "Unauthorized")
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *jsonRPCError `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpc sends one JSON-RPC request over HTTP, following the StreamableHTTP
// style first (session id header, optional SSE response) per §4.6.
func (s *Server) rpc(ctx context.Context, hc *httpclient.Client, method string, params any) (*jsonRPCResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}

	s.mu.Lock()
	sessionID := s.sessionID
	s.mu.Unlock()
	if sessionID != "" {
		req.Header.Set("mcp-session-id", sessionID)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if newSession := resp.Header.Get("mcp-session-id"); newSession != "" {
		s.mu.Lock()
		s.sessionID = newSession
		s.mu.Unlock()
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("mcp http 401 Unauthorized")
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mcp http error %d: %s", resp.StatusCode, string(b))
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/event-stream") {
		return readSSEResponse(resp.Body, requestTimeout)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var out jsonRPCResponse
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &out, nil
}

// readSSEResponse reads the first complete JSON-RPC response out of an SSE
// body, using the same "data:"-line-buffered idiom as the streaming
// provider readers (internal/provider/sse.go), since the Streamable-HTTP
// fallback response here is also framed as Server-Sent Events.
func readSSEResponse(body io.ReadCloser, timeout time.Duration) (*jsonRPCResponse, error) {
	defer body.Close()
	type result struct {
		resp *jsonRPCResponse
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		reader := bufio.NewReader(body)
		var data strings.Builder
		for {
			line, err := reader.ReadBytes('\n')
			if err != nil {
				break
			}
			trimmed := strings.TrimSpace(string(line))
			if trimmed == "" {
				if data.Len() == 0 {
					continue
				}
				var resp jsonRPCResponse
				if err := json.Unmarshal([]byte(data.String()), &resp); err == nil {
					ch <- result{resp: &resp}
					return
				}
				data.Reset()
				continue
			}
			if rest, ok := strings.CutPrefix(trimmed, "data:"); ok {
				data.WriteString(strings.TrimSpace(rest))
			}
		}
		ch <- result{err: fmt.Errorf("sse stream ended without a complete message")}
	}()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-time.After(timeout):
		return nil, fmt.Errorf("timeout reading sse response after %s", timeout)
	}
}

func convertSchema(schema mcp.ToolInputSchema) map[string]any {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil
	}
	var out map[string]any
	_ = json.Unmarshal(data, &out)
	return out
}

// Close tears down the server's live connection, if any.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stdio != nil {
		err := s.stdio.Close()
		s.stdio = nil
		s.state = StateDisconnected
		s.tools = nil
		return err
	}
	s.httpClient = nil
	s.state = StateDisconnected
	s.tools = nil
	return nil
}
