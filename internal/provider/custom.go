package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/adnify/agentcore/internal/adapter"
	"github.com/adnify/agentcore/internal/config"
	"github.com/adnify/agentcore/internal/httpclient"
	"github.com/adnify/agentcore/internal/streamevent"
	"github.com/google/uuid"
)

// Custom implements Provider against a declarative AdapterConfig (§4.3, §6),
// for any wire-streaming-JSON backend the four named protocols don't cover.
type Custom struct {
	cfg    *config.LLMConfig
	client *httpclient.Client
}

func NewCustom(cfg *config.LLMConfig) *Custom {
	return &Custom{cfg: cfg, client: httpclient.New(httpclient.WithHTTPClient(&http.Client{Timeout: StreamTotalTimeout}))}
}

// customToolCallState tracks an in-progress tool call when the adapter
// reports tool calls as a field on each streamed chunk rather than a
// self-contained start/delta/end triplet.
type customToolCallState struct {
	id   string
	name string
	args bytesBuilder
}

func (p *Custom) Chat(ctx context.Context, req Request) (<-chan streamevent.Event, error) {
	ac := p.cfg.Adapter
	if ac == nil {
		return nil, &ProviderError{Kind: ErrInvalidRequest, Message: "custom provider requires an adapter config"}
	}

	body := p.buildBody(ac, req)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	endpoint := ac.Request.Endpoint
	if endpoint == "" {
		endpoint = p.cfg.BaseURL
	}
	method := ac.Request.Method
	if method == "" {
		method = http.MethodPost
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range ac.Request.Headers {
		httpReq.Header.Set(k, v)
	}
	applyAuth(httpReq, ac.Auth, p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Kind: ErrNetwork, Message: err.Error()}
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return nil, &ProviderError{Kind: ClassifyHTTPError(resp.StatusCode, string(b)), Status: resp.StatusCode, Message: string(b)}
	}

	out := make(chan streamevent.Event, 64)
	go p.stream(ctx, ac, resp.Body, out)
	return out, nil
}

// buildBody merges AdapterConfig.Request.BodyTemplate over the generated
// request body. A top-level template string that is exactly {{model}},
// {{messages}}, {{max_tokens}}, {{temperature}} or {{top_p}} is replaced by
// that request value; any other value, nested ones included, is copied
// as-is. It applies the "DashScope-style" envelope transform when the
// template carries an `input` field (§4.3).
func (p *Custom) buildBody(ac *config.AdapterConfig, req Request) map[string]any {
	messages := p.renderMessages(ac, req)
	vars := map[string]any{"model": req.Model, "messages": messages, "max_tokens": req.MaxTokens, "temperature": req.Temperature, "top_p": req.TopP}
	resolve := func(v any) any {
		if s, ok := v.(string); ok && len(s) > 4 && s[:2] == "{{" && s[len(s)-2:] == "}}" {
			if val, ok := vars[s[2:len(s)-2]]; ok {
				return val
			}
		}
		return v
	}

	if _, ok := ac.Request.BodyTemplate["input"]; ok {
		inner := map[string]any{"messages": messages}
		if req.SystemPrompt != "" && ac.MessageFormat.SystemMessageMode == "parameter" {
			inner["system"] = req.SystemPrompt
		}
		params := map[string]any{
			"max_tokens":         req.MaxTokens,
			"temperature":        req.Temperature,
			"top_p":              req.TopP,
			"incremental_output": true,
		}
		if tools := p.wireTools(ac, req); len(tools) > 0 {
			params["tools"] = tools
		}
		out := map[string]any{"model": req.Model, "input": inner, "parameters": params}
		for k, v := range ac.Request.BodyTemplate {
			if k != "model" && k != "input" && k != "parameters" {
				out[k] = resolve(v)
			}
		}
		return out
	}

	out := map[string]any{
		"model":       req.Model,
		"messages":    messages,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
		"top_p":       req.TopP,
		"stream":      true,
	}
	if tools := p.wireTools(ac, req); len(tools) > 0 {
		out["tools"] = tools
	}
	if req.SystemPrompt != "" && ac.MessageFormat.SystemMessageMode == "parameter" {
		name := ac.MessageFormat.SystemParameterName
		if name == "" {
			name = "system"
		}
		out[name] = req.SystemPrompt
	}
	for k, v := range ac.Request.BodyTemplate {
		out[k] = resolve(v)
	}
	return out
}

func (p *Custom) renderMessages(ac *config.AdapterConfig, req Request) []map[string]any {
	out := make([]map[string]any, 0, len(req.Messages))
	for _, m := range req.Messages {
		entry := map[string]any{"role": m.Role, "content": m.Content}
		if m.Role == "tool" {
			if parts, ok := m.Content.([]adapter.WireContentPart); ok {
				for _, part := range parts {
					if part.Type == "tool_result" {
						entry["content"] = part.ToolResult
						idField := ac.MessageFormat.ToolCallIDField
						if idField == "" {
							idField = "tool_call_id"
						}
						entry[idField] = part.ToolUseID
					}
				}
			}
		}
		if len(m.ToolCalls) > 0 {
			var calls []map[string]any
			for _, tc := range m.ToolCalls {
				calls = append(calls, map[string]any{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]any{
						"name":      tc.Name,
						"arguments": tc.RawArgs,
					},
				})
			}
			entry["tool_calls"] = calls
		}
		out = append(out, entry)
	}
	return out
}

func (p *Custom) wireTools(ac *config.AdapterConfig, req Request) []map[string]any {
	var out []map[string]any
	for _, t := range adapter.ConvertTools(req.Tools, config.ProtocolCustom, ac) {
		def := map[string]any{"name": t.Name, "description": t.Description}
		if ac.ToolFormat.ParameterField != "" {
			def[ac.ToolFormat.ParameterField] = t.Parameters
		} else {
			def["parameters"] = t.Parameters
		}
		switch ac.ToolFormat.WrapMode {
		case "function":
			wrapped := map[string]any{"type": "function", "function": def}
			out = append(out, wrapped)
		case "tool":
			field := ac.ToolFormat.WrapField
			if field == "" {
				field = "tool"
			}
			out = append(out, map[string]any{field: def})
		default:
			out = append(out, def)
		}
	}
	return out
}

func applyAuth(req *http.Request, auth config.AuthConfig, apiKey string) {
	switch auth.Type {
	case "bearer":
		warnIfBearerTokenNearExpiry(apiKey)
		req.Header.Set("Authorization", "Bearer "+apiKey)
	case "header":
		name := auth.HeaderName
		if name == "" {
			name = "Authorization"
		}
		req.Header.Set(name, apiKey)
	case "api-key":
		name := auth.HeaderName
		if name == "" {
			name = "X-Api-Key"
		}
		req.Header.Set(name, apiKey)
	case "none", "":
		// no credential sent
	}
}

func (p *Custom) stream(ctx context.Context, ac *config.AdapterConfig, body io.ReadCloser, out chan<- streamevent.Event) {
	defer close(out)
	defer body.Close()

	reader := newSSEReader(body)
	calls := map[string]*customToolCallState{}
	firstByteDeadline := time.Now().Add(StreamFirstByteTimeout)
	gotFirstByte := false

	doneMarker := ac.Response.DoneMarker
	if doneMarker == "" {
		doneMarker = "[DONE]"
	}

	for {
		if !gotFirstByte && time.Now().After(firstByteDeadline) {
			out <- streamevent.ErrorEvent(&ProviderError{Kind: ErrTimeout, Message: "no first byte within budget"})
			return
		}
		select {
		case <-ctx.Done():
			out <- streamevent.ErrorEvent(&ProviderError{Kind: ErrAborted, Message: "cancelled"})
			return
		default:
		}

		payload, err := reader.Next()
		if err != nil {
			if err != io.EOF {
				out <- streamevent.ErrorEvent(err)
			}
			return
		}
		gotFirstByte = true
		if payload == doneMarker {
			p.flushCalls(calls, out)
			return
		}

		var chunk map[string]any
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if errMsg, ok := detectError(chunk); ok {
			out <- streamevent.ErrorEvent(&ProviderError{Kind: ErrUnknown, Message: errMsg})
			return
		}
		p.handleChunk(ac, chunk, calls, out)
	}
}

func (p *Custom) flushCalls(calls map[string]*customToolCallState, out chan<- streamevent.Event) {
	for _, st := range calls {
		var parsed map[string]any
		_ = json.Unmarshal(st.args.b, &parsed)
		out <- streamevent.ToolCallEnd(streamevent.ToolCall{ID: st.id, Name: st.name, Arguments: parsed, RawArgs: st.args.String()})
	}
}

func (p *Custom) handleChunk(ac *config.AdapterConfig, chunk map[string]any, calls map[string]*customToolCallState, out chan<- streamevent.Event) {
	if ac.Response.ContentField != "" {
		if text, ok := getString(chunk, ac.Response.ContentField); ok && text != "" {
			out <- streamevent.Text(text)
		}
	}
	if ac.Response.ReasoningField != "" {
		if r, ok := getString(chunk, ac.Response.ReasoningField); ok && r != "" {
			out <- streamevent.Reasoning(r, streamevent.ReasoningDelta)
		}
	}

	if ac.Response.ToolCallField != "" {
		if raw, ok := getPath(chunk, ac.Response.ToolCallField); ok {
			entries, _ := raw.([]any)
			for _, e := range entries {
				em, _ := e.(map[string]any)
				id, _ := getString(em, ac.Response.ToolIDPath)
				name, _ := getString(em, ac.Response.ToolNamePath)
				args, _ := getString(em, ac.Response.ToolArgsPath)
				if id == "" {
					id = uuid.NewString()
				}
				st, exists := calls[id]
				if !exists {
					st = &customToolCallState{id: id}
					calls[id] = st
					out <- streamevent.ToolCallStart(id, name)
				}
				if name != "" {
					st.name = name
				}
				if args != "" {
					st.args.WriteString(args)
					out <- streamevent.ToolCallDelta(id, args, name)
				}
			}
		}
	}
}

// detectError surfaces any JSON field matching a recognized error shape
// (§4.3's SSE parsing layer: "surface any JSON field matching a recognized
// error shape as a terminal error event").
func detectError(chunk map[string]any) (string, bool) {
	if e, ok := chunk["error"]; ok {
		switch v := e.(type) {
		case string:
			return v, true
		case map[string]any:
			if msg, ok := v["message"].(string); ok {
				return msg, true
			}
			return fmt.Sprintf("%v", v), true
		}
	}
	return "", false
}
