package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/adnify/agentcore/internal/adapter"
	"github.com/adnify/agentcore/internal/config"
	"github.com/adnify/agentcore/internal/httpclient"
	"github.com/adnify/agentcore/internal/streamevent"
)

// OpenAI implements Provider against the OpenAI-compatible chat-completions
// SSE wire format (§4.3), grounded on pkg/llms/openai.go.
type OpenAI struct {
	cfg    *config.LLMConfig
	client *httpclient.Client
}

func NewOpenAI(cfg *config.LLMConfig) *OpenAI {
	return &OpenAI{cfg: cfg, client: httpclient.New(httpclient.WithHTTPClient(&http.Client{Timeout: StreamTotalTimeout}))}
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	Stream      bool            `json:"stream"`
	StreamOpts  *streamOpts     `json:"stream_options,omitempty"`
	Tools       []openAITool    `json:"tools,omitempty"`
}

type streamOpts struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIMessage struct {
	Role       string               `json:"role"`
	Content    any                  `json:"content,omitempty"`
	ToolCallID string               `json:"tool_call_id,omitempty"`
	ToolCalls  []openAIWireToolCall `json:"tool_calls,omitempty"`
}

type openAIWireToolCall struct {
	ID       string                 `json:"id"`
	Type     string                 `json:"type"`
	Function openAIWireToolCallFunc `json:"function"`
}

type openAIWireToolCallFunc struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAIContentPart struct {
	Type     string             `json:"type"`
	Text     string             `json:"text,omitempty"`
	ImageURL *openAIImageURLRef `json:"image_url,omitempty"`
}

type openAIImageURLRef struct {
	URL string `json:"url"`
}

// toOpenAIMessage converts one adapter.WireMessage into the OpenAI
// chat-completions wire shape (§4.4: tool results become
// {role: tool, tool_call_id, content}; text/image parts become a content
// array of {type, text|image_url}).
func toOpenAIMessage(m adapter.WireMessage) openAIMessage {
	out := openAIMessage{Role: m.Role}
	for _, tc := range m.ToolCalls {
		args := tc.RawArgs
		if args == "" {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, openAIWireToolCall{
			ID: tc.ID, Type: "function",
			Function: openAIWireToolCallFunc{Name: tc.Name, Arguments: args},
		})
	}

	switch c := m.Content.(type) {
	case string:
		out.Content = c
	case []adapter.WireContentPart:
		if m.Role == "tool" {
			for _, p := range c {
				if p.Type == "tool_result" {
					out.Role = "tool"
					out.ToolCallID = p.ToolUseID
					out.Content = p.ToolResult
				}
			}
			return out
		}
		var parts []openAIContentPart
		for _, p := range c {
			switch p.Type {
			case "text":
				parts = append(parts, openAIContentPart{Type: "text", Text: p.Text})
			case "image":
				parts = append(parts, openAIContentPart{
					Type:     "image_url",
					ImageURL: &openAIImageURLRef{URL: "data:" + p.MimeType + ";base64," + p.ImageB64},
				})
			}
		}
		out.Content = parts
	}
	return out
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// openAIToolCallState tracks one in-progress tool call keyed by its
// streamed array index, mirroring the teacher's streamingState pattern.
type openAIToolCallState struct {
	id   string
	name string
	args *bytesBuilder
}

type bytesBuilder struct{ b []byte }

func (b *bytesBuilder) WriteString(s string) { b.b = append(b.b, s...) }
func (b *bytesBuilder) String() string       { return string(b.b) }

func (p *OpenAI) Chat(ctx context.Context, req Request) (<-chan streamevent.Event, error) {
	body := openAIRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      true,
		StreamOpts:  &streamOpts{IncludeUsage: true},
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, toOpenAIMessage(m))
	}
	for _, t := range adapter.ConvertTools(req.Tools, config.ProtocolOpenAI, nil) {
		body.Tools = append(body.Tools, openAITool{
			Type:     "function",
			Function: openAIToolFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters},
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	baseURL := p.cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &ProviderError{Kind: ErrNetwork, Message: err.Error()}
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		kind := ClassifyHTTPError(resp.StatusCode, string(b))
		return nil, &ProviderError{Kind: kind, Status: resp.StatusCode, Message: string(b)}
	}

	out := make(chan streamevent.Event, 64)
	go p.stream(ctx, resp.Body, out)
	return out, nil
}

func (p *OpenAI) stream(ctx context.Context, body io.ReadCloser, out chan<- streamevent.Event) {
	defer close(out)
	defer body.Close()

	reader := newSSEReader(body)
	calls := map[int]*openAIToolCallState{}
	firstByteDeadline := time.Now().Add(StreamFirstByteTimeout)
	gotFirstByte := false

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
		if IsDone(payload) {
			return
		}

		var chunk map[string]any
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		p.handleChunk(chunk, calls, out)
	}
}

func (p *OpenAI) handleChunk(chunk map[string]any, calls map[int]*openAIToolCallState, out chan<- streamevent.Event) {
	if usage, ok := chunk["usage"].(map[string]any); ok {
		out <- streamevent.UsageEvent(streamevent.Usage{
			InputTokens:  intOf(usage["prompt_tokens"]),
			OutputTokens: intOf(usage["completion_tokens"]),
		})
	}

	choices, _ := chunk["choices"].([]any)
	if len(choices) == 0 {
		return
	}
	choice, _ := choices[0].(map[string]any)
	delta, _ := choice["delta"].(map[string]any)
	if delta == nil {
		return
	}

	if content, ok := delta["content"].(string); ok && content != "" {
		out <- streamevent.Text(content)
	}
	if reasoning, ok := delta["reasoning"].(string); ok && reasoning != "" {
		out <- streamevent.Reasoning(reasoning, streamevent.ReasoningDelta)
	}

	toolCalls, _ := delta["tool_calls"].([]any)
	for _, tc := range toolCalls {
		tcm, _ := tc.(map[string]any)
		idx := intOf(tcm["index"])
		st, exists := calls[idx]
		if !exists {
			st = &openAIToolCallState{args: &bytesBuilder{}}
			calls[idx] = st
		}
		if id, ok := tcm["id"].(string); ok && id != "" {
			st.id = id
		}
		if fn, ok := tcm["function"].(map[string]any); ok {
			if name, ok := fn["name"].(string); ok && name != "" {
				st.name = name
				out <- streamevent.ToolCallStart(st.id, st.name)
			}
			if args, ok := fn["arguments"].(string); ok && args != "" {
				st.args.WriteString(args)
				out <- streamevent.ToolCallDelta(st.id, args, st.name)
			}
		}
	}

	if reason, ok := choice["finish_reason"].(string); ok && reason != "" {
		for _, st := range calls {
			var parsed map[string]any
			_ = json.Unmarshal([]byte(st.args.String()), &parsed)
			out <- streamevent.ToolCallEnd(streamevent.ToolCall{ID: st.id, Name: st.name, Arguments: parsed, RawArgs: st.args.String()})
		}
	}
}

func intOf(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
