package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/adnify/agentcore/internal/adapter"
	"github.com/adnify/agentcore/internal/config"
	"github.com/adnify/agentcore/internal/httpclient"
	"github.com/adnify/agentcore/internal/streamevent"
)

// Anthropic implements Provider against the Messages API's typed SSE event
// stream (§4.3), grounded on pkg/llms/anthropic.go.
type Anthropic struct {
	cfg    *config.LLMConfig
	client *httpclient.Client
}

func NewAnthropic(cfg *config.LLMConfig) *Anthropic {
	return &Anthropic{cfg: cfg, client: httpclient.New(httpclient.WithHTTPClient(&http.Client{Timeout: StreamTotalTimeout}))}
}

type anthropicRequest struct {
	Model     string              `json:"model"`
	MaxTokens int                 `json:"max_tokens"`
	System    []anthropicSysBlock `json:"system,omitempty"`
	Messages  []anthropicMessage  `json:"messages"`
	Tools     []anthropicTool     `json:"tools,omitempty"`
	Stream    bool                `json:"stream"`
}

type anthropicSysBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthropicContentBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	Source    *anthropicImg  `json:"source,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
}

type anthropicImg struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

// toAnthropicMessage converts one adapter.WireMessage into the Messages API's
// content-block shape (§4.4: tool results become
// {role: user, content: [{type: tool_result, tool_use_id, content}]};
// assistant tool calls become {type: tool_use, id, name, input} blocks
// alongside any text blocks).
func toAnthropicMessage(m adapter.WireMessage) anthropicMessage {
	var blocks []anthropicContentBlock

	switch c := m.Content.(type) {
	case string:
		if c != "" {
			blocks = append(blocks, anthropicContentBlock{Type: "text", Text: c})
		}
	case []adapter.WireContentPart:
		for _, p := range c {
			switch p.Type {
			case "text":
				blocks = append(blocks, anthropicContentBlock{Type: "text", Text: p.Text})
			case "image":
				blocks = append(blocks, anthropicContentBlock{Type: "image", Source: &anthropicImg{Type: "base64", MediaType: p.MimeType, Data: p.ImageB64}})
			case "tool_result":
				blocks = append(blocks, anthropicContentBlock{Type: "tool_result", ToolUseID: p.ToolUseID, Content: p.ToolResult})
			}
		}
	}

	for _, tc := range m.ToolCalls {
		var input map[string]any
		if tc.Arguments != nil {
			input = tc.Arguments
		} else {
			input = map[string]any{}
		}
		blocks = append(blocks, anthropicContentBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: input})
	}

	if len(blocks) == 1 && blocks[0].Type == "text" {
		return anthropicMessage{Role: m.Role, Content: blocks[0].Text}
	}
	return anthropicMessage{Role: m.Role, Content: blocks}
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// anthropicBlockState tracks the in-progress content block keyed by its
// index so deltas can be re-associated with the right block.
type anthropicBlockState struct {
	blockType string
	toolID    string
	toolName  string
	args      bytesBuilder
}

func (p *Anthropic) Chat(ctx context.Context, req Request) (<-chan streamevent.Event, error) {
	body := anthropicRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Stream:    true,
	}
	if req.SystemPrompt != "" {
		body.System = []anthropicSysBlock{{Type: "text", Text: req.SystemPrompt}}
	}
	for _, m := range req.Messages {
		body.Messages = append(body.Messages, toAnthropicMessage(m))
	}
	for _, t := range adapter.ConvertTools(req.Tools, config.ProtocolAnthropic, nil) {
		body.Tools = append(body.Tools, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	baseURL := p.cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

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
	go p.stream(ctx, resp.Body, out)
	return out, nil
}

func (p *Anthropic) stream(ctx context.Context, body io.ReadCloser, out chan<- streamevent.Event) {
	defer close(out)
	defer body.Close()

	reader := newSSEReader(body)
	blocks := map[int]*anthropicBlockState{}

	for {
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
		if payload == "" {
			continue
		}

		var frame map[string]any
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			continue
		}
		p.handleFrame(frame, blocks, out)
	}
}

func (p *Anthropic) handleFrame(frame map[string]any, blocks map[int]*anthropicBlockState, out chan<- streamevent.Event) {
	typ, _ := frame["type"].(string)
	switch typ {
	case "content_block_start":
		idx := intOf(frame["index"])
		cb, _ := frame["content_block"].(map[string]any)
		cbType, _ := cb["type"].(string)
		st := &anthropicBlockState{blockType: cbType}
		if cbType == "tool_use" {
			st.toolID, _ = cb["id"].(string)
			st.toolName, _ = cb["name"].(string)
			out <- streamevent.ToolCallStart(st.toolID, st.toolName)
		}
		blocks[idx] = st

	case "content_block_delta":
		idx := intOf(frame["index"])
		st, ok := blocks[idx]
		if !ok {
			return
		}
		delta, _ := frame["delta"].(map[string]any)
		dtype, _ := delta["type"].(string)
		switch dtype {
		case "text_delta":
			if text, ok := delta["text"].(string); ok {
				out <- streamevent.Text(text)
			}
		case "thinking_delta":
			if text, ok := delta["thinking"].(string); ok {
				out <- streamevent.Reasoning(text, streamevent.ReasoningDelta)
			}
		case "input_json_delta":
			if frag, ok := delta["partial_json"].(string); ok {
				st.args.WriteString(frag)
				out <- streamevent.ToolCallDelta(st.toolID, frag, st.toolName)
			}
		}

	case "content_block_stop":
		idx := intOf(frame["index"])
		st, ok := blocks[idx]
		if ok && st.blockType == "tool_use" {
			var parsed map[string]any
			_ = json.Unmarshal(st.args.b, &parsed)
			out <- streamevent.ToolCallEnd(streamevent.ToolCall{ID: st.toolID, Name: st.toolName, Arguments: parsed, RawArgs: st.args.String()})
		}

	case "message_delta":
		if usage, ok := frame["usage"].(map[string]any); ok {
			out <- streamevent.UsageEvent(streamevent.Usage{
				InputTokens:  intOf(usage["input_tokens"]),
				OutputTokens: intOf(usage["output_tokens"]),
			})
		}
	}
}
