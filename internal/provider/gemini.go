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
	"github.com/google/uuid"
)

// Gemini implements Provider against the generateContentStream SSE wire
// format (§4.3), grounded on pkg/llms/gemini.go. The teacher's own Gemini
// provider speaks raw HTTP rather than the vendor SDK, so this adopts the
// same idiom instead of pulling in an SDK dependency the pack never imports.
type Gemini struct {
	cfg    *config.LLMConfig
	client *httpclient.Client
}

func NewGemini(cfg *config.LLMConfig) *Gemini {
	return &Gemini{cfg: cfg, client: httpclient.New(httpclient.WithHTTPClient(&http.Client{Timeout: StreamTotalTimeout}))}
}

type geminiRequest struct {
	Contents          []geminiContent          `json:"contents"`
	SystemInstruction *geminiContent           `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig  `json:"generationConfig,omitempty"`
	Tools             []geminiToolSet          `json:"tools,omitempty"`
}

type geminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text             string                `json:"text,omitempty"`
	FunctionCall     *geminiFunctionCall   `json:"functionCall,omitempty"`
	FunctionResponse *geminiFunctionResult `json:"functionResponse,omitempty"`
	InlineData       *geminiInlineData     `json:"inlineData,omitempty"`
}

type geminiFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type geminiFunctionResult struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Response any    `json:"response"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiToolSet struct {
	FunctionDeclarations []geminiFunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type geminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

func (p *Gemini) Chat(ctx context.Context, req Request) (<-chan streamevent.Event, error) {
	body := geminiRequest{
		GenerationConfig: &geminiGenerationConfig{Temperature: req.Temperature, TopP: req.TopP, MaxOutputTokens: req.MaxTokens},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemPrompt}}}
	}
	body.Contents = toGeminiContents(req.Messages)

	if tools := adapter.ConvertTools(req.Tools, config.ProtocolGemini, nil); len(tools) > 0 {
		var decls []geminiFunctionDeclaration
		for _, t := range tools {
			decls = append(decls, geminiFunctionDeclaration{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
		}
		body.Tools = []geminiToolSet{{FunctionDeclarations: decls}}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	baseURL := p.cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	url := baseURL + "/models/" + p.cfg.Model + ":streamGenerateContent?alt=sse&key=" + p.cfg.APIKey
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

func (p *Gemini) stream(ctx context.Context, body io.ReadCloser, out chan<- streamevent.Event) {
	defer close(out)
	defer body.Close()

	reader := newSSEReader(body)
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

		var chunk map[string]any
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		p.handleChunk(chunk, out)
	}
}

func (p *Gemini) handleChunk(chunk map[string]any, out chan<- streamevent.Event) {
	if errObj, ok := chunk["error"].(map[string]any); ok {
		msg, _ := errObj["message"].(string)
		out <- streamevent.ErrorEvent(&ProviderError{Kind: ErrInvalidRequest, Message: msg})
		return
	}

	candidates, _ := chunk["candidates"].([]any)
	if len(candidates) > 0 {
		cand, _ := candidates[0].(map[string]any)
		content, _ := cand["content"].(map[string]any)
		parts, _ := content["parts"].([]any)
		for _, rp := range parts {
			part, _ := rp.(map[string]any)
			if text, ok := part["text"].(string); ok && text != "" {
				out <- streamevent.Text(text)
			}
			if fc, ok := part["functionCall"].(map[string]any); ok {
				name, _ := fc["name"].(string)
				args, _ := fc["args"].(map[string]any)
				id := uuid.NewString()
				argsJSON, _ := json.Marshal(args)
				out <- streamevent.ToolCallStart(id, name)
				out <- streamevent.ToolCallDelta(id, string(argsJSON), name)
				out <- streamevent.ToolCallEnd(streamevent.ToolCall{ID: id, Name: name, Arguments: args, RawArgs: string(argsJSON)})
			}
		}
	}

	if usage, ok := chunk["usageMetadata"].(map[string]any); ok {
		out <- streamevent.UsageEvent(streamevent.Usage{
			InputTokens:  intOf(usage["promptTokenCount"]),
			OutputTokens: intOf(usage["candidatesTokenCount"]),
		})
	}
}

// toGeminiContents applies §4.3's Gemini adaptation rules: (a) prepend a
// synthetic user turn if the conversation doesn't start with one; (b) merge
// consecutive same-role messages, except functionResponse-bearing ones;
// (c)/(d) tool calls and results are translated into functionCall/
// functionResponse parts.
func toGeminiContents(messages []adapter.WireMessage) []geminiContent {
	var raw []geminiContent
	for _, m := range messages {
		if m.Role == "system" {
			continue // carried via systemInstruction, not a content entry
		}
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		raw = append(raw, geminiContent{Role: role, Parts: geminiPartsFor(m)})
	}

	if len(raw) == 0 || raw[0].Role != "user" {
		raw = append([]geminiContent{{Role: "user", Parts: []geminiPart{{Text: "Continue the conversation."}}}}, raw...)
	}

	merged := make([]geminiContent, 0, len(raw))
	for _, c := range raw {
		if n := len(merged); n > 0 && merged[n-1].Role == c.Role && !containsFunctionResponse(c.Parts) && !containsFunctionResponse(merged[n-1].Parts) {
			merged[n-1].Parts = append(merged[n-1].Parts, c.Parts...)
			continue
		}
		merged = append(merged, c)
	}
	return merged
}

func containsFunctionResponse(parts []geminiPart) bool {
	for _, p := range parts {
		if p.FunctionResponse != nil {
			return true
		}
	}
	return false
}

func geminiPartsFor(m adapter.WireMessage) []geminiPart {
	var textParts, fnParts []geminiPart

	switch c := m.Content.(type) {
	case string:
		if c != "" {
			textParts = append(textParts, geminiPart{Text: c})
		}
	case []adapter.WireContentPart:
		for _, p := range c {
			switch p.Type {
			case "text":
				textParts = append(textParts, geminiPart{Text: p.Text})
			case "image":
				textParts = append(textParts, geminiPart{InlineData: &geminiInlineData{MimeType: p.MimeType, Data: p.ImageB64}})
			case "function_response", "tool_result":
				var resp any
				if err := json.Unmarshal([]byte(p.ToolResult), &resp); err != nil {
					resp = map[string]any{"result": p.ToolResult}
				}
				fnParts = append(fnParts, geminiPart{FunctionResponse: &geminiFunctionResult{ID: p.ToolUseID, Name: p.ToolName, Response: resp}})
			}
		}
	}

	// (d) function-call parts are emitted in one model turn after any text
	// parts within the same assistant message.
	for _, tc := range m.ToolCalls {
		fnParts = append(fnParts, geminiPart{FunctionCall: &geminiFunctionCall{Name: tc.Name, Args: tc.Arguments}})
	}

	return append(textParts, fnParts...)
}
