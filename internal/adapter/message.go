// Package adapter converts the core's provider-agnostic conversation and
// tool definitions into each wire protocol's on-the-wire shape and back,
// per SPEC_FULL.md §4.4 (grounded on the teacher's pkg/llms/helpers.go and
// pkg/llms/types.go ConvertToolInfoToDefinition).
package adapter

import (
	"encoding/base64"
	"encoding/json"

	"github.com/adnify/agentcore/internal/config"
	"github.com/adnify/agentcore/internal/conversation"
)

// VisionConfig controls whether image parts are included per provider
// (§4.4: "default ON for OpenAI/Anthropic/Gemini, OFF for custom").
type VisionConfig struct {
	Enabled bool
}

func defaultVisionConfig(protocol config.Protocol) VisionConfig {
	return VisionConfig{Enabled: protocol != config.ProtocolCustom}
}

// WireMessage is the provider-shaped message the MessageAdapter produces.
// Providers marshal this into their specific JSON envelope.
type WireMessage struct {
	Role    string
	Content any // string, or []WireContentPart for multi-part/tool-result shapes

	// ToolCalls carries an assistant message's prior tool-call requests so a
	// provider can re-emit them on the wire (OpenAI's tool_calls array,
	// Anthropic's tool_use content blocks, Gemini's functionCall parts) —
	// required for any multi-iteration conversation once a tool result comes
	// back in a later turn.
	ToolCalls []WireToolCall
}

// WireToolCall is the wire-agnostic shape of a previously-requested tool
// call, carried on an assistant WireMessage.
type WireToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
	RawArgs   string
}

// WireContentPart is one element of a multi-part wire message content array.
type WireContentPart struct {
	Type       string // text|image|tool_result|tool_use|function_response
	Text       string
	ImageURL   string
	ImageB64   string
	MimeType   string
	ToolUseID  string
	ToolName   string
	ToolResult string
}

// ConvertMessages produces the provider-shaped message list from a thread's
// messages, routing system prompt and tool results per protocol (§4.4).
func ConvertMessages(messages []*conversation.Message, systemPrompt string, protocol config.Protocol, ac *config.AdapterConfig, vision *VisionConfig) []WireMessage {
	vc := defaultVisionConfig(protocol)
	if vision != nil {
		vc = *vision
	}

	var out []WireMessage
	switch protocol {
	case config.ProtocolOpenAI:
		if systemPrompt != "" {
			out = append(out, WireMessage{Role: "system", Content: systemPrompt})
		}
	case config.ProtocolAnthropic:
		// system is carried as a top-level field by the provider, not a message.
	case config.ProtocolGemini:
		// systemInstruction is carried in the request config, not a message.
	case config.ProtocolCustom:
		out = append(out, convertCustomSystem(systemPrompt, ac)...)
	}

	for _, m := range messages {
		out = append(out, convertMessage(m, protocol, ac, vc)...)
	}
	return out
}

func convertCustomSystem(systemPrompt string, ac *config.AdapterConfig) []WireMessage {
	if systemPrompt == "" {
		return nil
	}
	if ac != nil && ac.MessageFormat.SystemMessageMode == "parameter" {
		// Carried via a named request parameter, not an inline message; the
		// provider implementation reads ac.MessageFormat.SystemParameterName.
		return nil
	}
	return []WireMessage{{Role: "system", Content: systemPrompt}}
}

func convertMessage(m *conversation.Message, protocol config.Protocol, ac *config.AdapterConfig, vc VisionConfig) []WireMessage {
	switch m.Role {
	case conversation.RoleUser, conversation.RoleAssistant:
		wm := WireMessage{Role: string(m.Role), Content: convertContent(m, vc)}
		for _, tc := range m.ToolCalls {
			argsJSON, _ := json.Marshal(tc.Arguments)
			wm.ToolCalls = append(wm.ToolCalls, WireToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments, RawArgs: string(argsJSON)})
		}
		return []WireMessage{wm}
	case conversation.RoleTool:
		return convertToolResult(m, protocol, ac)
	default:
		return nil
	}
}

func convertContent(m *conversation.Message, vc VisionConfig) any {
	if len(m.Content) == 0 {
		return m.Text
	}
	var parts []WireContentPart
	for _, c := range m.Content {
		if c.Image != nil {
			if !vc.Enabled {
				continue
			}
			parts = append(parts, WireContentPart{
				Type:     "image",
				ImageB64: base64.StdEncoding.EncodeToString(mustDecodeOrPassthrough(c.Image.Base64)),
				MimeType: c.Image.MimeType,
			})
			continue
		}
		if c.Text != "" {
			parts = append(parts, WireContentPart{Type: "text", Text: c.Text})
		}
	}
	if len(parts) == 0 {
		return m.Text
	}
	return parts
}

// mustDecodeOrPassthrough re-encodes only if the stored value isn't already
// valid base64 text (ImagePart.Base64 is stored pre-encoded in practice).
func mustDecodeOrPassthrough(b64 string) []byte {
	if decoded, err := base64.StdEncoding.DecodeString(b64); err == nil {
		return decoded
	}
	return []byte(b64)
}

func convertToolResult(m *conversation.Message, protocol config.Protocol, ac *config.AdapterConfig) []WireMessage {
	switch protocol {
	case config.ProtocolOpenAI:
		return []WireMessage{{
			Role: "tool",
			Content: []WireContentPart{{
				Type:       "tool_result",
				ToolUseID:  m.ToolCallID,
				ToolResult: m.ToolText,
			}},
		}}
	case config.ProtocolAnthropic:
		return []WireMessage{{
			Role: "user",
			Content: []WireContentPart{{
				Type:       "tool_result",
				ToolUseID:  m.ToolCallID,
				ToolResult: m.ToolText,
			}},
		}}
	case config.ProtocolGemini:
		return []WireMessage{{
			Role: "user",
			Content: []WireContentPart{{
				Type:       "function_response",
				ToolName:   m.ToolName,
				ToolResult: m.ToolText,
			}},
		}}
	default:
		role := "tool"
		if ac != nil && ac.MessageFormat.ToolResultRole != "" {
			role = ac.MessageFormat.ToolResultRole
		}
		content := m.ToolText
		if ac != nil && ac.MessageFormat.WrapToolResult {
			return []WireMessage{{Role: role, Content: []WireContentPart{{Type: "tool_result", ToolUseID: m.ToolCallID, ToolResult: content}}}}
		}
		return []WireMessage{{Role: role, Content: content}}
	}
}
