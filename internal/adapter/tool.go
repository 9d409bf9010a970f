package adapter

import (
	"github.com/adnify/agentcore/internal/config"
	"github.com/adnify/agentcore/internal/tool"
)

// WireTool is the provider-shaped tool definition ToolAdapter produces.
type WireTool struct {
	// Flat shape for simple wrap modes (OpenAI/Anthropic).
	Name        string
	Description string
	Parameters  map[string]any

	// OpenAI nests the above three under "function" with an outer
	// {"type": "function"}; providers build that envelope themselves from
	// these fields rather than this adapter emitting provider JSON directly,
	// keeping this package protocol-shape-aware but encoding-agnostic.
	WrapType string // "function" (OpenAI) | "functionDeclaration" (Gemini) | custom wrapMode | ""
}

// ConvertTools wraps each tool's declarative JSON-schema parameters per
// protocol (§4.4).
func ConvertTools(tools []tool.Tool, protocol config.Protocol, ac *config.AdapterConfig) []WireTool {
	out := make([]WireTool, 0, len(tools))
	for _, t := range tools {
		wt := WireTool{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()}
		switch protocol {
		case config.ProtocolOpenAI:
			wt.WrapType = "function"
		case config.ProtocolAnthropic:
			wt.WrapType = "" // {name, description, input_schema} — no extra wrap envelope
		case config.ProtocolGemini:
			wt.WrapType = "functionDeclaration"
		case config.ProtocolCustom:
			if ac != nil {
				wt.WrapType = ac.ToolFormat.WrapMode
			}
		}
		out = append(out, wt)
	}
	return out
}
