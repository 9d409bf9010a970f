package adapter_test

import (
	"testing"

	"github.com/adnify/agentcore/internal/adapter"
	"github.com/adnify/agentcore/internal/config"
	"github.com/adnify/agentcore/internal/conversation"
	"github.com/adnify/agentcore/internal/streamevent"
	"github.com/adnify/agentcore/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	name string
	desc string
}

func (f fakeTool) Name() string                   { return f.name }
func (f fakeTool) Description() string             { return f.desc }
func (f fakeTool) Parameters() map[string]any      { return map[string]any{"type": "object"} }
func (f fakeTool) ApprovalType() tool.ApprovalType  { return tool.ApprovalNone }
func (f fakeTool) Category() tool.Category          { return tool.CategoryRead }
func (f fakeTool) ParallelSafe() bool               { return true }

func TestConvertMessagesSystemPromptRouting(t *testing.T) {
	msgs := []*conversation.Message{{Role: conversation.RoleUser, Text: "hi", Content: []conversation.ContentPart{{Text: "hi"}}}}

	openai := adapter.ConvertMessages(msgs, "be terse", config.ProtocolOpenAI, nil, nil)
	require.NotEmpty(t, openai)
	assert.Equal(t, "system", openai[0].Role)
	assert.Equal(t, "be terse", openai[0].Content)

	anthropic := adapter.ConvertMessages(msgs, "be terse", config.ProtocolAnthropic, nil, nil)
	for _, m := range anthropic {
		assert.NotEqual(t, "system", m.Role, "anthropic carries system out-of-band, not as a message")
	}

	gemini := adapter.ConvertMessages(msgs, "be terse", config.ProtocolGemini, nil, nil)
	for _, m := range gemini {
		assert.NotEqual(t, "system", m.Role)
	}
}

func TestConvertMessagesCustomSystemParameterModeOmitsMessage(t *testing.T) {
	msgs := []*conversation.Message{{Role: conversation.RoleUser, Text: "hi"}}
	ac := &config.AdapterConfig{MessageFormat: config.MessageFormat{SystemMessageMode: "parameter"}}

	out := adapter.ConvertMessages(msgs, "sys prompt", config.ProtocolCustom, ac, nil)
	for _, m := range out {
		assert.NotEqual(t, "system", m.Role)
	}
}

func TestConvertMessagesCustomSystemRoleModeIncludesMessage(t *testing.T) {
	msgs := []*conversation.Message{{Role: conversation.RoleUser, Text: "hi"}}
	ac := &config.AdapterConfig{MessageFormat: config.MessageFormat{SystemMessageMode: "role"}}

	out := adapter.ConvertMessages(msgs, "sys prompt", config.ProtocolCustom, ac, nil)
	require.NotEmpty(t, out)
	assert.Equal(t, "system", out[0].Role)
}

func TestConvertMessagesToolResultPerProtocol(t *testing.T) {
	tm := &conversation.Message{Role: conversation.RoleTool, ToolCallID: "call_1", ToolName: "read_file", ToolText: "contents"}

	openai := adapter.ConvertMessages([]*conversation.Message{tm}, "", config.ProtocolOpenAI, nil, nil)
	require.Len(t, openai, 1)
	assert.Equal(t, "tool", openai[0].Role)

	anthropic := adapter.ConvertMessages([]*conversation.Message{tm}, "", config.ProtocolAnthropic, nil, nil)
	require.Len(t, anthropic, 1)
	assert.Equal(t, "user", anthropic[0].Role)
	parts, ok := anthropic[0].Content.([]adapter.WireContentPart)
	require.True(t, ok)
	assert.Equal(t, "tool_result", parts[0].Type)
	assert.Equal(t, "call_1", parts[0].ToolUseID)

	gemini := adapter.ConvertMessages([]*conversation.Message{tm}, "", config.ProtocolGemini, nil, nil)
	require.Len(t, gemini, 1)
	parts, ok = gemini[0].Content.([]adapter.WireContentPart)
	require.True(t, ok)
	assert.Equal(t, "function_response", parts[0].Type)
	assert.Equal(t, "read_file", parts[0].ToolName)
}

func TestConvertMessagesImageVisionToggle(t *testing.T) {
	msgs := []*conversation.Message{{
		Role:    conversation.RoleUser,
		Content: []conversation.ContentPart{{Text: "look"}, {Image: &conversation.ImagePart{MimeType: "image/png", Base64: "aGVsbG8="}}},
	}}

	on := adapter.ConvertMessages(msgs, "", config.ProtocolOpenAI, nil, nil)
	parts, ok := on[0].Content.([]adapter.WireContentPart)
	require.True(t, ok)
	assert.Len(t, parts, 2)

	off := &adapter.VisionConfig{Enabled: false}
	disabled := adapter.ConvertMessages(msgs, "", config.ProtocolOpenAI, nil, off)
	parts, ok = disabled[0].Content.([]adapter.WireContentPart)
	require.True(t, ok)
	assert.Len(t, parts, 1, "image part dropped when vision disabled")
}

func TestConvertToolsWrapModePerProtocol(t *testing.T) {
	tools := []tool.Tool{fakeTool{name: "read_file", desc: "reads a file"}}

	openai := adapter.ConvertTools(tools, config.ProtocolOpenAI, nil)
	require.Len(t, openai, 1)
	assert.Equal(t, "function", openai[0].WrapType)

	anthropic := adapter.ConvertTools(tools, config.ProtocolAnthropic, nil)
	assert.Equal(t, "", anthropic[0].WrapType)

	gemini := adapter.ConvertTools(tools, config.ProtocolGemini, nil)
	assert.Equal(t, "functionDeclaration", gemini[0].WrapType)

	custom := adapter.ConvertTools(tools, config.ProtocolCustom, &config.AdapterConfig{ToolFormat: config.ToolFormat{WrapMode: "tool"}})
	assert.Equal(t, "tool", custom[0].WrapType)
}

func TestExtractXMLToolCallsParsesNameAndParams(t *testing.T) {
	text := `Let me do this: <tool_call><function=read_file><parameter=path>"a.ts"</parameter></function></tool_call>`
	calls := adapter.ExtractXMLToolCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "read_file", calls[0].Name)
	assert.Equal(t, "a.ts", calls[0].Arguments["path"])
	assert.NotEmpty(t, calls[0].ID)
}

func TestExtractXMLToolCallsKeepsNonJSONParamAsString(t *testing.T) {
	text := `<tool_call><function=write_file><parameter=content>not json at all</parameter></function></tool_call>`
	calls := adapter.ExtractXMLToolCalls(text)
	require.Len(t, calls, 1)
	assert.Equal(t, "not json at all", calls[0].Arguments["content"])
}

func TestExtractXMLToolCallsNoneFound(t *testing.T) {
	assert.Nil(t, adapter.ExtractXMLToolCalls("just plain assistant text"))
}

func TestStripXMLToolCallsRemovesMarkup(t *testing.T) {
	text := `before <tool_call><function=f><parameter=k>v</parameter></function></tool_call> after`
	stripped := adapter.StripXMLToolCalls(text)
	assert.Equal(t, "before  after", stripped)
}

func TestResolveToolCallsStructuredWinsOverXML(t *testing.T) {
	structured := []streamevent.ToolCall{{ID: "1", Name: "read_file", Arguments: map[string]any{"path": "a.ts"}}}
	text := `<tool_call><function=write_file><parameter=path>"b.ts"</parameter></function></tool_call>`

	resolved := adapter.ResolveToolCalls(adapter.ModeMixed, structured, text)
	require.Len(t, resolved, 1)
	assert.Equal(t, "read_file", resolved[0].Name)
}

func TestResolveToolCallsFallsBackToXMLWhenNoStructured(t *testing.T) {
	text := `<tool_call><function=read_file><parameter=path>"a.ts"</parameter></function></tool_call>`
	resolved := adapter.ResolveToolCalls(adapter.ModeMixed, nil, text)
	require.Len(t, resolved, 1)
	assert.Equal(t, "read_file", resolved[0].Name)
}

func TestResolveToolCallsModeStructuredOnlyIgnoresXML(t *testing.T) {
	text := `<tool_call><function=read_file><parameter=path>"a.ts"</parameter></function></tool_call>`
	resolved := adapter.ResolveToolCalls(adapter.ModeStructuredOnly, nil, text)
	assert.Empty(t, resolved)
}
