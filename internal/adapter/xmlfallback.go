package adapter

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/adnify/agentcore/internal/streamevent"
	"github.com/google/uuid"
)

// toolCallBlock matches <tool_call><function=NAME><parameter=KEY>VALUE</parameter>...</function></tool_call>.
var toolCallBlock = regexp.MustCompile(`(?s)<tool_call>\s*<function=([^>]+)>(.*?)</function>\s*</tool_call>`)
var paramBlock = regexp.MustCompile(`(?s)<parameter=([^>]+)>(.*?)</parameter>`)

// ExtractXMLToolCalls parses any XML-style tool-call blocks out of finalized
// assistant text (§4.4's "XML-extraction fallback"). It is always applied to
// text that did not already produce structured tool calls.
func ExtractXMLToolCalls(text string) []streamevent.ToolCall {
	matches := toolCallBlock.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]streamevent.ToolCall, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		args := map[string]any{}
		for _, p := range paramBlock.FindAllStringSubmatch(m[2], -1) {
			key := strings.TrimSpace(p[1])
			raw := strings.TrimSpace(p[2])
			args[key] = parseParamValue(raw)
		}
		argsJSON, _ := json.Marshal(args)
		out = append(out, streamevent.ToolCall{
			ID:        uuid.NewString(),
			Name:      name,
			Arguments: args,
			RawArgs:   string(argsJSON),
		})
	}
	return out
}

// parseParamValue keeps a value as a string unless it parses as JSON (§4.4:
// "Parameter values parseable as JSON are parsed; otherwise kept as
// strings.").
func parseParamValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

// AdapterMode selects how a protocol's finalized text is searched for tool
// calls.
type AdapterMode int

const (
	ModeStructuredOnly AdapterMode = iota
	ModeXMLOnly
	ModeMixed
)

// ResolveToolCalls applies the fallback rule per mode: ModeXMLOnly always
// parses XML out of finalText; ModeMixed returns the structured calls when
// any were emitted and parses XML only when none were; ModeStructuredOnly
// returns the structured calls unchanged.
func ResolveToolCalls(mode AdapterMode, structured []streamevent.ToolCall, finalText string) []streamevent.ToolCall {
	switch mode {
	case ModeXMLOnly:
		return ExtractXMLToolCalls(finalText)
	case ModeMixed:
		if len(structured) > 0 {
			return structured
		}
		return ExtractXMLToolCalls(finalText)
	default:
		return structured
	}
}

// StripXMLToolCalls removes any <tool_call>...</tool_call> blocks from text,
// used once ExtractXMLToolCalls has consumed them so the visible assistant
// text doesn't echo the markup back to the user (Scenario E).
func StripXMLToolCalls(text string) string {
	return strings.TrimSpace(toolCallBlock.ReplaceAllString(text, ""))
}
