// Package streamevent defines the normalized event stream every Provider
// emits (SPEC_FULL.md §4.2), replacing each provider's wire-specific frames
// with one tagged variant type.
package streamevent

// Kind tags which fields of Event are populated.
type Kind int

const (
	KindText Kind = iota
	KindReasoning
	KindToolCallStart
	KindToolCallDelta
	KindToolCallEnd
	KindUsage
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindReasoning:
		return "reasoning"
	case KindToolCallStart:
		return "tool_call_start"
	case KindToolCallDelta:
		return "tool_call_delta"
	case KindToolCallEnd:
		return "tool_call_end"
	case KindUsage:
		return "usage"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// ReasoningPhase marks where in a reasoning block a reasoning event falls.
type ReasoningPhase int

const (
	ReasoningStart ReasoningPhase = iota
	ReasoningDelta
	ReasoningEnd
)

// ToolCall is the fully-parsed shape delivered by a toolCallEnd event.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
	RawArgs   string
}

// Usage mirrors the spec's TokenUsage entity (§3); trusted only when a
// provider actually reports it.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Event is the single normalized stream event type (§4.2). Only the fields
// relevant to Kind are populated; the rest are zero values.
type Event struct {
	Kind Kind

	// text / reasoning
	Delta          string
	ReasoningPhase ReasoningPhase

	// tool call start/delta/end
	ToolCallID   string
	ToolCallName string
	ArgsFragment string
	ToolCall     *ToolCall

	// usage
	Usage *Usage

	// error (terminal)
	Err error
}

func Text(delta string) Event { return Event{Kind: KindText, Delta: delta} }

func Reasoning(delta string, phase ReasoningPhase) Event {
	return Event{Kind: KindReasoning, Delta: delta, ReasoningPhase: phase}
}

func ToolCallStart(id, name string) Event {
	return Event{Kind: KindToolCallStart, ToolCallID: id, ToolCallName: name}
}

func ToolCallDelta(id, fragment string, name string) Event {
	return Event{Kind: KindToolCallDelta, ToolCallID: id, ArgsFragment: fragment, ToolCallName: name}
}

func ToolCallEnd(tc ToolCall) Event {
	return Event{Kind: KindToolCallEnd, ToolCallID: tc.ID, ToolCall: &tc}
}

func UsageEvent(u Usage) Event {
	return Event{Kind: KindUsage, Usage: &u}
}

func ErrorEvent(err error) Event {
	return Event{Kind: KindError, Err: err}
}
