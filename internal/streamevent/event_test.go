package streamevent_test

import (
	"errors"
	"testing"

	"github.com/adnify/agentcore/internal/streamevent"
	"github.com/stretchr/testify/assert"
)

func TestConstructorsSetKindAndPayload(t *testing.T) {
	assert.Equal(t, streamevent.Event{Kind: streamevent.KindText, Delta: "hi"}, streamevent.Text("hi"))

	r := streamevent.Reasoning("thinking", streamevent.ReasoningStart)
	assert.Equal(t, streamevent.KindReasoning, r.Kind)
	assert.Equal(t, streamevent.ReasoningStart, r.ReasoningPhase)

	start := streamevent.ToolCallStart("id1", "read_file")
	assert.Equal(t, streamevent.KindToolCallStart, start.Kind)
	assert.Equal(t, "id1", start.ToolCallID)
	assert.Equal(t, "read_file", start.ToolCallName)

	delta := streamevent.ToolCallDelta("id1", `{"path"`, "read_file")
	assert.Equal(t, streamevent.KindToolCallDelta, delta.Kind)
	assert.Equal(t, `{"path"`, delta.ArgsFragment)

	end := streamevent.ToolCallEnd(streamevent.ToolCall{ID: "id1", Name: "read_file"})
	assert.Equal(t, streamevent.KindToolCallEnd, end.Kind)
	assert.Equal(t, "id1", end.ToolCallID)
	assert.Equal(t, "read_file", end.ToolCall.Name)

	usage := streamevent.UsageEvent(streamevent.Usage{InputTokens: 1, OutputTokens: 2})
	assert.Equal(t, streamevent.KindUsage, usage.Kind)
	assert.Equal(t, 1, usage.Usage.InputTokens)

	errEv := streamevent.ErrorEvent(errors.New("boom"))
	assert.Equal(t, streamevent.KindError, errEv.Kind)
	assert.EqualError(t, errEv.Err, "boom")
}

func TestKindStringNamesEveryVariant(t *testing.T) {
	cases := map[streamevent.Kind]string{
		streamevent.KindText:          "text",
		streamevent.KindReasoning:     "reasoning",
		streamevent.KindToolCallStart: "tool_call_start",
		streamevent.KindToolCallDelta: "tool_call_delta",
		streamevent.KindToolCallEnd:   "tool_call_end",
		streamevent.KindUsage:         "usage",
		streamevent.KindError:         "error",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
	assert.Equal(t, "unknown", streamevent.Kind(99).String())
}
