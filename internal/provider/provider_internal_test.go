package provider

import (
	"io"
	"strings"
	"testing"

	"github.com/adnify/agentcore/internal/streamevent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyHTTPError(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   ErrorKind
	}{
		{401, "", ErrInvalidAPIKey},
		{402, "", ErrQuotaExceeded},
		{403, "", ErrQuotaExceeded},
		{404, "", ErrModelNotFound},
		{429, "", ErrRateLimit},
		{500, "", ErrServer},
		{502, "", ErrServer},
		{503, "", ErrServer},
		{400, `{"error":"context length exceeded"}`, ErrContextLengthExceed},
		{400, `{"error":"too many tokens"}`, ErrContextLengthExceed},
		{400, `{"error":"bad param"}`, ErrInvalidRequest},
		{418, "", ErrUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClassifyHTTPError(c.status, c.body), "status=%d body=%q", c.status, c.body)
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrNetwork))
	assert.True(t, Retryable(ErrTimeout))
	assert.True(t, Retryable(ErrRateLimit))
	assert.True(t, Retryable(ErrServer))
	assert.False(t, Retryable(ErrAborted))
	assert.False(t, Retryable(ErrInvalidAPIKey))
	assert.False(t, Retryable(ErrQuotaExceeded))
	assert.False(t, Retryable(ErrModelNotFound))
	assert.False(t, Retryable(ErrContextLengthExceed))
	assert.False(t, Retryable(ErrInvalidRequest))
	assert.False(t, Retryable(ErrUnknown))
}

func TestProviderErrorMessage(t *testing.T) {
	err := &ProviderError{Kind: ErrRateLimit, Message: "slow down"}
	assert.Equal(t, "RATE_LIMIT: slow down", err.Error())
}

func TestSSEReaderStripsDataPrefixAndSkipsOtherFields(t *testing.T) {
	raw := "event: message\ndata: {\"a\":1}\n\nid: 5\ndata: [DONE]\n"
	r := newSSEReader(strings.NewReader(raw))

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, first)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "[DONE]", second)
	assert.True(t, IsDone(second))

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSSEReaderHandlesPartialTrailingChunk(t *testing.T) {
	// bufio.Reader.ReadString buffers a trailing partial line across calls,
	// which is the behavior the spec requires for chunked network delivery.
	raw := "data: {\"x\":true}\ndata: [DONE]"
	r := newSSEReader(strings.NewReader(raw))

	first, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"x":true}`, first)

	second, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "[DONE]", second)
}

func TestOpenAIHandleChunkTextDelta(t *testing.T) {
	p := &OpenAI{}
	out := make(chan streamevent.Event, 8)
	calls := map[int]*openAIToolCallState{}

	chunk := map[string]any{
		"choices": []any{
			map[string]any{"delta": map[string]any{"content": "hello"}},
		},
	}
	p.handleChunk(chunk, calls, out)
	close(out)

	ev := <-out
	assert.Equal(t, streamevent.KindText, ev.Kind)
	assert.Equal(t, "hello", ev.Delta)
}

func TestOpenAIHandleChunkToolCallLifecycle(t *testing.T) {
	p := &OpenAI{}
	out := make(chan streamevent.Event, 8)
	calls := map[int]*openAIToolCallState{}

	start := map[string]any{
		"choices": []any{
			map[string]any{"delta": map[string]any{
				"tool_calls": []any{
					map[string]any{"index": float64(0), "id": "call_1", "function": map[string]any{"name": "read_file"}},
				},
			}},
		},
	}
	p.handleChunk(start, calls, out)

	delta := map[string]any{
		"choices": []any{
			map[string]any{"delta": map[string]any{
				"tool_calls": []any{
					map[string]any{"index": float64(0), "function": map[string]any{"arguments": `{"path":"a.ts"}`}},
				},
			}},
		},
	}
	p.handleChunk(delta, calls, out)

	end := map[string]any{
		"choices": []any{
			map[string]any{"delta": map[string]any{}, "finish_reason": "tool_calls"},
		},
	}
	p.handleChunk(end, calls, out)
	close(out)

	var events []streamevent.Event
	for ev := range out {
		events = append(events, ev)
	}
	require.Len(t, events, 3)
	assert.Equal(t, streamevent.KindToolCallStart, events[0].Kind)
	assert.Equal(t, "call_1", events[0].ToolCallID)
	assert.Equal(t, streamevent.KindToolCallDelta, events[1].Kind)
	assert.Equal(t, `{"path":"a.ts"}`, events[1].ArgsFragment)
	assert.Equal(t, streamevent.KindToolCallEnd, events[2].Kind)
	require.NotNil(t, events[2].ToolCall)
	assert.Equal(t, "read_file", events[2].ToolCall.Name)
	assert.Equal(t, "a.ts", events[2].ToolCall.Arguments["path"])
}

func TestOpenAIHandleChunkUsage(t *testing.T) {
	p := &OpenAI{}
	out := make(chan streamevent.Event, 8)
	calls := map[int]*openAIToolCallState{}

	chunk := map[string]any{
		"usage": map[string]any{"prompt_tokens": float64(12), "completion_tokens": float64(34)},
	}
	p.handleChunk(chunk, calls, out)
	close(out)

	ev := <-out
	assert.Equal(t, streamevent.KindUsage, ev.Kind)
	require.NotNil(t, ev.Usage)
	assert.Equal(t, 12, ev.Usage.InputTokens)
	assert.Equal(t, 34, ev.Usage.OutputTokens)
}
