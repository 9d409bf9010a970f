package agentloop_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/adnify/agentcore/internal/agentloop"
	"github.com/adnify/agentcore/internal/approval"
	"github.com/adnify/agentcore/internal/compactor"
	"github.com/adnify/agentcore/internal/config"
	"github.com/adnify/agentcore/internal/conversation"
	"github.com/adnify/agentcore/internal/dispatcher"
	"github.com/adnify/agentcore/internal/eventbus"
	"github.com/adnify/agentcore/internal/loopdetector"
	"github.com/adnify/agentcore/internal/provider"
	"github.com/adnify/agentcore/internal/streamevent"
	"github.com/adnify/agentcore/internal/tokens"
	"github.com/adnify/agentcore/internal/tool"
	"github.com/adnify/agentcore/internal/toolmanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queueProvider replays a fixed sequence of completions, one per call to
// Chat; a call past the end of the queue returns an empty, already-closed
// stream (as if the model replied with nothing further).
type queueProvider struct {
	mu    sync.Mutex
	turns [][]streamevent.Event
	calls int
}

func (p *queueProvider) Chat(_ context.Context, _ provider.Request) (<-chan streamevent.Event, error) {
	p.mu.Lock()
	idx := p.calls
	p.calls++
	p.mu.Unlock()

	var events []streamevent.Event
	if idx < len(p.turns) {
		events = p.turns[idx]
	}
	ch := make(chan streamevent.Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

// echoTool always succeeds and reports a write so auto-fix/plan bookkeeping
// has something to observe.
type echoTool struct {
	name     string
	category tool.Category
	result   string
}

func (e *echoTool) Name() string                   { return e.name }
func (e *echoTool) Description() string             { return "" }
func (e *echoTool) Parameters() map[string]any      { return nil }
func (e *echoTool) ApprovalType() tool.ApprovalType { return tool.ApprovalNone }
func (e *echoTool) Category() tool.Category         { return e.category }
func (e *echoTool) ParallelSafe() bool              { return true }
func (e *echoTool) Execute(_ context.Context, _ map[string]any) (*tool.Result, error) {
	return &tool.Result{Content: e.result}, nil
}

func newLoop(t *testing.T, prov provider.Provider, cfg config.AgentLoopConfig, tools ...tool.Executable) *agentloop.Loop {
	t.Helper()
	reg := tool.NewRegistry()
	for _, tl := range tools {
		reg.Register(tl)
	}
	tm := toolmanager.New(reg, nil)

	dcfg := config.DispatcherConfig{}
	dcfg.SetDefaults()
	gate := approval.NewGate()
	bus := eventbus.New()
	loopDet := loopdetector.New()
	dispatch := dispatcher.New(dcfg, tm, gate, bus, loopDet)

	acc, err := tokens.New("gpt-4o")
	require.NoError(t, err)
	compact := compactor.New(config.CompactorConfig{}, acc, nil)

	llmCfg := &config.LLMConfig{Provider: config.ProtocolOpenAI, Model: "gpt-4o", ContextLimit: 128000, MaxTokens: 1024}

	return agentloop.New(cfg, llmCfg, prov, tm, dispatch, compact, loopDet, bus, acc, "you are a test assistant")
}

func TestSend_ChatModeStopsAfterOneCompletionEvenWithToolCalls(t *testing.T) {
	prov := &queueProvider{turns: [][]streamevent.Event{
		{
			streamevent.Text("hello"),
			streamevent.ToolCallEnd(streamevent.ToolCall{ID: "c1", Name: "search", Arguments: map[string]any{}}),
		},
	}}
	loop := newLoop(t, prov, config.AgentLoopConfig{})

	store := conversation.NewStore()
	thread := store.GetOrCreate("t1")
	agentloop.BeginUserTurn(thread, []conversation.ContentPart{{Text: "hi"}})

	err := loop.Send(context.Background(), thread, agentloop.ExecutionContext{ChatMode: agentloop.ModeChat, ThreadID: thread.ID})
	require.NoError(t, err)

	msgs := thread.Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, conversation.RoleAssistant, last.Role)
	assert.Equal(t, "hello", last.Text)
	assert.Equal(t, 1, prov.calls)
}

func TestSend_AgentModeDispatchesToolCallThenCompletes(t *testing.T) {
	prov := &queueProvider{turns: [][]streamevent.Event{
		{streamevent.ToolCallEnd(streamevent.ToolCall{ID: "c1", Name: "write_file", Arguments: map[string]any{"path": "a.go"}})},
		{streamevent.Text("done")},
	}}
	loop := newLoop(t, prov, config.AgentLoopConfig{}, &echoTool{name: "write_file", category: tool.CategoryWrite, result: "wrote it"})

	store := conversation.NewStore()
	thread := store.GetOrCreate("t2")
	agentloop.BeginUserTurn(thread, []conversation.ContentPart{{Text: "write a file"}})

	err := loop.Send(context.Background(), thread, agentloop.ExecutionContext{ChatMode: agentloop.ModeAgent, ThreadID: thread.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, prov.calls)

	var sawToolMsg bool
	for _, m := range thread.Messages() {
		if m.Role == conversation.RoleTool && m.ToolText == "wrote it" {
			sawToolMsg = true
		}
	}
	assert.True(t, sawToolMsg, "expected a tool-result message recording the dispatched call")

	msgs := thread.Messages()
	assert.Equal(t, "done", msgs[len(msgs)-1].Text)
}

func TestSend_StopsAtMaxToolLoops(t *testing.T) {
	// Every completion reports a fresh tool call so the loop never
	// naturally terminates; MaxToolLoops must bound it.
	turns := make([][]streamevent.Event, 10)
	for i := range turns {
		turns[i] = []streamevent.Event{
			streamevent.ToolCallEnd(streamevent.ToolCall{ID: "c", Name: "search", Arguments: map[string]any{"q": i}}),
		}
	}
	prov := &queueProvider{turns: turns}
	loop := newLoop(t, prov, config.AgentLoopConfig{MaxToolLoops: 3}, &echoTool{name: "search", category: tool.CategoryRead, result: "ok"})

	store := conversation.NewStore()
	thread := store.GetOrCreate("t3")
	agentloop.BeginUserTurn(thread, []conversation.ContentPart{{Text: "loop forever"}})

	err := loop.Send(context.Background(), thread, agentloop.ExecutionContext{ChatMode: agentloop.ModeAgent, ThreadID: thread.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, prov.calls)
}

func TestSend_RejectsConcurrentRunsOnSameThread(t *testing.T) {
	release := make(chan struct{})
	prov := &blockingOnceProvider{release: release}
	loop := newLoop(t, prov, config.AgentLoopConfig{})

	store := conversation.NewStore()
	thread := store.GetOrCreate("t4")
	agentloop.BeginUserTurn(thread, []conversation.ContentPart{{Text: "hi"}})

	done := make(chan error, 1)
	go func() {
		done <- loop.Send(context.Background(), thread, agentloop.ExecutionContext{ChatMode: agentloop.ModeChat, ThreadID: thread.ID})
	}()

	require.Eventually(t, func() bool {
		err := loop.Send(context.Background(), thread, agentloop.ExecutionContext{ChatMode: agentloop.ModeChat, ThreadID: thread.ID})
		return err != nil
	}, time.Second, time.Millisecond)

	close(release)
	require.NoError(t, <-done)
}

// blockingOnceProvider blocks its first Chat call until release is closed,
// then replies with a single text event; useful for exercising the
// single-run-per-thread guard without a race on a sleep.
type blockingOnceProvider struct {
	release chan struct{}
}

func (p *blockingOnceProvider) Chat(_ context.Context, _ provider.Request) (<-chan streamevent.Event, error) {
	<-p.release
	ch := make(chan streamevent.Event, 1)
	ch <- streamevent.Text("ok")
	close(ch)
	return ch, nil
}
