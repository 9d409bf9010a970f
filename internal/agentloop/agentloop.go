// Package agentloop implements the AgentLoop top-level controller
// (SPEC_FULL.md §4.11, §2.12): the bounded per-thread iteration that calls a
// Provider, streams its output into a Thread, detects repetition, dispatches
// tool calls, feeds results back, and terminates on completion, handoff,
// abort, or resource exhaustion. Grounded on the teacher's
// pkg/agent/services.go (per-request orchestration) and pkg/agent/registry.go
// (the single-active-run-per-agent bookkeeping this package generalizes to
// per-thread).
package agentloop

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adnify/agentcore/internal/adapter"
	"github.com/adnify/agentcore/internal/compactor"
	"github.com/adnify/agentcore/internal/config"
	"github.com/adnify/agentcore/internal/conversation"
	"github.com/adnify/agentcore/internal/dispatcher"
	"github.com/adnify/agentcore/internal/eventbus"
	"github.com/adnify/agentcore/internal/loopdetector"
	"github.com/adnify/agentcore/internal/provider"
	"github.com/adnify/agentcore/internal/streamevent"
	"github.com/adnify/agentcore/internal/tokens"
	"github.com/adnify/agentcore/internal/tool/builtin"
	"github.com/adnify/agentcore/internal/toolmanager"
)

// ChatMode selects how aggressively the loop uses tools (§4.11).
type ChatMode string

const (
	ModeChat  ChatMode = "chat"
	ModeAgent ChatMode = "agent"
	ModePlan  ChatMode = "plan"
)

// ExecutionContext carries the per-send parameters §4.11 names as inputs
// beyond the thread and LLMConfig themselves.
type ExecutionContext struct {
	WorkspacePath string
	ChatMode      ChatMode
	ThreadID      string
}

// updatePlanReminder is injected verbatim as a user-role message when plan
// mode detects file-modifying tool calls without a corresponding
// update_plan this turn (§4.11 step 2.d).
const updatePlanReminder = "You modified files but did not call `update_plan` this turn. Call `update_plan` to keep the plan's status current before continuing."

// Loop is constructed once per LLMConfig/tool-set combination (typically
// once per process) and driven per-thread by Send. It owns no thread state
// directly — per-thread bookkeeping (running guard, carried summary, lint
// injection history) lives in small internal maps keyed by threadId.
type Loop struct {
	cfg       config.AgentLoopConfig
	llmCfg    *config.LLMConfig
	provider  provider.Provider
	tools     *toolmanager.Manager
	dispatch  *dispatcher.Dispatcher
	compact   *compactor.Compactor
	loopDet   *loopdetector.Detector
	bus       *eventbus.Bus
	accounter *tokens.Accounter

	systemPrompt string

	runningMu sync.Mutex
	running   map[string]bool

	stateMu       sync.Mutex
	summaries     map[string]*compactor.StructuredSummary
	lintInjected  map[string]map[string]bool
}

// New builds a Loop wired to a single LLMConfig and the shared
// dispatcher/compactor/loop-detector/tool-manager instances the caller has
// already constructed (they may be shared across many Loops and threads).
func New(cfg config.AgentLoopConfig, llmCfg *config.LLMConfig, prov provider.Provider, tools *toolmanager.Manager, dispatch *dispatcher.Dispatcher, compact *compactor.Compactor, loopDet *loopdetector.Detector, bus *eventbus.Bus, accounter *tokens.Accounter, systemPrompt string) *Loop {
	cfg.SetDefaults()
	return &Loop{
		cfg:          cfg,
		llmCfg:       llmCfg,
		provider:     prov,
		tools:        tools,
		dispatch:     dispatch,
		compact:      compact,
		loopDet:      loopDet,
		bus:          bus,
		accounter:    accounter,
		systemPrompt: systemPrompt,
		running:      map[string]bool{},
		summaries:    map[string]*compactor.StructuredSummary{},
		lintInjected: map[string]map[string]bool{},
	}
}

// acquire enforces invariant §8.8/§5 "at most one in-flight LLM request /
// AgentLoop per threadId".
func (l *Loop) acquire(threadID string) error {
	l.runningMu.Lock()
	defer l.runningMu.Unlock()
	if l.running[threadID] {
		return fmt.Errorf("agent loop already running for thread %q", threadID)
	}
	l.running[threadID] = true
	return nil
}

func (l *Loop) release(threadID string) {
	l.runningMu.Lock()
	defer l.runningMu.Unlock()
	delete(l.running, threadID)
}

func (l *Loop) prevSummary(threadID string) *compactor.StructuredSummary {
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	return l.summaries[threadID]
}

func (l *Loop) setSummary(threadID string, s *compactor.StructuredSummary) {
	if s == nil {
		return
	}
	l.stateMu.Lock()
	defer l.stateMu.Unlock()
	l.summaries[threadID] = s
}

// BeginUserTurn appends a Checkpoint message followed by the user's message
// to thread, satisfying §3's "A Checkpoint message precedes each User turn"
// invariant before Send is ever called. Callers (the CLI, tests) use this
// rather than appending the user message directly.
func BeginUserTurn(thread *conversation.Thread, content []conversation.ContentPart) *conversation.Message {
	thread.Append(&conversation.Message{Role: conversation.RoleCheckpoint, Snapshots: map[string]conversation.FileSnapshot{}})
	msg := &conversation.Message{Role: conversation.RoleUser, Content: content}
	thread.Append(msg)
	return msg
}

// Send runs the bounded tool-call loop for thread until completion, handoff,
// abort, or maxToolLoops is reached (§4.11's numbered algorithm).
func (l *Loop) Send(ctx context.Context, thread *conversation.Thread, execCtx ExecutionContext) error {
	if err := l.acquire(thread.ID); err != nil {
		return err
	}
	defer l.release(thread.ID)

	l.bus.Publish(eventbus.Event{Topic: eventbus.LoopStart, ThreadID: thread.ID})

	prevSummary := l.prevSummary(thread.ID)
	var lastUsage *conversation.TokenUsage
	var fileModifiedThisSend bool
	var updatePlanCalledThisSend bool
	iteration := 0

	for ; iteration < l.cfg.MaxToolLoops; iteration++ {
		select {
		case <-ctx.Done():
			l.bus.Publish(eventbus.Event{Topic: eventbus.LoopEnd, ThreadID: thread.ID, Payload: "aborted"})
			return ctx.Err()
		default:
		}

		l.bus.Publish(eventbus.Event{Topic: eventbus.LoopIter, ThreadID: thread.ID, Payload: iteration})

		compacted, err := l.compact.Compact(ctx, thread, l.llmCfg.ContextLimit, lastUsage, prevSummary)
		if err != nil {
			return fmt.Errorf("compacting thread %s: %w", thread.ID, err)
		}
		l.bus.Publish(eventbus.Event{Topic: eventbus.ContextLevel, ThreadID: thread.ID, Payload: compacted.Stats})
		if compacted.Summary != nil {
			prevSummary = compacted.Summary
			l.bus.Publish(eventbus.Event{Topic: eventbus.ContextSummary, ThreadID: thread.ID, Payload: compacted.Summary})
		}

		effectiveSystemPrompt := l.systemPrompt
		if compacted.Handoff != nil {
			l.bus.Publish(eventbus.Event{Topic: eventbus.ContextHandoff, ThreadID: thread.ID, Payload: compacted.Handoff})
			effectiveSystemPrompt = compacted.Handoff.Render() + "\n\n" + l.systemPrompt
		} else if compacted.Summary != nil {
			effectiveSystemPrompt = compacted.Summary.Render() + "\n\n" + l.systemPrompt
		}

		assistantMsg := &conversation.Message{Role: conversation.RoleAssistant, IsStreaming: true}
		thread.Append(assistantMsg)

		if err := l.runOneCompletion(ctx, thread, assistantMsg, effectiveSystemPrompt, execCtx, compacted.Messages); err != nil {
			conversation.Finalize(assistantMsg)
			assistantMsg.Text += "\n❌ " + err.Error()
			l.bus.Publish(eventbus.Event{Topic: eventbus.LLMError, ThreadID: thread.ID, Payload: err})
			l.bus.Publish(eventbus.Event{Topic: eventbus.LoopEnd, ThreadID: thread.ID, Payload: "llm_error"})
			l.setSummary(thread.ID, prevSummary)
			return nil
		}
		conversation.Finalize(assistantMsg)

		if assistantMsg.Usage != nil {
			lastUsage = assistantMsg.Usage
		}

		resolveAndStripXML(assistantMsg)

		if execCtx.ChatMode == ModeChat {
			break
		}

		for _, tc := range assistantMsg.ToolCalls {
			if tc.Name == "update_plan" {
				updatePlanCalledThisSend = true
			}
		}

		if len(assistantMsg.ToolCalls) == 0 {
			if execCtx.ChatMode == ModePlan && thread.GetPlan() != nil && fileModifiedThisSend && !updatePlanCalledThisSend {
				thread.Append(&conversation.Message{Role: conversation.RoleUser, Content: []conversation.ContentPart{{Text: updatePlanReminder}}})
				continue
			}
			break
		}

		loopResult := l.loopDet.Observe(assistantMsg.ToolCalls)
		if loopResult.IsLoop {
			assistantMsg.Text += "\n⚠️ " + loopResult.Reason
			if loopResult.Suggestion != "" {
				assistantMsg.Text += ": " + loopResult.Suggestion
			}
			l.bus.Publish(eventbus.Event{Topic: eventbus.LoopWarning, ThreadID: thread.ID, Payload: loopResult})
			break
		}

		dispatchCtx := builtin.WithSession(builtin.WithPlanStore(ctx, NewPlanStore(thread)), thread)
		if err := l.dispatch.Dispatch(dispatchCtx, thread, assistantMsg.ToolCalls); err != nil {
			return fmt.Errorf("dispatching tool calls for thread %s: %w", thread.ID, err)
		}

		if l.anyFileModified(assistantMsg.ToolCalls) {
			fileModifiedThisSend = true
		}

		if l.anyWaitingForUser(assistantMsg.ToolCalls) {
			l.bus.Publish(eventbus.Event{Topic: eventbus.LoopEnd, ThreadID: thread.ID, Payload: "waiting_for_user"})
			l.setSummary(thread.ID, prevSummary)
			return nil
		}

		if l.cfg.EnableAutoFix {
			l.runAutoFix(ctx, thread, assistantMsg.ToolCalls, loopResult)
		}

		if l.anyRejected(assistantMsg.ToolCalls) {
			l.bus.Publish(eventbus.Event{Topic: eventbus.LoopEnd, ThreadID: thread.ID, Payload: "user_rejected"})
			l.setSummary(thread.ID, prevSummary)
			return nil
		}
	}

	if iteration == l.cfg.MaxToolLoops {
		l.bus.Publish(eventbus.Event{Topic: eventbus.LoopWarning, ThreadID: thread.ID, Payload: "max iterations"})
	}

	compactor.Prune(thread, pivotFor(thread))
	l.setSummary(thread.ID, prevSummary)
	l.bus.Publish(eventbus.Event{Topic: eventbus.LoopEnd, ThreadID: thread.ID, Payload: "complete"})
	return nil
}

// runOneCompletion performs steps 2.a-2.b: call the Provider, stream events
// into assistantMsg and the bus, and record reported usage.
func (l *Loop) runOneCompletion(ctx context.Context, thread *conversation.Thread, assistantMsg *conversation.Message, systemPrompt string, execCtx ExecutionContext, history []*conversation.Message) error {
	wireMessages := adapter.ConvertMessages(history, systemPrompt, l.llmCfg.Provider, l.llmCfg.Adapter, nil)

	req := provider.Request{
		Model:        l.llmCfg.Model,
		Messages:     wireMessages,
		SystemPrompt: systemPrompt,
		MaxTokens:    l.llmCfg.MaxTokens,
		Temperature:  l.llmCfg.Temperature,
		TopP:         l.llmCfg.TopP,
		Stream:       true,
	}
	if execCtx.ChatMode != ModeChat {
		req.Tools = l.tools.Definitions()
	}

	l.bus.Publish(eventbus.Event{Topic: eventbus.LLMStart, ThreadID: thread.ID})

	events, err := l.provider.Chat(ctx, req)
	if err != nil {
		return err
	}

	for ev := range events {
		switch ev.Kind {
		case streamevent.KindText:
			assistantMsg.Text += ev.Delta
			l.bus.Publish(eventbus.Event{Topic: eventbus.StreamText, ThreadID: thread.ID, Payload: ev})
		case streamevent.KindReasoning:
			assistantMsg.Reasoning += ev.Delta
			l.bus.Publish(eventbus.Event{Topic: eventbus.StreamReasoning, ThreadID: thread.ID, Payload: ev})
		case streamevent.KindToolCallStart:
			l.bus.Publish(eventbus.Event{Topic: eventbus.StreamToolStart, ThreadID: thread.ID, Payload: ev})
		case streamevent.KindToolCallDelta:
			l.bus.Publish(eventbus.Event{Topic: eventbus.StreamToolDelta, ThreadID: thread.ID, Payload: ev})
		case streamevent.KindToolCallEnd:
			tc := &conversation.ToolCall{
				ID:        ev.ToolCall.ID,
				Name:      ev.ToolCall.Name,
				Arguments: ev.ToolCall.Arguments,
				Status:    conversation.ToolPending,
			}
			assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, tc)
			l.bus.Publish(eventbus.Event{Topic: eventbus.StreamToolAvailable, ThreadID: thread.ID, Payload: tc})
		case streamevent.KindUsage:
			assistantMsg.Usage = &conversation.TokenUsage{InputTokens: ev.Usage.InputTokens, OutputTokens: ev.Usage.OutputTokens, Trusted: true}
		case streamevent.KindError:
			return ev.Err
		}
	}

	l.bus.Publish(eventbus.Event{Topic: eventbus.LLMDone, ThreadID: thread.ID})
	return nil
}

// resolveAndStripXML applies §4.4's XML-extraction fallback: when the
// provider emitted no structured tool calls, parse them from the finalized
// text instead and remove the matched markup from what the user sees.
func resolveAndStripXML(assistantMsg *conversation.Message) {
	structured := make([]streamevent.ToolCall, 0, len(assistantMsg.ToolCalls))
	for _, tc := range assistantMsg.ToolCalls {
		structured = append(structured, streamevent.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
	}
	resolved := adapter.ResolveToolCalls(adapter.ModeMixed, structured, assistantMsg.Text)
	if len(structured) > 0 || len(resolved) == 0 {
		return
	}
	for _, tc := range resolved {
		assistantMsg.ToolCalls = append(assistantMsg.ToolCalls, &conversation.ToolCall{
			ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments, Status: conversation.ToolPending,
		})
	}
	assistantMsg.Text = adapter.StripXMLToolCalls(assistantMsg.Text)
}

func (l *Loop) anyWaitingForUser(calls []*conversation.ToolCall) bool {
	for _, c := range calls {
		if c.WaitingForUser {
			return true
		}
	}
	return false
}

func (l *Loop) anyRejected(calls []*conversation.ToolCall) bool {
	for _, c := range calls {
		if c.Status == conversation.ToolRejected {
			return true
		}
	}
	return false
}

func (l *Loop) anyFileModified(calls []*conversation.ToolCall) bool {
	for _, c := range calls {
		if c.Status != conversation.ToolSuccess {
			continue
		}
		switch l.tools.Category(c.Name) {
		case "write", "delete":
			return true
		}
	}
	return false
}

// runAutoFix implements §4.11 step h: after a successful write, run
// get_lint_errors for each changed file and, on real errors (not warnings),
// inject a reminder message listing up to three of them. A file that was
// already nagged about, and has not linted clean since, is skipped when the
// loop detector judges this iteration to be a repeat — the
// Open Question resolution recorded in DESIGN.md for the auto-fix/loop-
// detector interaction.
func (l *Loop) runAutoFix(ctx context.Context, thread *conversation.Thread, calls []*conversation.ToolCall, loopResult loopdetector.Result) {
	var changed []string
	for _, c := range calls {
		if c.Status != conversation.ToolSuccess {
			continue
		}
		cat := l.tools.Category(c.Name)
		if cat != "write" && cat != "delete" {
			continue
		}
		if path, ok := c.Arguments["path"].(string); ok && path != "" {
			changed = append(changed, path)
		}
	}
	if len(changed) == 0 {
		return
	}

	l.stateMu.Lock()
	injected := l.lintInjected[thread.ID]
	if injected == nil {
		injected = map[string]bool{}
		l.lintInjected[thread.ID] = injected
	}
	l.stateMu.Unlock()

	var messages []string
	for _, path := range changed {
		if injected[path] && loopResult.IsLoop {
			continue
		}
		result, err := l.tools.Execute(ctx, "get_lint_errors", map[string]any{"path": path})
		if err != nil || result == nil {
			continue
		}
		if !hasErrorSeverity(result.Content) {
			l.stateMu.Lock()
			delete(injected, path)
			l.stateMu.Unlock()
			continue
		}
		for _, line := range strings.Split(result.Content, "\n") {
			if len(messages) < 3 && strings.Contains(line, ": error:") {
				messages = append(messages, line)
			}
		}
		l.stateMu.Lock()
		injected[path] = true
		l.stateMu.Unlock()
		if len(messages) >= 3 {
			break
		}
	}

	if len(messages) == 0 {
		return
	}
	text := "Lint/compiler errors were introduced by the last change:\n"
	for _, m := range messages {
		text += m + "\n"
	}
	thread.Append(&conversation.Message{Role: conversation.RoleUser, Content: []conversation.ContentPart{{Text: text}}})
}

func hasErrorSeverity(content string) bool {
	return strings.Contains(content, ": error:") || strings.Contains(content, ": error\n") || strings.Contains(content, " error ")
}

// pivotFor returns the CreatedAt of the oldest message still in the thread's
// live window (i.e. not yet marked CompactedAt), the pruning pivot the
// compaction ladder describes. A thread with no compacted messages yet still
// yields a safe no-op pivot (the start of its own history).
func pivotFor(thread *conversation.Thread) time.Time {
	msgs := thread.Messages()
	for _, m := range msgs {
		if m.CompactedAt == nil {
			return m.CreatedAt
		}
	}
	if len(msgs) > 0 {
		return msgs[len(msgs)-1].CreatedAt
	}
	return time.Time{}
}
