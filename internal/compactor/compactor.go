// Package compactor implements ContextCompactor (SPEC_FULL.md §4.9): the
// five-level ladder that keeps a Thread's message history inside a model's
// context window as the conversation grows, grounded on the sliding-window
// trimming in pkg/agent/token_aware_history.go and the LLM-based
// summarization prompt in pkg/agent/summarization.go.
//
// Compact never mutates the Thread's persisted history in place except at
// the handoff level, where SetMessages intentionally rewrites it. At lower
// levels it returns a transformed view for the caller (AgentLoop's
// MessageAdapter) to send to the provider, marking dropped messages'
// CompactedAt so a later pruning pass can drop them from the live window.
package compactor

import (
	"context"
	"fmt"
	"time"

	"github.com/adnify/agentcore/internal/config"
	"github.com/adnify/agentcore/internal/conversation"
	"github.com/adnify/agentcore/internal/observability"
	"github.com/adnify/agentcore/internal/tokens"
)

// Level names the rung of the ladder a Compact call landed on.
type Level int

const (
	LevelFull Level = iota
	LevelSmartTruncation
	LevelSlidingWindow
	LevelDeepCompression
	LevelHandoff
)

func (l Level) String() string {
	switch l {
	case LevelFull:
		return "full"
	case LevelSmartTruncation:
		return "smart_truncation"
	case LevelSlidingWindow:
		return "sliding_window"
	case LevelDeepCompression:
		return "deep_compression"
	case LevelHandoff:
		return "handoff"
	default:
		return "unknown"
	}
}

// smartTruncateCharBudget bounds a single Tool message's retained text at L1
// and above. The spec names the ratio thresholds precisely but leaves this
// figure unstated; 4000 chars is half the dispatcher's default
// max_tool_result_chars (8000), so a tool result the dispatcher already
// shrank once is cut further by compaction.
const smartTruncateCharBudget = 4000

// importantTurnScoreFloor is the minimum importance score (§4.9's scoring
// formula) a turn needs to be a candidate for the L2 "important old turns"
// set, independent of the L2ImportantTurns cap.
const importantTurnScoreFloor = 60

// Summarizer produces an LLM-written narrative summary of prompt. AgentLoop
// wires this to Provider.Chat; compactor stays provider-agnostic.
type Summarizer func(ctx context.Context, prompt string) (string, error)

// Stats reports how a Compact call classified the conversation.
type Stats struct {
	Ratio        float64
	TotalTokens  int
	ContextLimit int
	Level        Level
}

// Result is everything AgentLoop needs after a Compact call.
type Result struct {
	Messages []*conversation.Message
	Stats    Stats
	// Summary is set from LevelSlidingWindow upward; AgentLoop prepends its
	// rendered form to the system prompt and threads it back into the next
	// Compact call as prevSummary for monotonic merging.
	Summary *StructuredSummary
	// Handoff is set only at LevelHandoff.
	Handoff *HandoffDocument
}

// Compactor is constructed once per LLMConfig and reused across Compact
// calls for a given thread.
type Compactor struct {
	cfg       config.CompactorConfig
	accounter *tokens.Accounter
	summarize Summarizer
	metrics   *observability.Metrics
}

// New builds a Compactor. summarize may be nil; DetailedSummary then has no
// effect and L3/L4 fall back to the quick heuristic summary.
func New(cfg config.CompactorConfig, accounter *tokens.Accounter, summarize Summarizer) *Compactor {
	cfg.SetDefaults()
	return &Compactor{cfg: cfg, accounter: accounter, summarize: summarize}
}

// SetMetrics attaches a Prometheus recorder (§10); nil is safe.
func (c *Compactor) SetMetrics(metrics *observability.Metrics) {
	c.metrics = metrics
}

// Compact classifies the thread's current token pressure and applies the
// matching rung of the ladder. lastUsage, when Trusted, is preferred over
// re-counting tokens locally since it reflects what the provider actually
// billed. prevSummary carries the previous call's Summary forward so L2/L3
// narratives merge monotonically instead of losing earlier context.
func (c *Compactor) Compact(ctx context.Context, thread *conversation.Thread, contextLimit int, lastUsage *conversation.TokenUsage, prevSummary *StructuredSummary) (*Result, error) {
	msgs := thread.Messages()

	total := c.estimate(msgs, lastUsage)
	ratio := 0.0
	if contextLimit > 0 {
		ratio = float64(total) / float64(contextLimit)
	}
	level := c.levelFor(ratio)

	stats := Stats{Ratio: ratio, TotalTokens: total, ContextLimit: contextLimit, Level: level}
	thread.CompactionLevel = int(level)
	c.metrics.RecordCompactionEvent(level.String())

	switch level {
	case LevelFull:
		return &Result{Messages: msgs, Stats: stats}, nil

	case LevelSmartTruncation:
		return &Result{Messages: c.smartTruncate(msgs), Stats: stats}, nil

	case LevelSlidingWindow:
		out, summary, err := c.slidingWindow(ctx, thread, msgs, prevSummary)
		if err != nil {
			return nil, err
		}
		return &Result{Messages: out, Stats: stats, Summary: summary}, nil

	case LevelDeepCompression:
		out, summary, err := c.deepCompression(ctx, thread, msgs, prevSummary)
		if err != nil {
			return nil, err
		}
		return &Result{Messages: out, Stats: stats, Summary: summary}, nil

	case LevelHandoff:
		if !c.cfg.AutoHandoff {
			out, summary, err := c.deepCompression(ctx, thread, msgs, prevSummary)
			if err != nil {
				return nil, err
			}
			stats.Level = LevelDeepCompression
			thread.CompactionLevel = int(LevelDeepCompression)
			return &Result{Messages: out, Stats: stats, Summary: summary}, nil
		}
		out, summary, handoff, err := c.handoff(ctx, thread, msgs, prevSummary)
		if err != nil {
			return nil, err
		}
		thread.NeedsHandoff = true
		return &Result{Messages: out, Stats: stats, Summary: summary, Handoff: handoff}, nil
	}

	return &Result{Messages: msgs, Stats: stats}, nil
}

func (c *Compactor) levelFor(ratio float64) Level {
	switch {
	case ratio >= c.cfg.L4Ratio:
		return LevelHandoff
	case ratio >= c.cfg.L3Ratio:
		return LevelDeepCompression
	case ratio >= c.cfg.L2Ratio:
		return LevelSlidingWindow
	case ratio >= c.cfg.L1Ratio:
		return LevelSmartTruncation
	default:
		return LevelFull
	}
}

func (c *Compactor) estimate(msgs []*conversation.Message, lastUsage *conversation.TokenUsage) int {
	if lastUsage != nil && lastUsage.Trusted {
		return lastUsage.InputTokens + lastUsage.OutputTokens
	}
	return c.accounter.CountTotal(toTokenMessages(msgs))
}

func toTokenMessages(msgs []*conversation.Message) []tokens.Message {
	out := make([]tokens.Message, 0, len(msgs))
	for _, m := range msgs {
		tm := tokens.Message{Role: string(m.Role)}
		switch m.Role {
		case conversation.RoleUser:
			for _, part := range m.Content {
				if part.Image != nil {
					tm.ImageCount++
					continue
				}
				tm.Content += part.Text
			}
		case conversation.RoleAssistant:
			tm.Content = m.Text + m.Reasoning
			for _, tc := range m.ToolCalls {
				tm.ToolCalls = append(tm.ToolCalls, tokens.ToolCallShape{Name: tc.Name, Arguments: tc.Arguments})
			}
		case conversation.RoleTool:
			tm.Content = m.ToolText
		}
		out = append(out, tm)
	}
	return out
}

// smartTruncate caps every Tool message's text at the L1 character budget,
// leaving everything else untouched (§4.9 level 1).
func (c *Compactor) smartTruncate(msgs []*conversation.Message) []*conversation.Message {
	out := make([]*conversation.Message, len(msgs))
	for i, m := range msgs {
		if m.Role != conversation.RoleTool || len(m.ToolText) <= smartTruncateCharBudget {
			out[i] = m
			continue
		}
		clone := *m
		clone.ToolText = headTailTruncate(m.ToolText, smartTruncateCharBudget)
		out[i] = &clone
	}
	return out
}

// headTailTruncate keeps the first 60% and last 40% of limit characters,
// joined by an omission marker added on top of limit. The dispatcher's own
// truncate (internal/dispatcher) differs: it splits evenly, words its marker
// differently, and counts the marker inside the limit.
func headTailTruncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	headLen := limit * 6 / 10
	tailLen := limit - headLen
	marker := fmt.Sprintf("\n... [%d chars omitted] ...\n", len(s)-headLen-tailLen)
	return s[:headLen] + marker + s[len(s)-tailLen:]
}

// Prune physically drops messages from thread's live window whose
// CompactedAt is older than pivot — the newest sliding-window pivot, i.e.
// the CreatedAt of the oldest message still in the active L2/L3 view. A
// message already summarized into a StructuredSummary one call ago but kept
// around for a grace period becomes eligible for removal here; it remains
// reachable only through the StructuredSummary that absorbed it, not
// through the live message list.
func Prune(thread *conversation.Thread, pivot time.Time) {
	msgs := thread.Messages()
	kept := make([]*conversation.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.CompactedAt != nil && m.CompactedAt.Before(pivot) {
			continue
		}
		kept = append(kept, m)
	}
	thread.SetMessages(kept)
}

