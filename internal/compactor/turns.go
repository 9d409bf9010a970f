package compactor

import (
	"math"
	"strings"
	"time"

	"github.com/adnify/agentcore/internal/conversation"
)

// roleWeight table from §4.9's importance-scoring formula.
const (
	weightUser               = 30
	weightAssistantWithTools = 25
	weightAssistantText      = 15
	weightTool               = 10

	bonusWriteCall  = 35
	bonusDeleteCall = 45
	bonusToolError  = 40

	structuralBonusWriteOps = 20
	structuralBonusErrors   = 30
	structuralBonusRecent   = 20
)

// Turn groups one User message with everything that follows it up to (but
// excluding) the next User message, mirroring the natural request/response
// unit a reader thinks in. Messages preceding the first User message (rare —
// a seeded system preamble) form turn 0 on their own.
type Turn struct {
	Index      int
	Messages   []*conversation.Message
	Importance int
	HasWrite   bool
	HasDelete  bool
	HasError   bool
}

// groupTurns partitions msgs into Turns in original order.
func groupTurns(msgs []*conversation.Message) []Turn {
	var turns []Turn
	var cur *Turn

	for _, m := range msgs {
		if m.Role == conversation.RoleUser || cur == nil {
			if cur != nil {
				turns = append(turns, *cur)
			}
			cur = &Turn{Index: len(turns)}
		}
		cur.Messages = append(cur.Messages, m)
	}
	if cur != nil {
		turns = append(turns, *cur)
	}

	for i := range turns {
		scoreTurn(&turns[i])
	}
	last30Pct := len(turns) - len(turns)/3
	for i := range turns {
		if i >= last30Pct {
			turns[i].Importance += structuralBonusRecent
		}
	}
	return turns
}

func scoreTurn(t *Turn) {
	score := 0
	for _, m := range t.Messages {
		switch m.Role {
		case conversation.RoleUser:
			score += weightUser
		case conversation.RoleAssistant:
			if len(m.ToolCalls) > 0 {
				score += weightAssistantWithTools
			} else {
				score += weightAssistantText
			}
			for _, tc := range m.ToolCalls {
				switch classifyToolName(tc.Name) {
				case toolOpWrite:
					score += bonusWriteCall
					t.HasWrite = true
				case toolOpDelete:
					score += bonusDeleteCall
					t.HasDelete = true
				}
			}
		case conversation.RoleTool:
			score += weightTool
			if m.ToolStatus == conversation.ToolMsgError {
				score += bonusToolError
				t.HasError = true
			}
		}
	}
	// §4.9: the role/tool-call weighted sum is averaged over message count
	// before structural bonuses apply, so a long turn isn't scored merely
	// for its length relative to a short, dense one.
	averaged := math.Round(float64(score) / float64(len(t.Messages)))

	structural := 0
	if t.HasWrite || t.HasDelete {
		structural += structuralBonusWriteOps
	}
	if t.HasError {
		structural += structuralBonusErrors
	}
	t.Importance = int(averaged) + structural
}

type toolOp int

const (
	toolOpOther toolOp = iota
	toolOpWrite
	toolOpDelete
)

// classifyToolName is a naming-convention heuristic, not a registry lookup:
// the compactor only ever sees a ToolCall's name, never its Category, since
// by the time a conversation is old enough to compact the tool that ran it
// may no longer be registered (an MCP server can disconnect, for instance).
func classifyToolName(name string) toolOp {
	n := strings.ToLower(name)
	switch {
	case strings.Contains(n, "delete"), strings.Contains(n, "remove"):
		return toolOpDelete
	case strings.Contains(n, "write"), strings.Contains(n, "edit"), strings.Contains(n, "create"), strings.Contains(n, "patch"):
		return toolOpWrite
	default:
		return toolOpOther
	}
}

// selectImportantTurns returns up to max turns from candidates scoring at or
// above the importance floor, highest first, preserving original order in
// the result so downstream rendering reads chronologically.
func selectImportantTurns(candidates []Turn, max int) []Turn {
	scored := make([]Turn, 0, len(candidates))
	for _, t := range candidates {
		if t.Importance >= importantTurnScoreFloor {
			scored = append(scored, t)
		}
	}
	// Stable partial selection: sort a copy by score desc, keep the top max,
	// then re-sort the kept set back into Index order.
	sorted := append([]Turn(nil), scored...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Importance > sorted[j-1].Importance; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if len(sorted) > max {
		sorted = sorted[:max]
	}
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Index < sorted[j-1].Index; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return sorted
}

// DecisionPoint is an extracted moment where the conversation made or acted
// on a decision, used to populate StructuredSummary.Decisions.
type DecisionPoint struct {
	TurnIndex   int
	Description string
}

// FileChangeRecord folds every tool call touching a path into one entry,
// used to populate StructuredSummary.FileChanges.
type FileChangeRecord struct {
	Path       string
	Operations []string
}

func extractDecisionPoints(turns []Turn) []DecisionPoint {
	var out []DecisionPoint
	for _, t := range turns {
		if !t.HasWrite && !t.HasDelete {
			continue
		}
		for _, m := range t.Messages {
			if m.Role != conversation.RoleAssistant {
				continue
			}
			for _, tc := range m.ToolCalls {
				op := classifyToolName(tc.Name)
				if op != toolOpWrite && op != toolOpDelete {
					continue
				}
				desc := tc.Name
				if path, ok := tc.Arguments["path"].(string); ok {
					desc = tc.Name + " " + path
				}
				out = append(out, DecisionPoint{TurnIndex: t.Index, Description: desc})
			}
		}
	}
	return out
}

func extractFileChanges(turns []Turn) []FileChangeRecord {
	order := []string{}
	ops := map[string][]string{}
	for _, t := range turns {
		for _, m := range t.Messages {
			if m.Role != conversation.RoleAssistant {
				continue
			}
			for _, tc := range m.ToolCalls {
				path, ok := tc.Arguments["path"].(string)
				if !ok || path == "" {
					continue
				}
				if _, seen := ops[path]; !seen {
					order = append(order, path)
				}
				ops[path] = append(ops[path], tc.Name)
			}
		}
	}
	out := make([]FileChangeRecord, 0, len(order))
	for _, p := range order {
		out = append(out, FileChangeRecord{Path: p, Operations: ops[p]})
	}
	return out
}

func extractErrors(turns []Turn) []string {
	var out []string
	for _, t := range turns {
		if !t.HasError {
			continue
		}
		for _, m := range t.Messages {
			if m.Role == conversation.RoleTool && m.ToolStatus == conversation.ToolMsgError {
				out = append(out, m.ToolName+": "+firstLine(m.ToolText))
			}
		}
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 160 {
		s = s[:160]
	}
	return s
}

func messagesOf(turns []Turn) []*conversation.Message {
	var out []*conversation.Message
	for _, t := range turns {
		out = append(out, t.Messages...)
	}
	return out
}

// markCompacted stamps CompactedAt on every message in the dropped turns.
// Since Thread.Messages returns a shallow copy of the slice, these pointers
// are the same ones the Thread's own store holds, so this marks them live
// for a later pruning pass without rewriting the stored history itself.
func markCompacted(turns []Turn, now time.Time) {
	for _, t := range turns {
		for _, m := range t.Messages {
			stamp := now
			m.CompactedAt = &stamp
		}
	}
}
