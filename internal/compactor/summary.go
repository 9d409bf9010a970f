package compactor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adnify/agentcore/internal/conversation"
)

// Per-field caps on StructuredSummary's list fields (§4.9). Merging across
// calls is monotonic: union old with new, dedup, then re-apply these caps so
// a field never silently shrinks back below what a prior level already kept.
const (
	capCompletedSteps   = 30
	capPendingSteps     = 30
	capDecisions        = 15
	capFileChanges      = 30
	capErrorsAndFixes   = 10
	capUserInstructions = 10
)

// StructuredSummary is the non-verbose narrative carried forward from
// LevelSlidingWindow onward (§4.9).
type StructuredSummary struct {
	Objective        string
	CompletedSteps   []string
	PendingSteps     []string
	Decisions        []string
	FileChanges      []string
	ErrorsAndFixes   []string
	UserInstructions []string
	GeneratedAt      time.Time
	TurnRange        [2]int
	// Verbose is set by LevelDeepCompression, which writes a fuller
	// narrative body in addition to the capped list fields above.
	Verbose string
}

// HandoffDocument is the final artifact produced at LevelHandoff, meant to
// open a fresh session in the host's UI (§4.9).
type HandoffDocument struct {
	Summary         StructuredSummary
	LastUserRequest string
	OpenFiles       []string
	PendingChanges  []string
	NextSteps       string
	GeneratedAt     time.Time
}

// buildQuickSummary derives a StructuredSummary from dropped turns alone,
// without calling an LLM, then merges it into prev (if any) so information
// accumulated by an earlier compaction pass is never lost.
func (c *Compactor) buildQuickSummary(thread *conversation.Thread, dropped []Turn, prev *StructuredSummary, now time.Time) *StructuredSummary {
	s := &StructuredSummary{GeneratedAt: now}
	if len(dropped) > 0 {
		s.TurnRange = [2]int{dropped[0].Index, dropped[len(dropped)-1].Index}
	}

	for _, t := range dropped {
		for _, m := range t.Messages {
			switch m.Role {
			case conversation.RoleUser:
				text := userText(m)
				if s.Objective == "" {
					s.Objective = truncateWords(text, 40)
				}
				s.UserInstructions = appendUnique(s.UserInstructions, truncateWords(text, 30))
			case conversation.RoleAssistant:
				if strings.TrimSpace(m.Text) != "" && len(m.ToolCalls) == 0 {
					s.CompletedSteps = appendUnique(s.CompletedSteps, truncateWords(m.Text, 25))
				}
			}
		}
	}

	for _, dp := range extractDecisionPoints(dropped) {
		s.Decisions = appendUnique(s.Decisions, dp.Description)
	}
	for _, fc := range extractFileChanges(dropped) {
		s.FileChanges = appendUnique(s.FileChanges, fmt.Sprintf("%s (%s)", fc.Path, strings.Join(fc.Operations, ", ")))
	}
	s.ErrorsAndFixes = append(s.ErrorsAndFixes, extractErrors(dropped)...)

	if plan := thread.GetPlan(); plan != nil {
		for _, item := range plan.Items {
			if item.Status == "pending" || item.Status == "in_progress" {
				s.PendingSteps = appendUnique(s.PendingSteps, item.Title)
			}
		}
	}

	return mergeSummaries(prev, s)
}

// buildDetailedSummary asks the wired Summarizer for a prose narrative and
// attaches it as Verbose, falling back to the quick summary untouched when
// no Summarizer is wired or DetailedSummary is off (§4.9 level 3's "verbose
// summary" is optional, disabled by default).
func (c *Compactor) buildDetailedSummary(ctx context.Context, thread *conversation.Thread, dropped []Turn, prev *StructuredSummary, now time.Time) (*StructuredSummary, error) {
	s := c.buildQuickSummary(thread, dropped, prev, now)
	if !c.cfg.DetailedSummary || c.summarize == nil || len(dropped) == 0 {
		return s, nil
	}

	var b strings.Builder
	for _, t := range dropped {
		for _, m := range t.Messages {
			switch m.Role {
			case conversation.RoleUser:
				fmt.Fprintf(&b, "User: %s\n", userText(m))
			case conversation.RoleAssistant:
				if m.Text != "" {
					fmt.Fprintf(&b, "Assistant: %s\n", m.Text)
				}
			case conversation.RoleTool:
				fmt.Fprintf(&b, "Tool %s (%s): %s\n", m.ToolName, m.ToolStatus, firstLine(m.ToolText))
			}
		}
	}

	prompt := "Summarize this portion of a coding-assistant session in a short paragraph, " +
		"preserving file paths, decisions, and unresolved errors:\n\n" + b.String()
	text, err := c.summarize(ctx, prompt)
	if err != nil {
		return s, fmt.Errorf("detailed summary: %w", err)
	}
	s.Verbose = strings.TrimSpace(text)
	return s, nil
}

// mergeSummaries unions prev into next field-by-field, deduplicating and
// re-applying caps, so repeated compaction passes accumulate rather than
// overwrite. next's GeneratedAt and TurnRange upper bound win since they are
// the more recent values.
func mergeSummaries(prev, next *StructuredSummary) *StructuredSummary {
	if prev == nil {
		return capSummary(next)
	}
	merged := &StructuredSummary{
		Objective:   prev.Objective,
		GeneratedAt: next.GeneratedAt,
		TurnRange:   [2]int{prev.TurnRange[0], next.TurnRange[1]},
		Verbose:     next.Verbose,
	}
	if merged.Objective == "" {
		merged.Objective = next.Objective
	}
	if merged.Verbose == "" {
		merged.Verbose = prev.Verbose
	}
	merged.CompletedSteps = appendUniqueAll(prev.CompletedSteps, next.CompletedSteps)
	merged.PendingSteps = appendUniqueAll(prev.PendingSteps, next.PendingSteps)
	merged.Decisions = appendUniqueAll(prev.Decisions, next.Decisions)
	merged.FileChanges = appendUniqueAll(prev.FileChanges, next.FileChanges)
	merged.ErrorsAndFixes = appendUniqueAll(prev.ErrorsAndFixes, next.ErrorsAndFixes)
	merged.UserInstructions = appendUniqueAll(prev.UserInstructions, next.UserInstructions)
	return capSummary(merged)
}

func capSummary(s *StructuredSummary) *StructuredSummary {
	s.CompletedSteps = capList(s.CompletedSteps, capCompletedSteps)
	s.PendingSteps = capList(s.PendingSteps, capPendingSteps)
	s.Decisions = capList(s.Decisions, capDecisions)
	s.FileChanges = capList(s.FileChanges, capFileChanges)
	s.ErrorsAndFixes = capList(s.ErrorsAndFixes, capErrorsAndFixes)
	s.UserInstructions = capList(s.UserInstructions, capUserInstructions)
	return s
}

func capList(items []string, max int) []string {
	if len(items) <= max {
		return items
	}
	// Keep the most recent entries: older history is already folded into
	// Objective/Verbose, so trimming from the front loses the least.
	return items[len(items)-max:]
}

func appendUnique(items []string, v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return items
	}
	for _, existing := range items {
		if existing == v {
			return items
		}
	}
	return append(items, v)
}

func appendUniqueAll(base, additions []string) []string {
	out := append([]string(nil), base...)
	for _, a := range additions {
		out = appendUnique(out, a)
	}
	return out
}

func truncateWords(s string, maxWords int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

func userText(m *conversation.Message) string {
	var b strings.Builder
	for _, p := range m.Content {
		b.WriteString(p.Text)
	}
	return b.String()
}

// Render formats a StructuredSummary as the prose block AgentLoop prepends
// to the system prompt (§4.9's "prepended to the system prompt").
func (s *StructuredSummary) Render() string {
	var b strings.Builder
	b.WriteString("## Earlier in this session\n\n")
	if s.Objective != "" {
		fmt.Fprintf(&b, "Objective: %s\n\n", s.Objective)
	}
	renderList(&b, "Completed", s.CompletedSteps)
	renderList(&b, "Pending", s.PendingSteps)
	renderList(&b, "Decisions", s.Decisions)
	renderList(&b, "Files touched", s.FileChanges)
	renderList(&b, "Errors encountered", s.ErrorsAndFixes)
	if s.Verbose != "" {
		fmt.Fprintf(&b, "\n%s\n", s.Verbose)
	}
	return b.String()
}

func renderList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

// Render formats a HandoffDocument as the system-message body for a fresh
// session, bannered so the model (and a human reading transcripts) knows
// this is a continuation rather than a cold start (§4.9).
func (h *HandoffDocument) Render() string {
	var b strings.Builder
	b.WriteString("This is a continuation of a previous session. The work below was already in progress.\n\n")
	b.WriteString(h.Summary.Render())
	if h.LastUserRequest != "" {
		fmt.Fprintf(&b, "Last request before handoff: %s\n\n", h.LastUserRequest)
	}
	renderList(&b, "Open files", h.OpenFiles)
	renderList(&b, "Pending changes", h.PendingChanges)
	if h.NextSteps != "" {
		fmt.Fprintf(&b, "Next steps: %s\n", h.NextSteps)
	}
	return b.String()
}
