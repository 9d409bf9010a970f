package compactor

import (
	"context"
	"time"

	"github.com/adnify/agentcore/internal/conversation"
)

// slidingWindow implements §4.9 level 2: keep the L2RecentTurns most recent
// turns verbatim (smart-truncated), keep up to L2ImportantTurns older turns
// whose importance score clears the floor, summarize the rest and mark it
// compacted.
func (c *Compactor) slidingWindow(ctx context.Context, thread *conversation.Thread, msgs []*conversation.Message, prevSummary *StructuredSummary) ([]*conversation.Message, *StructuredSummary, error) {
	turns := groupTurns(msgs)
	recentN := c.cfg.L2RecentTurns
	if recentN > len(turns) {
		recentN = len(turns)
	}
	older := turns[:len(turns)-recentN]
	recent := turns[len(turns)-recentN:]

	kept := selectImportantTurns(older, c.cfg.L2ImportantTurns)
	keptSet := map[int]bool{}
	for _, t := range kept {
		keptSet[t.Index] = true
	}

	var dropped []Turn
	for _, t := range older {
		if !keptSet[t.Index] {
			dropped = append(dropped, t)
		}
	}

	now := time.Now()
	markCompacted(dropped, now)

	summary := c.buildQuickSummary(thread, dropped, prevSummary, now)

	out := messagesOf(kept)
	out = append(out, messagesOf(recent)...)
	return c.smartTruncate(out), summary, nil
}

// deepCompression implements §4.9 level 3: keep only the L3RecentTurns most
// recent turns, fold everything else — including whatever the sliding
// window had already kept — into one updated summary, optionally asking an
// LLM for a fuller narrative when DetailedSummary is enabled.
func (c *Compactor) deepCompression(ctx context.Context, thread *conversation.Thread, msgs []*conversation.Message, prevSummary *StructuredSummary) ([]*conversation.Message, *StructuredSummary, error) {
	turns := groupTurns(msgs)
	recentN := c.cfg.L3RecentTurns
	if recentN > len(turns) {
		recentN = len(turns)
	}
	older := turns[:len(turns)-recentN]
	recent := turns[len(turns)-recentN:]

	now := time.Now()
	markCompacted(older, now)

	summary, err := c.buildDetailedSummary(ctx, thread, older, prevSummary, now)
	if err != nil {
		return nil, nil, err
	}

	out := c.smartTruncate(messagesOf(recent))
	return out, summary, nil
}

// handoff implements §4.9 level 4: fold the entire thread into a
// HandoffDocument, then physically rewrite the thread's stored history to
// just a banner plus the last exchange, since nothing beyond that should
// survive into the next session's live window.
func (c *Compactor) handoff(ctx context.Context, thread *conversation.Thread, msgs []*conversation.Message, prevSummary *StructuredSummary) ([]*conversation.Message, *StructuredSummary, *HandoffDocument, error) {
	turns := groupTurns(msgs)
	now := time.Now()

	summary, err := c.buildDetailedSummary(ctx, thread, turns, prevSummary, now)
	if err != nil {
		return nil, nil, nil, err
	}

	doc := &HandoffDocument{
		Summary:        *summary,
		PendingChanges: summary.PendingSteps,
		GeneratedAt:    now,
	}
	for _, fc := range extractFileChanges(turns) {
		doc.OpenFiles = appendUnique(doc.OpenFiles, fc.Path)
	}
	if len(summary.PendingSteps) > 0 {
		doc.NextSteps = summary.PendingSteps[len(summary.PendingSteps)-1]
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == conversation.RoleUser {
			doc.LastUserRequest = truncateWords(userText(msgs[i]), 60)
			break
		}
	}

	banner := &conversation.Message{
		Role:      conversation.RoleSystem,
		Text:      doc.Render(),
		CreatedAt: now,
	}

	var tail []*conversation.Message
	if len(turns) > 0 {
		tail = turns[len(turns)-1].Messages
	}

	newHistory := append([]*conversation.Message{banner}, tail...)
	thread.SetMessages(newHistory)

	return newHistory, summary, doc, nil
}
