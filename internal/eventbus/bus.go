// Package eventbus implements the in-process fan-out of StreamEvents and
// lifecycle events to the UI layer (SPEC_FULL.md §2.13, §6). No pack repo
// ships a pub/sub library for this — see DESIGN.md's stdlib justification —
// so this is a plain channel-based subscriber registry, the idiom the
// teacher itself reaches for whenever it needs in-process fan-out (e.g. its
// slog handler composition).
package eventbus

import "sync"

// Topic names the lifecycle/stream channel an Event was published on (§6).
type Topic string

const (
	StreamText         Topic = "stream:text"
	StreamReasoning    Topic = "stream:reasoning"
	StreamToolStart    Topic = "stream:tool_start"
	StreamToolDelta    Topic = "stream:tool_delta"
	StreamToolAvailable Topic = "stream:tool_available"

	LLMStart Topic = "llm:start"
	LLMDone  Topic = "llm:done"
	LLMError Topic = "llm:error"

	ToolPending   Topic = "tool:pending"
	ToolRunning   Topic = "tool:running"
	ToolCompleted Topic = "tool:completed"
	ToolError     Topic = "tool:error"
	ToolRejected  Topic = "tool:rejected"

	ContextLevel   Topic = "context:level"
	ContextPrune   Topic = "context:prune"
	ContextSummary Topic = "context:summary"
	ContextHandoff Topic = "context:handoff"

	LoopStart   Topic = "loop:start"
	LoopIter    Topic = "loop:iteration"
	LoopEnd     Topic = "loop:end"
	LoopWarning Topic = "loop:warning"
)

// Event is one published occurrence: a topic plus an opaque payload whose
// concrete type is topic-specific (the UI layer type-switches on it).
type Event struct {
	Topic    Topic
	ThreadID string
	Payload  any
}

type subscriber struct {
	id int
	ch chan Event
}

// Bus is the process-wide (or per-Core-instance) fan-out hub. Safe for
// concurrent publish and subscribe/unsubscribe.
type Bus struct {
	mu        sync.RWMutex
	subs      []*subscriber
	nextID    int
	bufSize   int
}

func New() *Bus {
	return &Bus{bufSize: 256}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe function. The channel is buffered (bufSize events); once a
// slow consumer's buffer is full, Publish drops further events for it
// instead of blocking the producer.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	sub := &subscriber{id: id, ch: make(chan Event, b.bufSize)}
	b.subs = append(b.subs, sub)

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				close(s.ch)
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
	return sub.ch, unsubscribe
}

// Publish fans out ev to every current subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			// Buffer full: drop rather than block the producer indefinitely.
			// The spec places backpressure responsibility on the UI, but an
			// in-process channel cannot be allowed to wedge the agent loop.
		}
	}
}
