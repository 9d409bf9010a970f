// Package approval implements ApprovalGate (SPEC_FULL.md §4.7): a
// single-consumer rendezvous per thread between the dispatcher and the UI,
// grounded on the teacher's pkg/agent/tool_approval.go decision plumbing but
// reshaped into the spec's one-shot channel idiom (§9's "coroutine/async
// control flow... the ApprovalGate becomes a one-shot channel").
package approval

import (
	"context"
	"fmt"
	"sync"
)

// Decision is the user's resolution of a pending approval.
type Decision int

const (
	Rejected Decision = iota
	Approved
	ApprovedAndAuto
)

// Request is what the dispatcher publishes when a tool call needs consent.
type Request struct {
	ThreadID  string
	ToolCallID string
	ToolName   string
	Arguments  map[string]any
}

// pending is one in-flight rendezvous: a request plus the channel its
// resolution arrives on.
type pending struct {
	req    Request
	result chan Decision
	once   sync.Once
}

// Gate is the per-thread single-pending-approval rendezvous (§4.7, invariant
// §8.8: "at most one pending approval exists" per thread).
type Gate struct {
	mu      sync.Mutex
	byThread map[string]*pending
}

func NewGate() *Gate {
	return &Gate{byThread: map[string]*pending{}}
}

// Request opens a rendezvous for threadID and blocks until Approve/Reject is
// called or the context is cancelled.
// Returns an error if a request is already pending for this thread.
func (g *Gate) Request(ctx context.Context, req Request) (Decision, error) {
	g.mu.Lock()
	if _, exists := g.byThread[req.ThreadID]; exists {
		g.mu.Unlock()
		return Rejected, fmt.Errorf("approval already pending for thread %q", req.ThreadID)
	}
	p := &pending{req: req, result: make(chan Decision, 1)}
	g.byThread[req.ThreadID] = p
	g.mu.Unlock()

	select {
	case d := <-p.result:
		g.clear(req.ThreadID, p)
		return d, nil
	case <-ctx.Done():
		// Cancellation resolves the gate as rejected (§5 cancellation order:
		// "provider stream -> any pending approval (resolved as rejected)").
		g.resolve(req.ThreadID, p, Rejected)
		g.clear(req.ThreadID, p)
		return Rejected, ctx.Err()
	}
}

// Pending returns the request currently awaiting resolution for threadID, if
// any.
func (g *Gate) Pending(threadID string) (Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.byThread[threadID]
	if !ok {
		return Request{}, false
	}
	return p.req, true
}

// Approve resolves the pending approval for threadID with Approved. It is a
// no-op if no approval is pending, or if this gate cycle already resolved
// (§8.10: "subsequent approve() calls are no-ops until the next gate
// cycle").
func (g *Gate) Approve(threadID string) {
	g.resolveByThread(threadID, Approved)
}

// ApproveAndEnableAuto resolves approval and signals the caller should also
// toggle the tool's auto-approve flag for the session (§4.7); the toggle
// itself is the caller's responsibility since the gate holds no policy
// state.
func (g *Gate) ApproveAndEnableAuto(threadID string) {
	g.resolveByThread(threadID, ApprovedAndAuto)
}

// Reject resolves the pending approval for threadID with Rejected. Per
// §8.10, if Reject fires before Approve, the awaited call returns Rejected
// and a subsequent Approve on the same cycle is a no-op.
func (g *Gate) Reject(threadID string) {
	g.resolveByThread(threadID, Rejected)
}

func (g *Gate) resolveByThread(threadID string, d Decision) {
	g.mu.Lock()
	p, ok := g.byThread[threadID]
	g.mu.Unlock()
	if !ok {
		return
	}
	g.resolve(threadID, p, d)
}

func (g *Gate) resolve(threadID string, p *pending, d Decision) {
	p.once.Do(func() {
		p.result <- d
	})
}

func (g *Gate) clear(threadID string, p *pending) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.byThread[threadID] == p {
		delete(g.byThread, threadID)
	}
}
