// Package dispatcher implements ToolDispatcher (SPEC_FULL.md §4.8): snapshot
// capture, dependency-ordered partitioning, a bounded parallel pool for
// no-approval calls, sequential gated execution for approval-required
// calls, result truncation, and conversation write-back.
//
// The bounded worker pool is grounded on the teacher's own concurrent
// fan-out idiom (pkg/agent/workflowagent/parallel.go's errgroup.WithContext
// usage), generalized here with errgroup's SetLimit to the spec's dynamic
// concurrency formula instead of one goroutine per sub-agent.
package dispatcher

import (
	"context"
	"fmt"
	"math"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/adnify/agentcore/internal/approval"
	"github.com/adnify/agentcore/internal/config"
	"github.com/adnify/agentcore/internal/conversation"
	"github.com/adnify/agentcore/internal/eventbus"
	"github.com/adnify/agentcore/internal/loopdetector"
	"github.com/adnify/agentcore/internal/observability"
	"github.com/adnify/agentcore/internal/tool"
	"github.com/adnify/agentcore/internal/toolmanager"
	"golang.org/x/sync/errgroup"
)

// Dispatcher executes one iteration's tool calls against the configured
// ToolManager, writing results back onto the thread (§4.8).
type Dispatcher struct {
	cfg       config.DispatcherConfig
	tools     *toolmanager.Manager
	approvals *approval.Gate
	bus       *eventbus.Bus
	loop      *loopdetector.Detector
	metrics   *observability.Metrics

	autoMu       sync.Mutex
	autoApproved map[string]map[string]bool // threadID -> tool name -> auto-approved for the rest of the thread
}

func New(cfg config.DispatcherConfig, tools *toolmanager.Manager, approvals *approval.Gate, bus *eventbus.Bus, loop *loopdetector.Detector) *Dispatcher {
	return &Dispatcher{cfg: cfg, tools: tools, approvals: approvals, bus: bus, loop: loop, autoApproved: map[string]map[string]bool{}}
}

// isAutoApproved reports whether threadID previously resolved toolName via
// ApproveAndEnableAuto (§4.7), in which case partition no longer routes it
// through the gate.
func (d *Dispatcher) isAutoApproved(threadID, toolName string) bool {
	d.autoMu.Lock()
	defer d.autoMu.Unlock()
	return d.autoApproved[threadID][toolName]
}

// enableAuto records that toolName no longer needs approval for the rest of
// threadID's conversation.
func (d *Dispatcher) enableAuto(threadID, toolName string) {
	d.autoMu.Lock()
	defer d.autoMu.Unlock()
	if d.autoApproved[threadID] == nil {
		d.autoApproved[threadID] = map[string]bool{}
	}
	d.autoApproved[threadID][toolName] = true
}

// SetMetrics attaches a Prometheus recorder (§10); nil is safe and leaves
// the dispatcher unmetered, matching its zero-value behavior from New.
func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	d.metrics = metrics
}

// concurrency computes the dynamic pool size (§4.8 step 4).
func (d *Dispatcher) concurrency() int {
	n := int(math.Floor(float64(runtime.NumCPU()) * d.cfg.CPUMultiplier))
	if n > d.cfg.MaxConcurrency {
		n = d.cfg.MaxConcurrency
	}
	if n < d.cfg.MinConcurrency {
		n = d.cfg.MinConcurrency
	}
	return n
}

// Dispatch runs calls for the given thread: snapshotting touched files,
// partitioning by approval class, running the no-approval partition through
// a dependency-respecting bounded pool, then running approval-required
// calls sequentially through the gate. It returns the first unexpected
// (non-tool) error — individual tool failures are recorded on the calls
// themselves and never abort the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, thread *conversation.Thread, calls []*conversation.ToolCall) error {
	d.snapshot(thread, calls)

	byID := map[string]*conversation.ToolCall{}
	byName := map[string][]*conversation.ToolCall{}
	for _, c := range calls {
		byID[c.ID] = c
		byName[c.Name] = append(byName[c.Name], c)
	}

	graph := d.buildGraph(calls)
	noApproval, needsApproval := d.partition(thread.ID, calls)

	if err := d.runParallel(ctx, thread, noApproval, graph); err != nil {
		return err
	}

	failed := map[string]bool{}
	for _, c := range calls {
		if c.Status == conversation.ToolError || c.Status == conversation.ToolRejected {
			failed[c.ID] = true
		}
	}
	d.runSequentialApprovals(ctx, thread, needsApproval, graph, byID, byName, failed)

	for _, c := range calls {
		d.writeBack(thread, c)
	}
	return nil
}

// depBlocked resolves one dependency edge (a call ID for implicit
// same-path ordering, or a tool name for explicit toolDependencies entries)
// against the shared failed set, reporting whether it blocks the caller.
func depBlocked(dep string, byID map[string]*conversation.ToolCall, byName map[string][]*conversation.ToolCall, failed map[string]bool) bool {
	if _, isID := byID[dep]; isID {
		return failed[dep]
	}
	for _, pred := range byName[dep] {
		if failed[pred.ID] {
			return true
		}
	}
	return false
}

// snapshot captures pre-write file content into the thread's most recent
// Checkpoint message (§4.8 step 1). A path already recorded this turn is
// left untouched — the checkpoint owns the content as of the *start* of the
// turn, not the state after an earlier call in the same batch ran.
func (d *Dispatcher) snapshot(thread *conversation.Thread, calls []*conversation.ToolCall) {
	cp := thread.LatestCheckpoint()
	if cp == nil {
		return
	}
	if cp.Snapshots == nil {
		cp.Snapshots = map[string]conversation.FileSnapshot{}
	}
	for _, c := range calls {
		if d.tools.Category(c.Name) != tool.CategoryWrite && d.tools.Category(c.Name) != tool.CategoryDelete {
			continue
		}
		path, _ := c.Arguments["path"].(string)
		if path == "" {
			continue
		}
		if _, exists := cp.Snapshots[path]; exists {
			continue
		}
		b, err := os.ReadFile(path)
		if err != nil {
			cp.Snapshots[path] = conversation.FileSnapshot{PreviousContent: nil}
			continue
		}
		content := string(b)
		cp.Snapshots[path] = conversation.FileSnapshot{PreviousContent: &content}
	}
}

// dependency graph: node -> predecessors that must finish first.
type graph map[string][]string

// buildGraph combines explicit config-declared dependencies with the
// implicit same-path write-ordering rule (§4.8 step 2).
func (d *Dispatcher) buildGraph(calls []*conversation.ToolCall) graph {
	g := graph{}
	byName := map[string][]*conversation.ToolCall{}
	for _, c := range calls {
		g[c.ID] = append(g[c.ID], d.cfg.ToolDependencies[c.Name]...)
		byName[c.Name] = append(byName[c.Name], c)
	}

	lastWriterFor := map[string]string{} // path -> call ID of the most recent write seen so far
	for _, c := range calls {
		cat := d.tools.Category(c.Name)
		if cat != tool.CategoryWrite && cat != tool.CategoryDelete {
			continue
		}
		path, _ := c.Arguments["path"].(string)
		if path == "" {
			continue
		}
		if prev, ok := lastWriterFor[path]; ok {
			g[c.ID] = append(g[c.ID], prev)
		}
		lastWriterFor[path] = c.ID
	}
	return g
}

// explicit dependency names resolve to predecessor call IDs of that name
// present in this batch; toolDependencies stores tool *names*, so
// translation happens lazily inside runParallel/ready where call IDs are
// in scope. buildGraph above stores raw names for explicit edges and call
// IDs for implicit ones; ready() below handles both.

// partition splits calls by whether they still need to cross the gate:
// tools with ApprovalNone, and tools a prior ApproveAndEnableAuto already
// cleared for this thread (§4.7), both skip straight to the parallel pool.
func (d *Dispatcher) partition(threadID string, calls []*conversation.ToolCall) (noApproval, needsApproval []*conversation.ToolCall) {
	for _, c := range calls {
		if d.tools.ApprovalType(c.Name) == tool.ApprovalNone || d.isAutoApproved(threadID, c.Name) {
			noApproval = append(noApproval, c)
		} else {
			needsApproval = append(needsApproval, c)
		}
	}
	return
}

// runParallel executes the no-approval partition through a bounded worker
// pool that only starts a call once its predecessors (by ID or by declared
// tool-name dependency) have completed successfully (§4.8 steps 2-4).
func (d *Dispatcher) runParallel(ctx context.Context, thread *conversation.Thread, calls []*conversation.ToolCall, g graph) error {
	if len(calls) == 0 {
		return nil
	}

	byID := map[string]*conversation.ToolCall{}
	byName := map[string][]*conversation.ToolCall{}
	for _, c := range calls {
		byID[c.ID] = c
		byName[c.Name] = append(byName[c.Name], c)
	}

	var mu sync.Mutex
	scheduled := map[string]bool{}
	completed := map[string]bool{}

	ready := func(c *conversation.ToolCall) bool {
		for _, dep := range g[c.ID] {
			if _, isID := byID[dep]; isID {
				if !completed[dep] {
					return false
				}
				continue
			}
			for _, pred := range byName[dep] {
				if !completed[pred.ID] {
					return false
				}
			}
		}
		return true
	}

	limit := d.concurrency()
	remaining := len(calls)

	// Runs in waves: each wave schedules every currently-ready, not-yet-run
	// call (bounded by the dynamic concurrency limit) and waits for the
	// wave to finish before recomputing readiness (§4.8 step 4's "as soon
	// as its predecessors completed successfully").
	for remaining > 0 {
		mu.Lock()
		var wave []*conversation.ToolCall
		for _, c := range calls {
			if scheduled[c.ID] {
				continue
			}
			if ready(c) {
				wave = append(wave, c)
				scheduled[c.ID] = true
			}
		}
		mu.Unlock()

		if len(wave) == 0 {
			// A dependency can never be satisfied (a predecessor that did not
			// succeed, or a dangling explicit name); fail the stragglers
			// individually rather than deadlock.
			for _, c := range calls {
				if !scheduled[c.ID] {
					c.Status = conversation.ToolError
					c.Error = "dependency not met"
					scheduled[c.ID] = true
					remaining--
				}
			}
			continue
		}

		eg, egCtx := errgroup.WithContext(ctx)
		eg.SetLimit(limit)
		for _, c := range wave {
			c := c
			eg.Go(func() error {
				d.execute(egCtx, thread, c)
				mu.Lock()
				completed[c.ID] = c.Status == conversation.ToolSuccess
				mu.Unlock()
				return nil
			})
		}
		_ = eg.Wait()
		remaining -= len(wave)
	}
	return nil
}

// runSequentialApprovals runs approval-required calls one at a time,
// awaiting the gate before executing each (§4.8 step 5). Calls whose
// predecessor was rejected or errored are marked "dependency not met" and
// skipped without consulting the gate.
func (d *Dispatcher) runSequentialApprovals(ctx context.Context, thread *conversation.Thread, calls []*conversation.ToolCall, g graph, byID map[string]*conversation.ToolCall, byName map[string][]*conversation.ToolCall, failed map[string]bool) {
	for _, c := range calls {
		blocked := false
		for _, dep := range g[c.ID] {
			if depBlocked(dep, byID, byName, failed) {
				blocked = true
			}
		}
		if blocked {
			c.Status = conversation.ToolError
			c.Error = "dependency not met"
			failed[c.ID] = true
			continue
		}

		c.Status = conversation.ToolAwaiting
		d.bus.Publish(eventbus.Event{Topic: eventbus.ToolPending, ThreadID: thread.ID, Payload: c})

		decision, err := d.approvals.Request(ctx, approval.Request{ThreadID: thread.ID, ToolCallID: c.ID, ToolName: c.Name, Arguments: c.Arguments})
		if err != nil || decision == approval.Rejected {
			c.Status = conversation.ToolRejected
			c.Error = "rejected by user"
			failed[c.ID] = true
			d.bus.Publish(eventbus.Event{Topic: eventbus.ToolRejected, ThreadID: thread.ID, Payload: c})
			continue
		}
		if decision == approval.ApprovedAndAuto {
			d.enableAuto(thread.ID, c.Name)
		}

		d.execute(ctx, thread, c)
		if c.Status == conversation.ToolError {
			failed[c.ID] = true
		}
	}
}

func (d *Dispatcher) execute(ctx context.Context, thread *conversation.Thread, c *conversation.ToolCall) {
	c.Status = conversation.ToolRunning
	d.bus.Publish(eventbus.Event{Topic: eventbus.ToolRunning, ThreadID: thread.ID, Payload: c})

	ctx, span := observability.Tracer("agentcore/dispatcher").Start(ctx, "tool."+c.Name,
		trace.WithAttributes(attribute.String("tool.name", c.Name)))
	start := time.Now()
	result, err := d.tools.Execute(ctx, c.Name, c.Arguments)
	d.metrics.RecordToolCall(c.Name, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		d.metrics.RecordToolError(c.Name)
		c.Status = conversation.ToolError
		c.Error = err.Error()
		d.bus.Publish(eventbus.Event{Topic: eventbus.ToolError, ThreadID: thread.ID, Payload: c})
		return
	}
	span.End()

	c.Status = conversation.ToolSuccess
	c.Result = result.Content
	c.RichContent = result.RichContent
	c.WaitingForUser = result.WaitingForUser
	c.Interactive = result.Interactive

	if result.FileChange != nil && d.loop != nil {
		d.loop.RecordWrite(result.FileChange.FilePath, result.FileChange.NewContent)
	}
	d.bus.Publish(eventbus.Event{Topic: eventbus.ToolCompleted, ThreadID: thread.ID, Payload: c})
}

// writeBack appends a Tool message for c, truncated per §4.8 steps 6-7.
func (d *Dispatcher) writeBack(thread *conversation.Thread, c *conversation.ToolCall) {
	limit := d.cfg.MaxToolResultChars
	if override, ok := d.cfg.ToolResultCharLimits[c.Name]; ok {
		limit = override
	}

	var text string
	status := conversation.ToolMsgSuccess
	switch c.Status {
	case conversation.ToolRejected:
		status = conversation.ToolMsgRejected
		text = "Rejected by user."
	case conversation.ToolError:
		status = conversation.ToolMsgError
		text = truncate(formatError(c.Error), limit)
	default:
		text = truncate(c.Result, limit)
	}

	thread.Append(&conversation.Message{
		Role:       conversation.RoleTool,
		ToolCallID: c.ID,
		ToolName:   c.Name,
		ToolText:   text,
		ToolStatus: status,
	})
}

func formatError(msg string) string {
	if msg == "" {
		return "Error: unknown"
	}
	if strings.HasPrefix(msg, "Error:") || strings.HasPrefix(msg, "❌") {
		return msg
	}
	return "Error: " + msg
}

// truncate preserves both ends of s within limit, inserting an omission
// marker (§4.8 step 6). Diagnostic text ("Error:"/❌-prefixed) gets 1.5x
// the budget so failures survive legibly.
func truncate(s string, limit int) string {
	if strings.HasPrefix(s, "Error:") || strings.HasPrefix(s, "❌") {
		limit = int(float64(limit) * 1.5)
	}
	if len(s) <= limit {
		return s
	}
	marker := fmt.Sprintf("\n... [%d characters omitted] ...\n", len(s)-limit)
	headLen := (limit - len(marker)) / 2
	if headLen < 0 {
		headLen = 0
	}
	tailLen := limit - len(marker) - headLen
	if tailLen < 0 {
		tailLen = 0
	}
	return s[:headLen] + marker + s[len(s)-tailLen:]
}
