// Package loopdetector implements LoopDetector (SPEC_FULL.md §4.10):
// repetition/oscillation detection across agent-loop iterations. The pack
// has no close analogue for this exact algorithm (see DESIGN.md), so it is
// built directly from the spec's own description, using the FNV hashing it
// names explicitly for idempotent-write detection.
package loopdetector

import (
	"encoding/json"
	"hash/fnv"
	"sort"
	"strings"

	"github.com/adnify/agentcore/internal/conversation"
)

const fifoSize = 5

// Result is returned after each iteration's signature is recorded.
type Result struct {
	IsLoop     bool
	Reason     string
	Suggestion string
}

var canned = map[string]string{
	"repeat":    "Repeated tool call: try a different approach or verify the result of the prior call before retrying.",
	"idempotent": "This write would produce the same file content as before; confirm the change is actually needed.",
}

// Detector holds the bounded FIFO of iteration signatures, the repeat
// counter, and the path->contentHash map used for idempotent-write
// detection (§4.10, §5's "bounded file cache... FNV-hashed content").
type Detector struct {
	fifo              []string
	consecutiveRepeats int
	lastHash          map[string]uint64
}

func New() *Detector {
	return &Detector{lastHash: map[string]uint64{}}
}

// signature is the sorted join of "name:JSON(arguments)" for every tool
// call in one iteration (§4.10).
func signature(calls []*conversation.ToolCall) string {
	parts := make([]string, 0, len(calls))
	for _, c := range calls {
		argsJSON, _ := json.Marshal(c.Arguments)
		parts = append(parts, c.Name+":"+string(argsJSON))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}

// writePaths extracts {path, content} pairs for the write-class calls in
// this iteration, used for idempotent-write detection. The dispatcher
// supplies them post-hoc via RecordWrite since content isn't known until a
// tool actually executes; this function only inspects arguments for calls
// that carry an inline "content" field up front (write_file-style tools).
func writePaths(calls []*conversation.ToolCall) map[string]string {
	out := map[string]string{}
	for _, c := range calls {
		path, _ := c.Arguments["path"].(string)
		content, ok := c.Arguments["content"].(string)
		if path != "" && ok {
			out[path] = content
		}
	}
	return out
}

func fnvHash(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// Observe records one iteration's tool calls and reports whether a loop
// condition now holds (§4.10). Invariant §8.7: never signals a loop on the
// first iteration — the FIFO starts empty so a first signature cannot match
// anything.
func (d *Detector) Observe(calls []*conversation.ToolCall) Result {
	sig := signature(calls)

	idempotent := false
	for path, content := range writePaths(calls) {
		h := fnvHash(content)
		if prev, ok := d.lastHash[path]; ok && prev == h {
			idempotent = true
		}
		d.lastHash[path] = h
	}

	matched := false
	for _, prior := range d.fifo {
		if prior == sig {
			matched = true
			break
		}
	}

	if matched {
		d.consecutiveRepeats++
	} else {
		d.consecutiveRepeats = 0
	}

	d.fifo = append(d.fifo, sig)
	if len(d.fifo) > fifoSize {
		d.fifo = d.fifo[1:]
	}

	switch {
	case d.consecutiveRepeats >= 2:
		return Result{IsLoop: true, Reason: "Repeated tool call", Suggestion: canned["repeat"]}
	case idempotent:
		return Result{IsLoop: true, Reason: "idempotent write", Suggestion: canned["idempotent"]}
	default:
		return Result{}
	}
}

// RecordWrite lets the dispatcher report a path's post-execution content
// hash directly, for tools (e.g. edit_file) whose final content isn't known
// from arguments alone.
func (d *Detector) RecordWrite(path, content string) {
	d.lastHash[path] = fnvHash(content)
}
